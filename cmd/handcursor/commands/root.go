// Package commands implements the handcursor command line.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/handcursor/internal/config"
	"github.com/ayusman/handcursor/internal/input"
	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/store"
)

var (
	cfgFile string
	envFile string
	rootCmd = &cobra.Command{
		Use:   "handcursor",
		Short: "handcursor - control the mouse pointer with your hands",
		Long: `handcursor watches a camera, tracks your hands and turns hand poses into
pointer input:

  • the raised hand moves the cursor
  • a closed hand presses the left button, opening it releases
  • two extended fingers (lasso) click the right button
  • both hands closed scroll by the change in distance between them

A local web UI trains custom poses and changes settings while running.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.handcursor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file (default is ./.env)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "human-readable log output")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for the pose database")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flagBinding maps a command-line flag to a config key.
type flagBinding struct {
	flag string
	key  string
}

var persistentBindings = []flagBinding{
	{"log-level", "log.level"},
	{"log-pretty", "log.pretty"},
	{"data-dir", "data_dir"},
}

// loadConfig reads the configuration with cmd's flags bound on top and
// initializes logging.
func loadConfig(cmd *cobra.Command, bindings ...flagBinding) (*config.Loader, config.Config, error) {
	loader := config.NewLoader(cfgFile, envFile)
	v := loader.Viper()

	for _, b := range append(persistentBindings, bindings...) {
		f := cmd.Flags().Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return nil, config.Config{}, fmt.Errorf("bind --%s: %w", b.flag, err)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, config.Config{}, err
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	if file := loader.ConfigFile(); file != "" {
		logger.Get().Debug().Str("file", file).Msg("configuration loaded")
	}
	return loader, cfg, nil
}

// openStore opens the pose database in the data directory.
func openStore(cfg config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// screenSize returns the configured screen size, else the display's, else
// 1920x1080.
func screenSize(cfg config.Config) (int, int) {
	if cfg.Pointer.ScreenWidth > 0 && cfg.Pointer.ScreenHeight > 0 {
		return cfg.Pointer.ScreenWidth, cfg.Pointer.ScreenHeight
	}
	if w, h, err := input.ScreenSize(); err == nil && w > 0 && h > 0 {
		return w, h
	}
	return 1920, 1080
}
