package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handcursor/internal/app"
	"github.com/ayusman/handcursor/internal/config"
	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web UI and API without the camera",
	Long: `Start only the HTTP API and web UI, for managing and training poses.
The camera is not opened and the pointer is never moved.`,
	Example: `  handcursor serve --addr 127.0.0.1:9090`,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd, flagBinding{"addr", "server.addr"})
	if err != nil {
		return err
	}
	log := logger.WithComponent("main")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg.Control.Enabled = false
	a, err := app.New(app.Options{Config: cfg, Store: st})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	srv := server.New(server.Config{
		StaticDir:  staticDir(cfg),
		Store:      st,
		Controller: a,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.Server.Addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// staticDir returns the web UI directory: server.static_dir, else the first
// of ./web, ../web and <data_dir>/web that exists.
func staticDir(cfg config.Config) string {
	if cfg.Server.StaticDir != "" {
		return cfg.Server.StaticDir
	}
	for _, p := range []string{"web", filepath.Join("..", "web"), filepath.Join(cfg.DataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
