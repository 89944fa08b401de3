package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handcursor/internal/app"
	"github.com/ayusman/handcursor/internal/config"
	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/server"
	"github.com/ayusman/handcursor/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track hands from the camera and drive the pointer",
	Long: `Start the camera pipeline, the web UI and the system tray.

Pointer control starts disabled unless control.enabled is set; turn it on
from the tray, the web UI or with --control.`,
	Example: `  # Start with the tray and web UI on the default address
  handcursor run

  # Move the real pointer right away
  handcursor run --control

  # Log intents instead of moving the pointer, and record the session
  handcursor run --control --dry-run --record session.jsonl.zst

  # Headless
  handcursor run --no-tray --addr 127.0.0.1:9090`,
	RunE: runRun,
}

var runNoTray bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("addr", "", "HTTP listen address")
	runCmd.Flags().Bool("control", false, "let gestures move the pointer")
	runCmd.Flags().Bool("dry-run", false, "log pointer intents instead of injecting them")
	runCmd.Flags().String("record", "", "record tracked frames to a .jsonl or .jsonl.zst file")
	runCmd.Flags().Float64("zoom", 0, "pointer zoom factor")
	runCmd.Flags().Int("camera", 0, "camera device index")
	runCmd.Flags().BoolVar(&runNoTray, "no-tray", false, "run without the system tray")
}

func runRun(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig(cmd,
		flagBinding{"addr", "server.addr"},
		flagBinding{"control", "control.enabled"},
		flagBinding{"dry-run", "control.dry_run"},
		flagBinding{"record", "record.path"},
		flagBinding{"zoom", "pointer.zoom"},
		flagBinding{"camera", "camera.device"},
	)
	if err != nil {
		return err
	}
	log := logger.WithComponent("main")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := app.New(app.Options{Config: cfg, Store: st})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	srv := server.New(server.Config{
		StaticDir:  staticDir(cfg),
		Store:      st,
		Controller: a,
	})
	go func() {
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		return err
	}
	loader.Watch(a.ApplyConfig)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("server shutdown")
		}
		if err := a.Stop(); err != nil {
			log.Warn().Err(err).Msg("pipeline shutdown")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if runNoTray {
		<-sigCh
		log.Info().Msg("shutting down")
		shutdown()
		return nil
	}

	t := newTray(a, cfg)
	go func() {
		<-sigCh
		t.Quit()
	}()
	t.Run()

	log.Info().Msg("shutting down")
	shutdown()
	return nil
}

// newTray builds the tray menu wired to the pipeline.
func newTray(a *app.App, cfg config.Config) *tray.Tray {
	t := tray.New(a.IsEnabled(), a.ControlEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnControl(a.SetControlEnabled)
	t.OnSettings(func() {
		openBrowser("http://" + cfg.Server.Addr)
	})
	a.Subscribe(func(s gesture.Snapshot) {
		t.ShowSnapshot(s)
		t.SetControl(a.ControlEnabled())
	})
	return t
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.WithComponent("tray").Warn().Err(err).Str("url", url).Msg("cannot open browser")
	}
}
