package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Pointer.Zoom != 2.5 {
		t.Errorf("expected zoom 2.5, got %v", cfg.Pointer.Zoom)
	}
	if cfg.Pointer.SourceWidth != 1920 || cfg.Pointer.SourceHeight != 1080 {
		t.Errorf("expected source 1920x1080, got %dx%d", cfg.Pointer.SourceWidth, cfg.Pointer.SourceHeight)
	}
	if cfg.Control.Enabled {
		t.Error("control should be disabled by default")
	}
	if filepath.Base(cfg.DatabasePath()) != "handcursor.db" {
		t.Errorf("unexpected database path %s", cfg.DatabasePath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero camera width", func(c *Config) { c.Camera.Width = 0 }},
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"idle fps above camera fps", func(c *Config) { c.Motion.IdleFPS = 60 }},
		{"negative screen", func(c *Config) { c.Pointer.ScreenWidth = -1 }},
		{"zero zoom", func(c *Config) { c.Pointer.Zoom = 0 }},
		{"zero source height", func(c *Config) { c.Pointer.SourceHeight = 0 }},
		{"no hands", func(c *Config) { c.Detector.MaxHands = 0 }},
		{"zero tolerance", func(c *Config) { c.Pose.Tolerance = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		writeFile(t, path, `
pointer:
  zoom: 3
  screen_width: 2560
  screen_height: 1440
control:
  enabled: true
tracking:
  mirror: false
`)

		cfg, err := NewLoader(path, filepath.Join(dir, ".env")).Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Pointer.Zoom != 3 {
			t.Errorf("expected zoom 3, got %v", cfg.Pointer.Zoom)
		}
		if cfg.Pointer.ScreenWidth != 2560 {
			t.Errorf("expected screen width 2560, got %d", cfg.Pointer.ScreenWidth)
		}
		if !cfg.Control.Enabled {
			t.Error("expected control enabled")
		}
		if cfg.Tracking.Mirror {
			t.Error("expected mirror disabled")
		}
		if cfg.Camera.Width != 640 {
			t.Errorf("expected default camera width 640, got %d", cfg.Camera.Width)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		writeFile(t, path, "pointer:\n  zoom: 3\n")
		t.Setenv("HANDCURSOR_POINTER_ZOOM", "1.5")

		cfg, err := NewLoader(path, filepath.Join(dir, ".env")).Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Pointer.Zoom != 1.5 {
			t.Errorf("expected zoom 1.5 from env, got %v", cfg.Pointer.Zoom)
		}
	})

	t.Run("dotenv file is applied", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		writeFile(t, path, "log:\n  level: info\n")
		envPath := filepath.Join(dir, ".env")
		writeFile(t, envPath, "HANDCURSOR_LOG_LEVEL=debug\n")
		t.Cleanup(func() { os.Unsetenv("HANDCURSOR_LOG_LEVEL") })

		cfg, err := NewLoader(path, envPath).Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("expected log level debug from .env, got %s", cfg.Log.Level)
		}
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		dir := t.TempDir()
		_, err := NewLoader(filepath.Join(dir, "nope.yaml"), filepath.Join(dir, ".env")).Load()
		if err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		writeFile(t, path, "pointer:\n  zoom: -2\n")

		_, err := NewLoader(path, filepath.Join(dir, ".env")).Load()
		if err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestConfig_SetGet(t *testing.T) {
	t.Run("round trip runtime keys", func(t *testing.T) {
		cfg := Default()
		values := map[string]string{
			"pointer.zoom":    "3.5",
			"control.enabled": "true",
			"control.dry_run": "true",
			"tracking.mirror": "false",
			"pose.tolerance":  "0.2",
		}
		for _, key := range RuntimeKeys {
			if err := cfg.Set(key, values[key]); err != nil {
				t.Fatalf("Set(%s) failed: %v", key, err)
			}
			got, err := cfg.Get(key)
			if err != nil {
				t.Fatalf("Get(%s) failed: %v", key, err)
			}
			if got != values[key] {
				t.Errorf("%s: expected %s, got %s", key, values[key], got)
			}
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		cfg := Default()
		if err := cfg.Set("camera.device", "1"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
		if _, err := cfg.Get("camera.device"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
	})

	t.Run("invalid zoom leaves config unchanged", func(t *testing.T) {
		cfg := Default()
		if err := cfg.Set("pointer.zoom", "0"); err == nil {
			t.Error("expected error for zero zoom")
		}
		if cfg.Pointer.Zoom != 2.5 {
			t.Errorf("expected zoom unchanged, got %v", cfg.Pointer.Zoom)
		}
		if err := cfg.Set("pointer.zoom", "abc"); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestLoader_Watch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watch test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "pointer:\n  zoom: 2\n")

	loader := NewLoader(path, filepath.Join(dir, ".env"))
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan Config, 4)
	loader.Watch(func(c Config) { changed <- c })

	writeFile(t, path, "pointer:\n  zoom: 4\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Pointer.Zoom == 4 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}
