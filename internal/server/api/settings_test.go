package api

import (
	"net/http"
	"testing"

	"github.com/ayusman/handcursor/internal/config"
)

// configTarget applies settings to a plain config.
type configTarget struct {
	cfg config.Config
}

func (c *configTarget) Settings() map[string]string {
	out := make(map[string]string)
	for _, key := range config.RuntimeKeys {
		v, _ := c.cfg.Get(key)
		out[key] = v
	}
	return out
}

func (c *configTarget) ApplySettings(values map[string]string) error {
	next := c.cfg
	for k, v := range values {
		if err := next.Set(k, v); err != nil {
			return err
		}
	}
	c.cfg = next
	return nil
}

func TestSettingsHandler_Get(t *testing.T) {
	target := &configTarget{cfg: config.Default()}
	router := newRouter(NewSettingsHandler(target, nil))

	rec := do(t, router, http.MethodGet, "/api/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got settingsResponse
	decode(t, rec, &got)
	if got.Settings["pointer.zoom"] != "2.5" {
		t.Errorf("expected zoom 2.5, got %q", got.Settings["pointer.zoom"])
	}
	if got.Settings["control.enabled"] != "false" {
		t.Errorf("expected control disabled, got %q", got.Settings["control.enabled"])
	}
}

func TestSettingsHandler_Put(t *testing.T) {
	s := newTestStore(t)
	target := &configTarget{cfg: config.Default()}
	router := newRouter(NewSettingsHandler(target, s))

	t.Run("applies and persists", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/api/settings", map[string]any{
			"pointer.zoom":    3,
			"control.enabled": true,
			"tracking.mirror": "false",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var got settingsResponse
		decode(t, rec, &got)
		if got.Settings["pointer.zoom"] != "3" || got.Settings["control.enabled"] != "true" {
			t.Errorf("settings not applied: %v", got.Settings)
		}

		stored, err := s.Settings().All()
		if err != nil {
			t.Fatalf("All() error = %v", err)
		}
		if stored["tracking.mirror"] != "false" || stored["pointer.zoom"] != "3" {
			t.Errorf("settings not persisted: %v", stored)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		tests := []struct {
			name string
			body any
		}{
			{"invalid json", "{"},
			{"empty", map[string]any{}},
			{"unknown key", map[string]any{"camera.fps": 60}},
			{"bad zoom", map[string]any{"pointer.zoom": -1}},
			{"object value", map[string]any{"pointer.zoom": map[string]any{}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, router, http.MethodPut, "/api/settings", tt.body)
				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
				}
			})
		}

		if target.cfg.Pointer.Zoom != 3 {
			t.Errorf("rejected updates must not change zoom, got %v", target.cfg.Pointer.Zoom)
		}
	})
}
