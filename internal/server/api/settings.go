package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/store"
)

// SettingsTarget holds the runtime settings.
type SettingsTarget interface {
	Settings() map[string]string
	ApplySettings(values map[string]string) error
}

// SettingsHandler serves /api/settings. Applied settings are persisted so
// they survive a restart.
type SettingsHandler struct {
	target SettingsTarget
	store  *store.Store
	log    *zerolog.Logger
}

// NewSettingsHandler creates a SettingsHandler. s may be nil, in which case
// changes only last for the current run.
func NewSettingsHandler(target SettingsTarget, s *store.Store) *SettingsHandler {
	return &SettingsHandler{target: target, store: s, log: logger.WithComponent("api")}
}

// Register adds the settings routes to r.
func (h *SettingsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/settings", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/settings", h.put).Methods(http.MethodPut)
}

type settingsResponse struct {
	Settings map[string]string `json:"settings"`
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{Settings: h.target.Settings()})
}

// put accepts {"key": value, ...}. Values may be JSON strings, numbers or
// booleans.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req) == 0 {
		writeError(w, http.StatusBadRequest, "No settings given")
		return
	}

	values := make(map[string]string, len(req))
	for key, v := range req {
		switch v := v.(type) {
		case string:
			values[key] = v
		case float64, bool:
			values[key] = fmt.Sprint(v)
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid value for %s", key))
			return
		}
	}

	if err := h.target.ApplySettings(values); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.store != nil {
		if err := h.store.Settings().SetMany(values); err != nil {
			h.log.Warn().Err(err).Msg("failed to persist settings")
		}
	}

	writeJSON(w, http.StatusOK, settingsResponse{Settings: h.target.Settings()})
}
