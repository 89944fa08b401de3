package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/pose"
	"github.com/ayusman/handcursor/internal/store"
)

// SamplesHandler serves /api/poses/{id}/samples.
type SamplesHandler struct {
	store *store.Store
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store) *SamplesHandler {
	return &SamplesHandler{store: s}
}

// Register adds the sample routes to r.
func (h *SamplesHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/poses/{id}/samples", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/poses/{id}/samples", h.create).Methods(http.MethodPost)
	r.HandleFunc("/api/poses/{id}/samples", h.deleteAll).Methods(http.MethodDelete)
}

type createSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	PoseID      string          `json:"pose_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request) {
	samples, err := h.store.Samples().GetByPoseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{Samples: make([]sampleResponse, 0, len(samples))}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			PoseID:      s.PoseID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   formatTime(s.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// validateSample checks that raw is a pose sample with a full hand.
func validateSample(raw json.RawMessage) error {
	var s pose.Sample
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if len(s.Landmarks) != detector.NumLandmarks {
		return fmt.Errorf("expected %d landmarks, got %d", detector.NumLandmarks, len(s.Landmarks))
	}
	return nil
}

func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req createSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}
	for i, raw := range req.Samples {
		if err := validateSample(raw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid sample %d: %v", i, err))
			return
		}
	}

	if err := h.store.Samples().Create(id, req.Samples); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Pose not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"added": len(req.Samples)})
}

func (h *SamplesHandler) deleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Samples().DeleteByPoseID(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
