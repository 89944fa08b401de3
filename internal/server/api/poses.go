package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/pose"
	"github.com/ayusman/handcursor/internal/store"
)

// PoseHandler serves /api/poses: trained hand poses and their templates.
type PoseHandler struct {
	store    *store.Store
	reloader Reloader
	log      *zerolog.Logger
}

// NewPoseHandler creates a PoseHandler. reloader may be nil.
func NewPoseHandler(s *store.Store, reloader Reloader) *PoseHandler {
	return &PoseHandler{store: s, reloader: reloader, log: logger.WithComponent("api")}
}

// Register adds the pose routes to r.
func (h *PoseHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/poses", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/poses", h.create).Methods(http.MethodPost)
	r.HandleFunc("/api/poses/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/poses/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/api/poses/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/poses/{id}/train", h.train).Methods(http.MethodPost)
}

type createPoseRequest struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Enabled *bool  `json:"enabled"`
}

type updatePoseRequest struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Enabled *bool  `json:"enabled"`
}

type poseResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Enabled   bool   `json:"enabled"`
	Samples   int    `json:"samples"`
	Trained   bool   `json:"trained"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listPosesResponse struct {
	Poses []poseResponse `json:"poses"`
}

func toResponse(p *store.Pose) poseResponse {
	return poseResponse{
		ID:        p.ID,
		Name:      p.Name,
		State:     p.State,
		Enabled:   p.Enabled,
		Samples:   p.Samples,
		Trained:   p.Trained,
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

// validState reports whether name is a hand state a pose can stand for.
func validState(name string) bool {
	switch body.ParseHandState(name) {
	case body.Open, body.Closed, body.Lasso:
		return true
	}
	return false
}

func (h *PoseHandler) reload() {
	if h.reloader == nil {
		return
	}
	if err := h.reloader.ReloadPoses(); err != nil {
		h.log.Warn().Err(err).Msg("failed to reload poses")
	}
}

func (h *PoseHandler) list(w http.ResponseWriter, r *http.Request) {
	poses, err := h.store.Poses().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list poses")
		return
	}

	response := listPosesResponse{Poses: make([]poseResponse, 0, len(poses))}
	for _, p := range poses {
		response.Poses = append(response.Poses, toResponse(p))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *PoseHandler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

// lookup fetches a pose, writing the error response when it fails.
func (h *PoseHandler) lookup(w http.ResponseWriter, id string) (*store.Pose, bool) {
	p, err := h.store.Poses().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Pose not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get pose")
		return nil, false
	}
	return p, true
}

func (h *PoseHandler) nameTaken(name, exceptID string) (bool, error) {
	existing, err := h.store.Poses().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ID != exceptID, nil
}

func (h *PoseHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if !validState(req.State) {
		writeError(w, http.StatusBadRequest, "State must be Open, Closed or Lasso")
		return
	}

	taken, err := h.nameTaken(req.Name, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create pose")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "A pose with this name already exists")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	p := &store.Pose{
		ID:      uuid.New().String(),
		Name:    req.Name,
		State:   body.ParseHandState(req.State).String(),
		Enabled: enabled,
	}
	if err := h.store.Poses().Create(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create pose")
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(p))
}

func (h *PoseHandler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var req updatePoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" && req.Name != p.Name {
		taken, err := h.nameTaken(req.Name, p.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update pose")
			return
		}
		if taken {
			writeError(w, http.StatusConflict, "A pose with this name already exists")
			return
		}
		p.Name = req.Name
	}
	if req.State != "" {
		if !validState(req.State) {
			writeError(w, http.StatusBadRequest, "State must be Open, Closed or Lasso")
			return
		}
		p.State = body.ParseHandState(req.State).String()
	}
	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}

	if err := h.store.Poses().Update(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update pose")
		return
	}
	h.reload()

	writeJSON(w, http.StatusOK, toResponse(p))
}

func (h *PoseHandler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Poses().Delete(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Pose not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete pose")
		return
	}
	h.reload()

	w.WriteHeader(http.StatusNoContent)
}

// train averages the recorded samples of a pose into its template.
func (h *PoseHandler) train(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	n, err := pose.TrainStored(h.store, p.ID)
	if err != nil {
		if errors.Is(err, pose.ErrNoSamples) {
			writeError(w, http.StatusBadRequest, "Record samples before training")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.reload()

	h.log.Info().Str("pose", p.Name).Int("samples", n).Msg("pose trained")

	p, ok = h.lookup(w, p.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}
