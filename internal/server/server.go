// Package server provides the HTTP API and live views of the pipeline.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ayusman/handcursor/internal/app"
	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/server/api"
	"github.com/ayusman/handcursor/internal/store"
)

// Controller is the running pipeline as seen by the API.
type Controller interface {
	Status() app.Status
	Settings() map[string]string
	ApplySettings(values map[string]string) error
	ReloadPoses() error
	Subscribe(fn func(gesture.Snapshot)) (cancel func())
	LatestJPEG() ([]byte, bool)
}

// Config holds the server configuration. Routes whose dependency is nil
// are not registered.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller Controller
}

// Server is the HTTP server for the application.
type Server struct {
	config Config
	router *mux.Router
	start  time.Time
	hub    *Hub
	unsub  func()
	http   *http.Server
	log    *zerolog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		start:  time.Now(),
		log:    logger.WithComponent("server"),
	}
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	if s.config.Store != nil {
		var reloader api.Reloader
		if s.config.Controller != nil {
			reloader = s.config.Controller
		}
		api.NewPoseHandler(s.config.Store, reloader).Register(r)
		api.NewSamplesHandler(s.config.Store).Register(r)
	}

	if c := s.config.Controller; c != nil {
		r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
		api.NewSettingsHandler(c, s.config.Store).Register(r)
		r.Handle("/api/stream", NewStreamHandler(c)).Methods(http.MethodGet)

		s.hub = NewHub()
		s.unsub = c.Subscribe(s.hub.Publish)
		r.Handle("/api/bodies", s.hub).Methods(http.MethodGet)
	}

	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.hub != nil {
		resp["viewers"] = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener, stops receiving snapshots and disconnects
// websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	return s.http.Shutdown(ctx)
}
