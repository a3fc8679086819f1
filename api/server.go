// Package api serves the monitor state over HTTP and streams changes over a
// websocket, so other tools can follow the translations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kiana/controller"
	"kiana/logutil"
)

// Control is the part of the controller the API drives.
type Control interface {
	Start() error
	Stop()
	Mode() controller.Mode
	SetMode(controller.Mode) error
	Languages() (source, target string)
	SetLanguages(source, target string) error
	Interval() time.Duration
	SetInterval(time.Duration) error
	ProcessClipboardOnce()
}

type Settings struct {
	Mode            controller.Mode `json:"mode"`
	Source          string          `json:"source"`
	Target          string          `json:"target"`
	IntervalSeconds float64         `json:"interval_seconds"`
}

// settingsUpdate carries the fields of a PUT /api/settings; absent fields are left alone.
type settingsUpdate struct {
	Mode            *controller.Mode `json:"mode"`
	Source          *string          `json:"source"`
	Target          *string          `json:"target"`
	IntervalSeconds *float64         `json:"interval_seconds"`
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	hub      *Hub
	ctl      Control
	ui       controller.Dispatcher
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewServer creates a server. Control calls are run through ui so they
// execute on the same context as the rest of the front end.
func NewServer(hub *Hub, ctl Control, ui controller.Dispatcher) *Server {
	s := &Server{
		router: mux.NewRouter(),
		hub:    hub,
		ctl:    ctl,
		ui:     ui,
		log:    logutil.Component("api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/stream", s.handleStream)

	api.HandleFunc("/monitor/start", s.handleStart).Methods("POST")
	api.HandleFunc("/monitor/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/clipboard/process", s.handleProcessClipboard).Methods("POST")

	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// call runs fn on the UI context and waits for it.
func (s *Server) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	s.ui.Post(func() { done <- fn() })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.hub.State())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.call(r.Context(), s.ctl.Start); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, s.hub.State())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	err := s.call(r.Context(), func() error {
		s.ctl.Stop()
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, s.hub.State())
}

func (s *Server) handleProcessClipboard(w http.ResponseWriter, r *http.Request) {
	err := s.call(r.Context(), func() error {
		if s.ctl.Mode() != controller.ModeClipboard {
			return controller.ErrWrongMode
		}
		s.ctl.ProcessClipboardOnce()
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) settings() Settings {
	src, dst := s.ctl.Languages()
	return Settings{
		Mode:            s.ctl.Mode(),
		Source:          src,
		Target:          dst,
		IntervalSeconds: s.ctl.Interval().Seconds(),
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := s.call(r.Context(), func() error {
		if req.Mode != nil {
			if err := s.ctl.SetMode(*req.Mode); err != nil {
				return err
			}
		}
		if req.Source != nil || req.Target != nil {
			src, dst := s.ctl.Languages()
			if req.Source != nil {
				src = *req.Source
			}
			if req.Target != nil {
				dst = *req.Target
			}
			if err := s.ctl.SetLanguages(src, dst); err != nil {
				return err
			}
		}
		if req.IntervalSeconds != nil {
			d := time.Duration(math.Round(*req.IntervalSeconds*1000)) * time.Millisecond
			if err := s.ctl.SetInterval(d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, s.settings())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)

	// The read side only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.hub.State()); err != nil {
		return
	}
	for {
		select {
		case st := <-updates:
			if err := conn.WriteJSON(st); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
