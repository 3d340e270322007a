// Package api serves the local operational HTTP surface: health, metrics,
// controller state, event history and a reset trigger.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vantagedesk/streamview/internal/controller"
	"github.com/vantagedesk/streamview/internal/history"
)

// Session is the slice of the controller the API needs.
type Session interface {
	State() controller.State
	Reset(ctx context.Context) error
}

// Server exposes the operational endpoints over HTTP.
type Server struct {
	logger  *zap.Logger
	session Session
	events  *history.Ring
}

// NewServer builds the API server around a running controller.
func NewServer(logger *zap.Logger, session Session, events *history.Ring) *Server {
	return &Server{logger: logger, session: session, events: events}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/events", s.handleEvents)
		r.Post("/reset", s.handleReset)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.events.Snapshot()
	if events == nil {
		events = []history.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleReset triggers a reconnect. The reset itself can block on the
// settle delay, so it runs detached and the request returns immediately.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.session.Reset(context.Background()); err != nil {
			s.logger.Error("reset failed", zap.Error(err))
		}
	}()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"resetting"}`))
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
