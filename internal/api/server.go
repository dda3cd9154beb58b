package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/metrics"
	"github.com/JakeFAU/award-watcher/internal/monitor"
)

// StatusSource reports the monitor loop's state.
type StatusSource interface {
	Status() monitor.Status
}

// SnapshotReader returns the persisted best-value document as stored.
type SnapshotReader interface {
	Raw(ctx context.Context) ([]byte, error)
}

// Server wires HTTP handlers to the loop status and the stored snapshot.
type Server struct {
	router   chi.Router
	status   StatusSource
	snapshot SnapshotReader
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(status StatusSource, snapshot SnapshotReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		status:   status,
		snapshot: snapshot,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(noCacheCORS)
	r.Use(timeoutMiddleware(10 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/best_points.json", s.bestPoints)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		s.writeError(w, http.StatusServiceUnavailable, "monitor not running")
		return
	}
	st := s.status.Status()
	code := http.StatusOK
	if st.State == monitor.StateStopped {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, st)
}

func (s *Server) bestPoints(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		s.writeError(w, http.StatusNotFound, "no snapshot available")
		return
	}
	data, err := s.snapshot.Raw(r.Context())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "no snapshot available")
			return
		}
		s.logger.Error("read snapshot failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "read snapshot failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("write snapshot failed", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
