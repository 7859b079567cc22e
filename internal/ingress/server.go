// Package ingress is the HTTP front door: it validates and normalizes pop
// requests, consults the dedupe store, and feeds the bounded job queue.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/popgate/internal/dedupe"
	"github.com/mattjoyce/popgate/internal/dispatch"
	"github.com/mattjoyce/popgate/internal/events"
	"github.com/mattjoyce/popgate/internal/policy"
	"github.com/mattjoyce/popgate/internal/queue"
	"github.com/mattjoyce/popgate/internal/stats"
)

// JobQueue is the producer-side queue surface used by the ingress.
type JobQueue interface {
	TryEnqueue(j queue.Job) error
	Depth() int
}

// Server is the ingress HTTP server.
type Server struct {
	listen   string
	queue    JobQueue
	dedupe   *dedupe.Store
	policies *policy.Provider
	state    *dispatch.PlacementState
	counters *stats.Counters
	hub      *events.Hub
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new ingress server instance.
func New(
	listen string,
	q JobQueue,
	ded *dedupe.Store,
	provider *policy.Provider,
	state *dispatch.PlacementState,
	counters *stats.Counters,
	hub *events.Hub,
	logger *slog.Logger,
) *Server {
	return &Server{
		listen:   listen,
		queue:    q,
		dedupe:   ded,
		policies: provider,
		state:    state,
		counters: counters,
		hub:      hub,
		logger:   logger,
	}
}

// Start starts the HTTP server (blocking until ctx is cancelled).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // /events streams
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("ingress server starting", "listen", s.listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("ingress server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ingress server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("ingress server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/open", s.handleOpen)
	r.Get("/stats", s.handleStats)
	r.Get("/events", s.handleEvents)
	r.Post("/reset-first-window", s.handleReset)

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{OK: false, Error: message})
}
