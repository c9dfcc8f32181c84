// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ragops/harvester/internal/config"
	"github.com/ragops/harvester/internal/crawler"
)

// Runner starts and cancels crawl runs on behalf of the API.
type Runner interface {
	// StartCrawl launches the crawl for an already-created run. It returns
	// once the crawl is accepted; execution continues in the background.
	StartCrawl(ctx context.Context, run crawler.Run) error
	// CancelRun requests cancellation of a running crawl. It reports
	// whether a matching run was found.
	CancelRun(runID string) bool
}

// Server wires HTTP handlers to the runner and run store.
type Server struct {
	router chi.Router
	runs   crawler.RunStore
	runner Runner
	idGen  crawler.IDGenerator
	clock  crawler.Clock
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runs crawler.RunStore,
	runner Runner,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runs:   runs,
		runner: runner,
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Route("/{crawl_id}", func(r chi.Router) {
				r.Get("/status", s.getCrawlStatus)
				r.Get("/result", s.getCrawlResult)
				r.Post("/cancel", s.cancelCrawl)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitCrawlRequest struct {
	SeedURL        string `json:"seed_url"`
	MaxPages       *int   `json:"max_pages"`
	MaxConcurrency *int   `json:"max_concurrency"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req submitCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateSeedURL(req.SeedURL); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate run id: %v", err))
		return
	}
	run := crawler.Run{
		ID:             runID,
		SeedURL:        req.SeedURL,
		MaxPages:       valueOrDefault(req.MaxPages, s.cfg.Crawler.MaxPages),
		MaxConcurrency: valueOrDefault(req.MaxConcurrency, s.cfg.Crawler.MaxConcurrency),
		Status:         crawler.RunStatusQueued,
		Submitted:      s.clock.Now(),
	}
	if err := s.runs.CreateRun(r.Context(), run); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("create run: %v", err))
		return
	}
	if err := s.runner.StartCrawl(r.Context(), run); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("start crawl: %v", err))
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"crawl_id": runID})
}

func (s *Server) getCrawlStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "crawl_id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) getCrawlResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "crawl_id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	result, err := s.runs.GetResult(r.Context(), runID)
	if err != nil {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("result not available (status %s)", run.Status))
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) cancelCrawl(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "crawl_id")
	if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
		s.writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	if !s.runner.CancelRun(runID) {
		// Run exists but is no longer active; report its stored state.
		run, err := s.runs.GetRun(r.Context(), runID)
		if err == nil {
			s.writeJSON(w, http.StatusOK, map[string]string{"crawl_id": runID, "status": string(run.Status)})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"crawl_id": runID, "status": string(crawler.RunStatusCanceled)})
}

func validateSeedURL(raw string) error {
	if raw == "" {
		return errors.New("seed_url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return errors.New("seed_url must be an absolute http(s) URL")
	}
	return nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

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
