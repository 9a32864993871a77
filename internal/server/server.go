// Package server exposes the digest trigger surface: an authenticated
// endpoint that runs the pipeline for a slot, plus health and latest-digest
// reads. It is plumbing around the pipeline, not part of it.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"citydigest/internal/core"
	"citydigest/internal/logger"
	"citydigest/internal/pipeline"
)

// Config holds the HTTP server settings.
type Config struct {
	Host         string
	Port         int
	SharedSecret string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DigestReader answers latest-digest queries.
type DigestReader interface {
	LatestDigest(ctx context.Context) (*core.Digest, error)
}

// Runner runs one pipeline invocation. Satisfied by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) pipeline.RunResult
}

// Server is the HTTP trigger surface.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	runner     Runner
	reader     DigestReader
	runOpts    pipeline.Options
	secret     string
	log        *slog.Logger
}

// NewServer creates the trigger server. runOpts carries the pipeline
// defaults for triggered runs; the slot comes from the request.
func NewServer(cfg Config, runner Runner, reader DigestReader, runOpts pipeline.Options) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		runner:  runner,
		reader:  reader,
		runOpts: runOpts,
		secret:  cfg.SharedSecret,
		log:     logger.Get(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/digest/latest", s.handleLatestDigest)
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireSharedSecret)
		r.Post("/api/digest/{slot}", s.handleTrigger)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the chi router. Useful for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requireSharedSecret protects the trigger endpoint with a bearer token.
// With no secret configured the endpoint is disabled outright.
func (s *Server) requireSharedSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			s.log.Warn("Trigger endpoint accessed but no shared secret configured")
			http.Error(w, "Trigger endpoint is disabled. Configure a shared secret to enable.", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if authHeader != "Bearer "+s.secret {
			s.log.Warn("Invalid trigger token attempt", "remote_addr", r.RemoteAddr)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	if slot != "morning" && slot != "evening" {
		http.Error(w, "slot must be morning or evening", http.StatusBadRequest)
		return
	}

	opts := s.runOpts
	opts.Slot = slot
	if user := r.URL.Query().Get("user"); user != "" {
		opts.UserID = user
		opts.Personalize = true
	}

	s.log.Info("Digest run triggered", "slot", slot, "user", opts.UserID)
	result := s.runner.Run(r.Context(), opts)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLatestDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := s.reader.LatestDigest(r.Context())
	if err != nil {
		s.log.Error("Failed to load latest digest", "error", err)
		http.Error(w, "failed to load digest", http.StatusInternalServerError)
		return
	}
	if digest == nil {
		http.Error(w, "no digest generated yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, digest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
