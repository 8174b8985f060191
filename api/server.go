// Package api exposes the engine and the document library over HTTP. All
// job endpoints are asynchronous: creation returns 202 with the job id and
// the caller polls the job record for progress and the result.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/engine"
	"github.com/lemon-tea-ai/arena/library"
)

// jsonBodyLimit caps JSON request bodies. Uploads are exempt; the library
// enforces its own size cap mid-stream.
const jsonBodyLimit = 64 * 1024

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported in the App-Version header.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithRetention sets the retention window used by the cleanup endpoint.
func WithRetention(d time.Duration) Option {
	return func(s *Server) { s.retention = d }
}

// Server is the HTTP front of the engine and the document library.
type Server struct {
	engine    *engine.Engine
	library   *library.Library
	logger    *slog.Logger
	version   string
	retention time.Duration
}

// New creates a Server over the given engine and library.
func New(eng *engine.Engine, lib *library.Library, opts ...Option) *Server {
	s := &Server{
		engine:    eng,
		library:   lib,
		logger:    slog.Default(),
		version:   "unknown",
		retention: arena.DefaultConfig().Retention,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("starting http server", slog.String("address", address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("arena/api: server failed: %w", err)
	}
	return nil
}

// Handler builds the route tree with all middleware applied.
func (s *Server) Handler() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(slogBackend{s.logger}),
		rest.Throttle(1000),
		rest.AppInfo("arena", "lemon-tea-ai", s.version),
		rest.Ping,
		rest.Trace,
	)

	router.Mount("/v1").Route(func(v1 *routegroup.Bundle) {
		v1.Use(rest.NoCache)

		// job endpoints carry small JSON bodies only
		v1.With(rest.SizeLimit(jsonBodyLimit)).Route(func(jobs *routegroup.Bundle) {
			jobs.HandleFunc("POST /compare", s.handleCreateCompare)
			jobs.HandleFunc("POST /batch-compare", s.handleCreateBatch)
			jobs.HandleFunc("GET /jobs", s.handleListJobs)
			jobs.HandleFunc("GET /jobs/{id}", s.handleGetJob)
			jobs.HandleFunc("GET /jobs/{id}/result", s.handleJobResult)
			jobs.HandleFunc("POST /jobs/{id}/cancel", s.handleCancelJob)
			jobs.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
			jobs.HandleFunc("POST /jobs/cleanup", s.handleCleanup)
			jobs.HandleFunc("GET /models", s.handleListModels)
		})

		// uploads stream; the library owns the size cap
		v1.HandleFunc("POST /documents", s.handleUploadDocument)
		v1.With(rest.SizeLimit(jsonBodyLimit)).Route(func(docs *routegroup.Bundle) {
			docs.HandleFunc("GET /documents", s.handleListDocuments)
			docs.HandleFunc("GET /documents/{id}", s.handleGetDocument)
			docs.HandleFunc("GET /documents/{id}/content", s.handleDocumentContent)
			docs.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
		})
	})

	return router
}

// slogBackend adapts slog to the Logf interface rest.Recoverer expects.
type slogBackend struct {
	l *slog.Logger
}

func (b slogBackend) Logf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...))
}

// writeJSON sends v with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", slog.String("error", err.Error()))
	}
}

// writeError maps domain sentinels to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, arena.ErrJobNotFound), errors.Is(err, arena.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, arena.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, arena.ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, arena.ErrDocumentTooLarge):
		status = http.StatusRequestEntityTooLarge
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	s.writeJSON(w, status, rest.JSON{"error": err.Error()})
}
