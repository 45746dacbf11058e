// Package api exposes the worker registry over HTTP.
//
// Routes:
//
//	POST   /workers               start a worker
//	GET    /workers               list worker ids
//	GET    /workers/{id}          latest art of a worker
//	DELETE /workers/{id}          stop a worker
//	POST   /workers/{id}/posts    submit a direct post
//	POST   /workers/{id}/blocked  block a feed user
//	GET    /healthz
//	GET    /metrics               Prometheus exposition
//
// [Client] is the matching Go client used by the CLI.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/mosaic/pkg/worker"
)

// DefaultMaxBodyBytes bounds request bodies; origins are sent inline.
const DefaultMaxBodyBytes = 64 << 20

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// Config wires a Server.
type Config struct {
	Registry *worker.Registry
	Logger   *log.Logger
	// Metrics serves /metrics. Nil uses promhttp.Handler().
	Metrics      http.Handler
	MaxBodyBytes int64
	// Defaults seeds the options of every started worker, e.g. the fill
	// boost and globally blocked users from the config file.
	Defaults worker.Options
}

// Server is the HTTP front of a worker registry.
type Server struct {
	registry *worker.Registry
	logger   *log.Logger
	metrics  http.Handler
	maxBody  int64
	defaults worker.Options
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	s := &Server{
		registry: cfg.Registry,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		maxBody:  cfg.MaxBodyBytes,
		defaults: cfg.Defaults,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Route("/workers", func(r chi.Router) {
		r.Post("/", s.startWorker)
		r.Get("/", s.listWorkers)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getArt)
			r.Delete("/", s.stopWorker)
			r.Post("/posts", s.addPost)
			r.Post("/blocked", s.blockUser)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
