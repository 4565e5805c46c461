package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	osrm "github.com/biddyweb/go-osrm"
	"github.com/biddyweb/go-osrm/engine"
	"github.com/biddyweb/go-osrm/internal/store"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second

	tracerName = "github.com/biddyweb/go-osrm/internal/api"
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router          *chi.Mux
	store           store.Store
	registry        *engine.Registry
	osrm            *osrm.OSRM
	logger          *slog.Logger
	tracer          trace.Tracer
	addr            string
	shutdownTimeout time.Duration
}

// NewServer creates and configures a new HTTP server. A non-positive
// shutdownTimeout falls back to ten seconds.
func NewServer(addr string, st store.Store, reg *engine.Registry, o *osrm.OSRM, logger *slog.Logger, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	srv := &Server{
		router:          chi.NewRouter(),
		store:           st,
		registry:        reg,
		osrm:            o,
		logger:          logger,
		tracer:          otel.Tracer(tracerName),
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	// OSRM 4.x query surface.
	s.router.Get("/viaroute", s.handleViaroute)
	s.router.Get("/locate", s.handleLocate)
	s.router.Get("/nearest", s.handleNearest)
	s.router.Get("/table", s.handleTable)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/route", s.handleQueryRoute)
		r.Post("/locate", s.handleQueryLocate)
		r.Post("/nearest", s.handleQueryNearest)
		r.Post("/table", s.handleQueryTable)

		r.Get("/queries", s.handleListQueries)
		r.Get("/queries/{id}", s.handleGetQuery)
		r.Get("/stats", s.handleGetStats)
		r.Get("/engines", s.handleListEngines)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
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
		)
	})
}
