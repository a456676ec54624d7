package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cinerate/apiserver/config"
	"github.com/cinerate/apiserver/internal/handlers"
	"github.com/cinerate/apiserver/internal/logging"
	"github.com/cinerate/apiserver/internal/metrics"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	deps       *Deps
	logger     *slog.Logger
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	deps, err := Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	router := NewRouter(cfg, deps, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
		deps:   deps,
		logger: logger,
	}, nil
}

// NewRouter mounts every route on a fresh chi router.
func NewRouter(cfg config.Config, deps *Deps, logger *slog.Logger) *chi.Mux {
	auth := handlers.NewAuthHandler(deps.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		metrics.Middleware,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Route("/movies", func(r chi.Router) {
		handlers.MovieRouter(r, handlers.NewMovieHandler(deps.Reviews, logger), auth.RequireAuth)
	})
	router.Route("/reviews", func(r chi.Router) {
		handlers.ReviewRouter(r, handlers.NewReviewHandler(deps.Reviews, deps.Moderation, logger), auth.RequireAuth)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, handlers.NewAdminHandler(deps.Moderation, logger), auth.RequireAuth)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the database and
// brokers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.deps.Close())
}
