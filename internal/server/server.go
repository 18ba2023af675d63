// Package server provides the HTTP API: accounts, saved analyses and job ranking.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/jonathan/jobtrust/internal/config"
	"github.com/jonathan/jobtrust/internal/observability"
	"github.com/jonathan/jobtrust/internal/ranking"
	"github.com/jonathan/jobtrust/internal/server/middleware"
	"github.com/jonathan/jobtrust/internal/server/ratelimit"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        Config

	store       Store
	ranker      *ranking.Ranker
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	auth        *AuthHandler
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port             int
	CORSAllowOrigins []string
	RateLimit        ratelimit.Config
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
}

// Deps are the collaborators the server is built from.
type Deps struct {
	Store    Store
	Ranker   *ranking.Ranker
	JWT      *config.JWTConfig
	Password *config.PasswordConfig
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Ranker == nil || deps.JWT == nil || deps.Password == nil {
		return nil, errors.New("server: store, ranker, JWT and password config are required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	logger := observability.OrNop(deps.Logger)

	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		ranker:      deps.Ranker,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit, logger),
		jwtService:  NewJWTService(deps.JWT),
		userService: NewUserService(deps.Store, deps.Password),
		metrics:     deps.Metrics,
		logger:      logger,
	}
	s.auth = NewAuthHandler(s.userService, s.jwtService, logger)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Users exposes the user service, for seeding.
func (s *Server) Users() *UserService {
	return s.userService
}

// Router builds the HTTP handler with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.withLogging)
	r.Use(s.metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: originsOrAll(s.cfg.CORSAllowOrigins),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimiter.Middleware)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", s.auth.Register)
		r.Post("/login", s.auth.Login)
		r.Get("/users/count", s.auth.CountUsers)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(s.jwtService.AsTokenValidator()))

			r.Get("/verify", s.auth.Verify)
			r.Get("/user", s.auth.GetUser)
			r.Put("/user", s.auth.UpdateUser)
			r.Put("/user/password", s.auth.UpdatePassword)

			r.Post("/rank_jobs", s.handleRankJobs)

			r.Route("/analyses", func(r chi.Router) {
				r.Get("/", s.handleListAnalyses)
				r.Post("/", s.handleCreateAnalysis)
				r.Delete("/", s.handleClearAnalyses)
				r.Get("/latest", s.handleLatestAnalysis)
				r.Get("/stats", s.handleAnalysisStats)
				r.Get("/ranked", s.handleRankHistory)
				r.Get("/{id}", s.handleGetAnalysis)
				r.Delete("/{id}", s.handleDeleteAnalysis)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withLogging logs one line per request
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func originsOrAll(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
