// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/secretum/internal/auth"
	"github.com/sakif/secretum/internal/config"
	"github.com/sakif/secretum/internal/handler"
	"github.com/sakif/secretum/internal/middleware"
	sqliteRepo "github.com/sakif/secretum/internal/repository/sqlite"
	"github.com/sakif/secretum/internal/service"
)

// Server owns the router, the database handle and the services behind them.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	tokens *auth.TokenService
}

// ProvidersFromConfig registers every OAuth provider whose credentials are
// configured.
func ProvidersFromConfig(cfg config.Config) auth.Registry {
	var providers []auth.Provider
	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret))
	}
	if cfg.VKEnabled() {
		providers = append(providers, auth.NewVKProvider(cfg.VKClientID, cfg.VKClientSecret))
	}
	return auth.NewRegistry(providers...)
}

// New opens the database at cfg.DBPath and wires the full dependency graph.
func New(cfg config.Config, logger *slog.Logger, providers auth.Registry) (*Server, error) {
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, err
	}

	if len(providers) == 0 {
		logger.Warn("no OAuth provider configured, sign-in is unavailable")
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		tokens: tokens,
	}
	s.setupRoutes(providers)
	return s, nil
}

// setupRoutes mounts:
//
//	GET  /healthz                 liveness
//	GET  /auth/{provider}/url     provider consent URL
//	POST /auth/login              code → token
//	GET  /api/balance             profile and balance       (token required)
//	POST /api/balance             add / subtract            (token required)
//	POST /api/promo               redeem a promo code       (token required)
func (s *Server) setupRoutes(providers auth.Registry) {
	resolver := service.NewIdentityResolver(s.db.Users(), s.config.EmailDomain, s.logger)
	authService := service.NewAuthService(providers, resolver, s.tokens, s.logger)
	ledger := service.NewLedgerService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	walletHandler := handler.NewWalletHandler(ledger, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/url", authHandler.HandleAuthURL)
		r.Post("/login", authHandler.HandleLogin)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens))
		r.Use(middleware.RecordIdentity)

		r.Get("/balance", walletHandler.HandleGetBalance)
		r.Post("/balance", walletHandler.HandleAdjustBalance)
		r.Post("/promo", walletHandler.HandleRedeem)
	})
}

// Handler returns the root handler with HTTP tracing around the router.
// Health checks are not traced.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz"
		}),
	)
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until SIGINT/SIGTERM or ctx is cancelled, then drains
// in-flight requests for up to 30 seconds and closes the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
