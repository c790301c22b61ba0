// Package server builds the router and runs the HTTP listener.
//
// This package is the "wiring" layer: it opens the user store, builds the
// services and handlers, and decides which middleware runs on which routes.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → openStore → repository.UserRepository
//	              → AuthService / ProfileService / AdminService
//	              → AccountHandler, GitHubHandler → routes
//
// Everything is assembled in New/setupRoutes (the composition root).
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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/config"
	"github.com/sakif/account-portal/internal/handler"
	"github.com/sakif/account-portal/internal/middleware"
	"github.com/sakif/account-portal/internal/repository"
	"github.com/sakif/account-portal/internal/repository/postgres"
	sqliteRepo "github.com/sakif/account-portal/internal/repository/sqlite"
	"github.com/sakif/account-portal/internal/service"
)

// shutdownGrace bounds how long Start waits for in-flight requests.
const shutdownGrace = 30 * time.Second

// storeOpenTimeout covers connecting to postgres and running migrations.
const storeOpenTimeout = 30 * time.Second

// Server owns the router and the store behind it. closeStore releases the
// store (sqlite file or pgx pool) once the listener has drained.
type Server struct {
	router     *chi.Mux
	config     *config.Config
	logger     *slog.Logger
	users      repository.UserRepository
	closeStore func()
}

// New opens the configured store and builds the router.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()

	users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := NewWithRepository(cfg, users, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	s.closeStore = closeStore
	return s, nil
}

// NewWithRepository builds the router over an already opened store. The
// caller keeps ownership of users.
func NewWithRepository(cfg *config.Config, users repository.UserRepository, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		users:      users,
		closeStore: func() {},
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("server: routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// openStore picks the repository implementation by DB_DRIVER.
//
//   - sqlite:   a local file, created on first start (default)
//   - postgres: the hosted instance; embedded migrations run before serving
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Init(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		if err := postgres.RunMigrations(cfg.Database.URL, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrating postgres: %w", err)
		}
		return postgres.New(pool, logger), pool.Close, nil

	default:
		if cfg.Database.Path != ":memory:" {
			// Like `mkdir -p`: create the data directory if needed.
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("closing sqlite", slog.String("error", err.Error()))
			}
		}
		return db, closeDB, nil
	}
}

// sessionCodec signs the cookie when a secret is configured.
func sessionCodec(cfg *config.Config) (auth.Codec, error) {
	if cfg.Session.Secret == "" {
		return auth.PlainCodec{}, nil
	}
	return auth.NewTokenService(cfg.Session.Secret, cfg.Session.TTL)
}

// setupRoutes builds the services and mounts every route.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                 → liveness
//	GET  /metrics                 → Prometheus scrape
//	POST /api/signup|signin|edit  → JSON API (CORS, not guarded)
//	GET  /auth/github/login       → OAuth start (only when configured)
//	GET  /auth/github/callback    → OAuth finish
//	GET  /signin, /signup         → entry points (guarded: signed-in users go to /mypage)
//	POST /signin, /signup         → form actions
//	GET  /mypage                  → current user
//	POST /mypage/signout|edit|delete
//	GET  /admin/users?page=N      → admin listing
//
// Global middleware, outermost first:
//  1. RequestID: assigns an id the logger picks up
//  2. RealIP: client IP from proxy headers
//  3. Recoverer: a panic becomes a 500
//  4. Logger, Metrics: one log line and one observation per request
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)

	policy, err := service.ParsePasswordPolicy(s.config.PasswordPolicy)
	if err != nil {
		return err
	}
	codec, err := sessionCodec(s.config)
	if err != nil {
		return err
	}

	sessions := auth.NewSessionManager(s.config.IsProduction(), codec)
	hasher := auth.NewPasswordService()

	accounts := service.NewAuthService(s.users, hasher, policy, service.DefaultPaths, s.logger)
	profiles := service.NewProfileService(s.users, hasher, policy, s.logger)
	admin := service.NewAdminService(s.users, s.logger)
	accountHandler := handler.NewAccountHandler(accounts, profiles, admin, sessions, s.config.AdminPageSize, s.logger)

	// === Ops ===
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.router.Handle("/metrics", promhttp.Handler())

	// === JSON API ===
	// Browsers on another origin may call these; the cookie travels with
	// credentials, so origins must be listed explicitly.
	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Post("/signup", accountHandler.HandleAPISignup)
		r.Post("/signin", accountHandler.HandleAPISignIn)
		r.Post("/edit", accountHandler.HandleAPIEdit)
	})

	// === GitHub OAuth ===
	if s.config.GitHub.Enabled() {
		provider := auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
		)
		gh := handler.NewGitHubHandler(provider, accounts, sessions, s.config.IsProduction(), s.logger)
		s.router.Get("/auth/github/login", gh.HandleLogin)
		s.router.Get("/auth/github/callback", gh.HandleCallback)
	} else {
		s.logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set, GitHub login disabled")
	}

	// === Guarded page routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.Guard(auth.DefaultGuardPaths))

		r.Get("/signin", handler.HandleEntryPage)
		r.Get("/signup", handler.HandleEntryPage)
		r.Post("/signup", accountHandler.HandleSignup)
		r.Post("/signin", accountHandler.HandleSignIn)

		r.Get("/mypage", accountHandler.HandleMyPage)
		r.Post("/mypage/signout", accountHandler.HandleSignOut)
		r.Post("/mypage/edit", accountHandler.HandleEdit)
		r.Post("/mypage/delete", accountHandler.HandleDelete)

		r.Get("/admin/users", accountHandler.HandleAdminUsers)
	})

	return nil
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to shutdownGrace before releasing the store.
func (s *Server) Start() error {
	defer s.closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening",
			slog.String("addr", httpServer.Addr),
			slog.String("env", s.config.Env),
			slog.String("driver", s.config.Database.Driver),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", slog.Duration("grace", shutdownGrace))

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("stopped")
		return nil
	})
	return g.Wait()
}
