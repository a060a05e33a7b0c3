package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/domain/notifications"
	"leavedesk/internal/platform/config"
	"leavedesk/internal/platform/db"
	"leavedesk/internal/platform/email"
	"leavedesk/internal/platform/jobs"
	"leavedesk/internal/platform/logging"
	"leavedesk/internal/platform/metrics"
	"leavedesk/internal/storage/memory"
	"leavedesk/internal/storage/postgres"
	"leavedesk/internal/storage/sqlite"
	"leavedesk/internal/transport/http/api"
	authhandler "leavedesk/internal/transport/http/handlers/auth"
	employeeshandler "leavedesk/internal/transport/http/handlers/employees"
	leavehandler "leavedesk/internal/transport/http/handlers/leave"
	"leavedesk/internal/transport/http/middleware"
)

// Storage is a leave store the readiness probe can ping.
type Storage interface {
	leave.Store
	Ping(ctx context.Context) error
}

type App struct {
	Config  config.Config
	Log     zerolog.Logger
	Store   Storage
	Engine  *leave.Engine
	Admin   *leave.Admin
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler

	stopJobs context.CancelFunc
	closers  []func()
}

// New wires storage, domain services, background jobs and the HTTP router. The caller owns
// the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.New(cfg)
	app := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	store, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	registry := leave.NewRegistry(uuid.NewString, time.Now)
	ledger := leave.NewLedger(log, uuid.NewString, time.Now)

	if cfg.RunSeed {
		if err := db.Seed(ctx, store, registry, cfg, log); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.Jobs = jobs.New(log, cfg.NotifyQueueSize)
	notifier := notifications.New(app.Jobs, email.New(cfg, log), cfg.EmailFrom, log)

	app.Engine = leave.NewEngine(store, registry, ledger, leave.NewValidator(), audit.New(), notifier, log,
		leave.WithTransitionHook(func(a leave.Action) { app.Metrics.Transition(string(a)) }),
	)
	app.Admin = leave.NewAdmin(store, registry, ledger, notifier, log)

	if cfg.CarryForwardSchedule != "" {
		err := app.Jobs.ScheduleRollover(cfg.CarryForwardSchedule, func(ctx context.Context, toYear int) (any, error) {
			return app.Admin.Rollover(ctx, toYear)
		})
		if err != nil {
			app.Close()
			return nil, err
		}
	}
	jobsCtx, cancel := context.WithCancel(context.Background())
	app.stopJobs = cancel
	app.Jobs.Start(jobsCtx)

	app.Router = app.routes()
	return app, nil
}

func (a *App) openStore(ctx context.Context) (Storage, error) {
	cfg := a.Config
	switch cfg.StorageDriver {
	case config.DriverMemory:
		a.Log.Warn().Msg("using in-memory storage, data is lost on exit")
		return memory.New(cfg.LockTimeout), nil
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.SQLitePath, cfg.LockTimeout, a.Log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	default:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir, a.Log); err != nil {
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		return postgres.New(pool, cfg.LockTimeout, a.Log), nil
	}
}

func (a *App) routes() http.Handler {
	cfg := a.Config
	perms := auth.StaticPermissions{}

	router := chi.NewRouter()
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Log, a.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, middleware.UserCheckerFunc(a.userActive)))
	router.Use(middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(a.Store, cfg.JWTSecret, cfg.JWTTTL).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			employeeshandler.NewHandler(a.Admin, perms).RegisterRoutes(r)
			leavehandler.NewHandler(a.Engine, a.Admin, perms, a.Jobs).RegisterRoutes(r)
		})
	})

	return router
}

// userActive lets a deactivated account's outstanding tokens stop working.
func (a *App) userActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := a.Store.WithinTx(ctx, func(tx leave.Tx) error {
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		active = u.Active
		return nil
	})
	if errors.Is(err, leave.ErrNotFound) {
		return false, nil
	}
	return active, err
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info().Str("addr", a.Config.Addr).Str("storage", a.Config.StorageDriver).Msg("leavedesk listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.Log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (a *App) Close() {
	if a.stopJobs != nil {
		a.stopJobs()
		a.Jobs.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
