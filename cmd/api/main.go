package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/portal-auth/internal/api/http"
	"github.com/spec-kit/portal-auth/internal/api/http/handlers"
	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/config"
	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/observability"
	"github.com/spec-kit/portal-auth/internal/persistence"
	"github.com/spec-kit/portal-auth/internal/repository"
	"github.com/spec-kit/portal-auth/internal/service"
	"github.com/spec-kit/portal-auth/internal/session"
	"github.com/spec-kit/portal-auth/internal/worker"
	"github.com/spec-kit/portal-auth/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	pool := pg.PoolHandle()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, migrations.Files, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	checks := map[string]handlers.Pinger{"postgres": pg}
	storeOpts := []session.Option{session.WithIdleTimeout(cfg.Session.IdleTimeout())}
	var sessions session.Store
	switch cfg.Session.Backend {
	case "redis":
		redis, err := persistence.NewRedis(ctx, cfg.Redis, true, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		checks["redis"] = redis
		sessions = session.NewRedisStore(redis.Client, storeOpts...)
	default:
		sessions = session.NewMemoryStore(storeOpts...)
	}
	logger.Info("session store ready", zap.String("backend", cfg.Session.Backend))

	codec, err := auth.NewTokenCodec(cfg.Auth.SupportTokenSecret, cfg.Auth.SupportTokenTTL())
	if err != nil {
		logger.Fatal("failed to init token codec", zap.Error(err))
	}
	cookies := auth.NewCookieAdapter(codec, auth.CookieSettings{
		Domain:         cfg.Cookie.Domain,
		Secure:         cfg.Cookie.Secure,
		CustomerMaxAge: cfg.Session.MaxAge(),
	}, logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	events.RegisterAuditLog(dispatcher, logger)

	authService := service.NewAuthService(service.AuthDependencies{
		Customers:    repository.NewCustomerRepository(pool),
		SupportUsers: repository.NewSupportUserRepository(pool),
		Sessions:     sessions,
		Tokens:       codec,
		Events:       dispatcher,
		Logger:       logger,
		BcryptCost:   cfg.Auth.BcryptCost,
	})
	authMiddleware := auth.NewAuthMiddleware(cookies, sessions, auth.MustPolicyMatrix(auth.DefaultRules()...), logger,
		auth.WithDecisionRecorder(metrics),
		auth.WithSupportSessionRequired(cfg.Auth.SupportRequireSession),
	)

	sweeper := worker.NewSessionSweeper(sessions, dispatcher, logger, cfg.Session.SweepInterval(), cfg.Session.MaxAge())
	sweeperDone := sweeper.Start(ctx)

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Auth:           handlers.NewAuthHandler(authService, cookies),
		Me:             handlers.NewMeHandler(authService),
		Admin:          handlers.NewAdminHandler(authService),
		Tenant:         handlers.NewTenantHandler(),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
		LoginLimiter:   httptransport.LoginRateLimit(cfg.Auth.LoginRatePerSecond, cfg.Auth.LoginBurst, logger),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	<-sweeperDone
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
