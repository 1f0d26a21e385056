package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httpapi "github.com/spec-kit/portal-service/internal/api/http"
	"github.com/spec-kit/portal-service/internal/api/http/handlers"
	"github.com/spec-kit/portal-service/internal/auth"
	"github.com/spec-kit/portal-service/internal/config"
	"github.com/spec-kit/portal-service/internal/enforcer"
	"github.com/spec-kit/portal-service/internal/events"
	"github.com/spec-kit/portal-service/internal/observability"
	"github.com/spec-kit/portal-service/internal/persistence"
	"github.com/spec-kit/portal-service/internal/policy"
	"github.com/spec-kit/portal-service/internal/repository"
	"github.com/spec-kit/portal-service/internal/service"
	"github.com/spec-kit/portal-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	resolver, err := policy.Load(cfg.Policy.TablePath)
	if err != nil {
		logger.Fatal("policy table load failed",
			zap.String("path", cfg.Policy.TablePath), zap.Error(err))
	}
	logger.Info("policy table loaded", zap.Strings("roles", resolver.Roles()))

	var enf enforcer.Enforcer
	if cfg.Enforcer.BaseURL != "" {
		enf = enforcer.NewHTTP(enforcer.HTTPConfig{
			BaseURL:          cfg.Enforcer.BaseURL,
			RequestTimeout:   cfg.Enforcer.RequestTimeout(),
			BreakerMaxReqs:   uint32(cfg.Enforcer.BreakerMaxRequests),
			BreakerInterval:  time.Duration(cfg.Enforcer.BreakerIntervalSeconds) * time.Second,
			BreakerTimeout:   time.Duration(cfg.Enforcer.BreakerTimeoutSeconds) * time.Second,
			BreakerThreshold: uint32(cfg.Enforcer.BreakerFailureThreshold),
		}, logger)
		logger.Info("using http enforcer", zap.String("base_url", cfg.Enforcer.BaseURL))
	} else {
		enf = enforcer.NewNoop(logger)
		logger.Warn("ENFORCER_BASE_URL not set; enforcement is a no-op")
	}

	dispatcher := events.NewInMemoryDispatcher()
	audit := service.NewAuditService(dispatcher, logger, cfg.Audit)
	audit.RegisterHandlers()

	metrics := observability.NewMetrics()
	for _, typ := range events.AllTypes() {
		dispatcher.Subscribe(typ, func(_ context.Context, e events.Event) error {
			metrics.RecordEvent(string(e.Type))
			return nil
		})
	}

	sessions := repository.NewSessionRepository(rdb.Client, cfg.Sweep.Grace())
	users := repository.NewPortalUserRepository(pg.PoolHandle())

	revokeQueue := worker.NewRevokeQueue(enf, dispatcher, logger, cfg.Revoke, cfg.Enforcer.RequestTimeout())
	revokeQueue.Start(ctx)

	sweeper := worker.NewSweepWorker(sessions, revokeQueue, dispatcher, logger,
		cfg.Sweep.Interval(), cfg.Sweep.BatchSize)
	sweeper.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	passwords := auth.NewPasswords(cfg.Auth.BcryptCost)
	verifier := service.NewCredentialVerifier(users, passwords)
	locks := service.NewKeyLock()

	authSvc := service.NewAuthService(service.AuthDependencies{
		Sessions:       sessions,
		Verifier:       verifier,
		Resolver:       resolver,
		Enforcer:       enf,
		Revokes:        revokeQueue,
		Tokens:         tokens,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Locks:          locks,
		EnforceTimeout: cfg.Enforcer.RequestTimeout(),
	})
	statusSvc := service.NewStatusService(sessions)
	logoutSvc := service.NewLogoutService(service.LogoutDependencies{
		Sessions:       sessions,
		Enforcer:       enf,
		Revokes:        revokeQueue,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Locks:          locks,
		EnforceTimeout: cfg.Enforcer.RequestTimeout(),
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httpapi.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httpapi.RegisterRoutes(app, httpapi.RouteConfig{
		Portal: handlers.NewPortalHandler(authSvc, statusSvc, logoutSvc),
		Health: handlers.NewHealthHandler(rdb, pg),
	})

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}

	revokeQueue.Wait()
	sweeper.Wait()
	logger.Info("bye")
	_ = os.Stdout.Sync()
}
