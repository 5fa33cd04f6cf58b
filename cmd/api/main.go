package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/credential-service/internal/api/http"
	"github.com/spec-kit/credential-service/internal/api/http/handlers"
	"github.com/spec-kit/credential-service/internal/auth"
	"github.com/spec-kit/credential-service/internal/config"
	"github.com/spec-kit/credential-service/internal/events"
	"github.com/spec-kit/credential-service/internal/observability"
	"github.com/spec-kit/credential-service/internal/persistence"
	"github.com/spec-kit/credential-service/internal/repository"
	"github.com/spec-kit/credential-service/internal/service"
	"github.com/spec-kit/credential-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	identities, closeStore := openCredentialStore(ctx, cfg, logger)
	defer closeStore()

	metrics := observability.NewMetrics(cfg.App.Name)
	dispatcher := events.NewInMemoryDispatcher()

	var forwarder service.EventForwarder
	if cfg.Events.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.AMQPExchange, logger)
		if err != nil {
			logger.Fatal("failed to connect amqp", zap.Error(err))
		}
		defer publisher.Close()
		forwarder = publisher
	}
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, forwarder))

	authService, err := service.NewAuthService(*cfg, service.AuthDependencies{
		IdentityRepo: identities,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}

	app := httptransport.NewApp(cfg.App, logger, metrics, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Driver, authService),
		Identity:       handlers.NewIdentityHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// openCredentialStore connects the configured backend and returns a cleanup func.
func openCredentialStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.IdentityRepository, func()) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		return repository.NewPostgresIdentityRepository(pg.PoolHandle()), pg.Close
	case config.StoreRedis:
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		return repository.NewRedisIdentityRepository(redis.Client, cfg.Redis.KeyPrefix), redis.Close
	default:
		logger.Warn("using in-memory credential store; identities are lost on restart")
		return repository.NewMemoryIdentityRepository(), func() {}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
