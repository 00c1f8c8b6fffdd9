package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/doorman/internal/api/http"
	"github.com/spec-kit/doorman/internal/api/http/handlers"
	"github.com/spec-kit/doorman/internal/auth"
	"github.com/spec-kit/doorman/internal/config"
	"github.com/spec-kit/doorman/internal/observability"
	"github.com/spec-kit/doorman/internal/persistence"
	"github.com/spec-kit/doorman/internal/repository"
	"github.com/spec-kit/doorman/internal/service"
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
	logger = logger.With(zap.String("service", cfg.App.Name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := auth.NewTokenStore(auth.TokenStoreConfig{
		Secret:             cfg.Auth.JWTSecret,
		ExpirationSeconds:  cfg.Auth.TokenExpirationSeconds,
		AllowDefaultSecret: cfg.Auth.AllowDefaultSecret,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal("failed to build token store", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	authService, err := service.NewAuthService(service.AuthDependencies{
		UserRepo: repository.NewUserRepository(pg.Pool),
		Tokens:   tokens,
		Hasher:   auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to build auth service", zap.Error(err))
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{"postgres": pg}),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
