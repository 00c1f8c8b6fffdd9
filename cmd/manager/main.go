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
	"github.com/spec-kit/doorman/internal/gateway"
	"github.com/spec-kit/doorman/internal/observability"
	"github.com/spec-kit/doorman/internal/persistence"
)

// manager verifies doorman-issued tokens locally with the shared secret, so
// it never calls doorman on the request path.
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
	logger = logger.With(zap.String("service", "manager"))

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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	pipeline, err := gateway.NewPipeline(gateway.CachingFilters(cfg.Gateway.CachePaths, cfg.Gateway.PrivateCachePaths), gateway.PipelineDeps{
		Tokens:  tokens,
		Archive: gateway.NewRedisArchive(redis.Client, cfg.Gateway.CachePrefix, cfg.Gateway.CacheTTL()),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal("failed to build gateway pipeline", zap.Error(err))
	}

	app := httptransport.NewApp("manager", logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterGatewayRoutes(app, httptransport.GatewayRouteConfig{
		Health:   handlers.NewHealthHandler("manager", cfg.App.Version, map[string]handlers.Pinger{"redis": redis}),
		Pipeline: pipeline.Handle,
		Upstream: gateway.Upstream(cfg.Gateway.UpstreamURL, logger),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("upstream", cfg.Gateway.UpstreamURL))
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
