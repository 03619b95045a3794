package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	"github.com/mohammadpnp/tabular-import/internal/bootstrap"
	"github.com/mohammadpnp/tabular-import/internal/config"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	"github.com/mohammadpnp/tabular-import/internal/domain/targets"
	infrafile "github.com/mohammadpnp/tabular-import/internal/infrastructure/file"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/repository"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/session"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/tabular"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dbs, err := bootstrap.OpenDatabases(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	defer dbs.Close()

	registry, err := targets.NewRegistry()
	if err != nil {
		logger.Fatalf("failed to build entity registry: %v", err)
	}
	stores, err := repository.NewEntityStores(dbs.Pool, registry)
	if err != nil {
		logger.Fatalf("failed to build entity stores: %v", err)
	}

	sessions := newSessionStore(ctx, cfg, logger)
	runs := repository.NewImportRunRepository(dbs.Gorm)
	pipeline, err := app.NewPipeline(registry, stores, sessions, logger, cfg.Pipeline(), app.WithRunRepository(runs))
	if err != nil {
		logger.Fatalf("failed to build import pipeline: %v", err)
	}

	server := bootstrap.NewHTTPServer(cfg, logger, bootstrap.Dependencies{
		Registry: registry,
		Pipeline: pipeline,
		Parser:   tabular.NewParser(cfg.Import.MaxRows),
		Source:   infrafile.NewLocalSource(cfg.Import.BaseDir),
		Runs:     runs,
	})

	go func() {
		logger.WithField("port", cfg.Port).Info("http server listening")
		if err := server.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
	stop()
}

// newSessionStore picks Redis when REDIS_URL is set so sessions survive a
// restart and are shared between replicas; otherwise sessions live in memory.
func newSessionStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) domain.SessionStore {
	if cfg.RedisURL == "" {
		store := session.NewMemoryStore(cfg.Import.SessionTTL)
		store.StartSweeper(ctx, time.Minute, logger)
		return store
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatalf("failed to reach redis: %v", err)
	}
	logger.Info("using redis session store")
	return session.NewRedisStore(client, cfg.Import.SessionTTL)
}
