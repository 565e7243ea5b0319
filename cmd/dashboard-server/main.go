// cmd/dashboard-server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"influence-dashboard/internal/analytics"
	"influence-dashboard/internal/common/config"
	"influence-dashboard/internal/common/database"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/observability"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/internal/server"
	"influence-dashboard/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	log.Info("starting dashboard server", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New("dashboard-server", log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, rdb := openCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	prefs, db := openPreferences(ctx, cfg, log)
	if db != nil {
		defer db.Close()
	}

	analyticsClient := analytics.NewClient(analytics.Config{
		BaseURL: cfg.Analytics.BaseURL,
		APIKey:  cfg.Analytics.APIKey,
		Timeout: config.GetDuration(cfg.Analytics.Timeout),
	}, log)

	service := dashboard.NewService(analyticsClient, cache, dashboard.ConfigFrom(cfg.Dashboard), log)
	boards := dashboard.NewBoards(service, obs, log)

	srv := server.NewServer(cfg.Server, service, boards, prefs, log)

	go func() {
		log.Info("http server listening", map[string]interface{}{"addr": cfg.Server.Addr()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed", nil)
	}
	log.Info("dashboard server stopped gracefully", nil)
}

// openCache returns the configured session result cache. A redis backend
// that cannot be reached falls back to the in-process cache.
func openCache(ctx context.Context, cfg *config.Config, log logger.Logger) (session.Cache, *redis.Client) {
	ttl := config.GetDuration(cfg.Cache.TTL)
	if cfg.Cache.Backend != "redis" {
		return session.NewMemoryCache(ttl), nil
	}

	var rdb *redis.Client
	err := database.ConnectWithRetry(ctx, "redis", 5, time.Second, log, func(ctx context.Context) error {
		c, err := database.NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return err
		}
		rdb = c
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("redis unavailable, using in-memory cache", nil)
		return session.NewMemoryCache(ttl), nil
	}

	log.Info("redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})
	return session.NewRedisCache(rdb, ttl, log), rdb
}

// openPreferences returns the postgres store when a database is configured
// and the in-memory store otherwise.
func openPreferences(ctx context.Context, cfg *config.Config, log logger.Logger) (session.PreferenceStore, *sql.DB) {
	if !cfg.Database.Postgres.Enabled() {
		log.Info("no preferences database configured, using in-memory store", nil)
		return session.NewMemoryPreferences(), nil
	}

	var db *sql.DB
	err := database.ConnectWithRetry(ctx, "postgres", 10, 2*time.Second, log, func(ctx context.Context) error {
		c, err := database.NewPostgres(ctx, cfg.Database.Postgres)
		if err != nil {
			return err
		}
		db = c
		return nil
	})
	if err != nil {
		log.WithError(err).Error("postgres unavailable, using in-memory preferences", nil)
		return session.NewMemoryPreferences(), nil
	}

	store := session.NewPostgresPreferences(db, log)
	if err := store.EnsureSchema(ctx); err != nil {
		log.WithError(err).Error("failed to create preferences table", nil)
		_ = db.Close()
		return session.NewMemoryPreferences(), nil
	}

	log.Info("postgres connected", map[string]interface{}{"database": cfg.Database.Postgres.Database})
	return store, db
}
