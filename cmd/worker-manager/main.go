// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"influence-dashboard/internal/analytics"
	"influence-dashboard/internal/common/camunda"
	"influence-dashboard/internal/common/config"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/observability"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/pkg/registry"

	ct "influence-dashboard/internal/workers/insights/classify-trend"
	ce "influence-dashboard/internal/workers/insights/compare-entities"
	ftm "influence-dashboard/internal/workers/insights/fetch-top-movers"
	re "influence-dashboard/internal/workers/insights/rank-entities"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthAddr = ":9091"

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	log.Info("starting worker manager", map[string]interface{}{"version": cfg.App.Version})

	obs := observability.New("worker-manager", log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zeebeClient, err := camunda.Connect(ctx, camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebeClient.Close()
	log.Info("zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	analyticsClient := analytics.NewClient(analytics.Config{
		BaseURL: cfg.Analytics.BaseURL,
		APIKey:  cfg.Analytics.APIKey,
		Timeout: config.GetDuration(cfg.Analytics.Timeout),
	}, log)

	// Workers carry no session, so the service runs without a result cache.
	service := dashboard.NewService(analyticsClient, nil, dashboard.ConfigFrom(cfg.Dashboard), log)

	manager := camunda.NewManager(zeebeClient, log)

	rankCfg := re.LoadConfig()
	rankCfg.Timeout = workerTimeout(cfg, re.TaskType, rankCfg.Timeout)
	manager.Start(re.TaskType, config.GetWorkerConfig(cfg, re.TaskType), re.NewHandler(rankCfg, log))

	compareCfg := ce.LoadConfig()
	compareCfg.Timeout = workerTimeout(cfg, ce.TaskType, compareCfg.Timeout)
	manager.Start(ce.TaskType, config.GetWorkerConfig(cfg, ce.TaskType), ce.NewHandler(compareCfg, log))

	trendCfg := ct.LoadConfig()
	trendCfg.Timeout = workerTimeout(cfg, ct.TaskType, trendCfg.Timeout)
	manager.Start(ct.TaskType, config.GetWorkerConfig(cfg, ct.TaskType), ct.NewHandler(trendCfg, log))

	moversCfg := ftm.LoadConfig()
	moversCfg.Timeout = workerTimeout(cfg, ftm.TaskType, moversCfg.Timeout)
	manager.Start(ftm.TaskType, config.GetWorkerConfig(cfg, ftm.TaskType), ftm.NewHandler(moversCfg, service, log))

	log.Info("workers registered", map[string]interface{}{"running": manager.Running()})
	checkRegistry(manager, log)

	healthServer := &http.Server{Addr: healthAddr, Handler: healthRouter(manager)}
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"addr": healthAddr})
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("health/metrics server failed", nil)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager.Close()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("health server shutdown failed", nil)
	}

	log.Info("worker manager stopped gracefully", nil)
}

func healthRouter(manager *camunda.Manager) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ready",
			"workers": manager.Running(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// checkRegistry warns about running workers the activity registry does not
// document. A missing registry is not fatal.
func checkRegistry(manager *camunda.Manager, log logger.Logger) {
	reg, err := registry.LoadRegistry(registry.DefaultPath)
	if err != nil {
		log.WithError(err).Warn("activity registry not loaded", nil)
		return
	}
	if err := reg.Validate(); err != nil {
		log.WithError(err).Warn("activity registry invalid", nil)
		return
	}
	if missing := reg.Missing(manager.Running()); len(missing) > 0 {
		log.Warn("workers missing from activity registry", map[string]interface{}{"taskTypes": missing})
	}
}

// workerTimeout prefers the per-worker timeout from config over the package default.
func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if wcfg, ok := cfg.Workers[taskType]; ok && wcfg.Timeout > 0 {
		return config.GetDuration(wcfg.Timeout)
	}
	return fallback
}
