// Command telebrief builds and delivers the keyword-filtered telecom news
// digest, either as a single pass (RUN_MODE=once, for cron or CI) or as a
// long-running scheduler (RUN_MODE=daemon).
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/regwatch/telebrief/internal/app"
	"github.com/regwatch/telebrief/internal/config"
	"github.com/regwatch/telebrief/internal/logger"
	"github.com/regwatch/telebrief/internal/metrics"
)

const runTimeout = 30 * time.Minute

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer application.Close()

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer()
	}

	if cfg.RunMode == "once" {
		runCtx, runCancel := context.WithTimeout(ctx, runTimeout)
		defer runCancel()
		if err := application.Run(runCtx); err != nil {
			os.Exit(1)
		}
		return
	}

	runDaemon(ctx, cancel, cfg, application)
}

// runDaemon schedules pipeline runs with cron and blocks until a shutdown
// signal, then drains in-flight runs.
func runDaemon(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, application *app.App) {
	var wg sync.WaitGroup

	runOnce := func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, runTimeout)
		defer jobCancel()

		if err := application.Run(jobCtx); err != nil {
			logger.Error("scheduled run failed", "err", err)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, runOnce); err != nil {
		logger.Error("invalid CRON_SPEC", "spec", cfg.CronSpec, "err", err)
		os.Exit(1)
	}
	c.Start()
	logger.Info("scheduler started", "spec", cfg.CronSpec)

	// First digest goes out shortly after startup instead of waiting for
	// the next scheduled slot.
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}
		runOnce()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cronCtx := c.Stop()
	cancel()

	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("scheduler stop timed out")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(time.Minute):
		logger.Warn("timed out waiting for running jobs")
	}
}

func startMonitoringServer() {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	logger.Info("monitoring server listening", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server stopped", "err", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if ok, _ := stats["is_healthy"].(bool); !ok {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics.Global.GetStats())
}
