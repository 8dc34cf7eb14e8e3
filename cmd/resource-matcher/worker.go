package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"resource-matcher/internal/common/camunda"
	"resource-matcher/internal/common/logger"
	matchresources "resource-matcher/internal/workers/matching/match-resources"
)

var workerMetricsPort int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the match-resources Zeebe job worker",
	Long: "Connects to the Zeebe gateway and completes match-resources jobs. " +
		"A side listener serves /health and /metrics.",
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerMetricsPort, "metrics-port", 0, "port for /health and /metrics (defaults to server.port)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Camunda.Enabled {
		return fmt.Errorf("camunda.enabled is false; nothing to run")
	}

	log := newLogger(cfg)
	log.Info("starting worker manager", map[string]interface{}{"broker": cfg.Camunda.BrokerAddress})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		return fmt.Errorf("zeebe client failed after retries: %w", err)
	}
	defer client.Close()

	wcfg := matchresources.ConfigFrom(cfg)
	if !wcfg.Enabled {
		log.Warn("worker disabled by configuration", map[string]interface{}{"taskType": matchresources.TaskType})
		return nil
	}
	handler, err := matchresources.NewHandler(wcfg, a.service, log)
	if err != nil {
		return err
	}
	w := camunda.NewWorker(client.GetClient(), matchresources.TaskType, wcfg.MaxJobsActive, handler, log)

	port := workerMetricsPort
	if port == 0 {
		port = cfg.Server.Port
	}
	metricsSrv := startHealthServer(fmt.Sprintf(":%d", port), a, log)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	w.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping health server", map[string]interface{}{"error": err.Error()})
	}

	log.Info("worker manager stopped gracefully", nil)
	return nil
}

func startHealthServer(addr string, a *app, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.catalog.Ping(pingCtx); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health/metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return srv
}
