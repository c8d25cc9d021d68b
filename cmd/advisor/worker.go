// cmd/advisor/worker.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/server"
	asp "immigration-advisor/internal/workers/advisor/analyze-program-gaps"
	esp "immigration-advisor/internal/workers/advisor/estimate-success-probability"
	rp "immigration-advisor/internal/workers/advisor/recommend-programs"
	ss "immigration-advisor/internal/workers/advisor/simulate-scenario"
	sd "immigration-advisor/internal/workers/advisor/suggest-destinations"
	"immigration-advisor/pkg/registry"
)

// workerTaskTypes lists every task type the worker process can serve.
var workerTaskTypes = []string{rp.TaskType, esp.TaskType, asp.TaskType, ss.TaskType, sd.TaskType}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the advisor as Zeebe job workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkers(cmd.Context())
		},
	}
}

func runWorkers(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := registry.Load(a.cfg.Camunda.RegistryPath)
	if err != nil {
		return err
	}

	client, err := camunda.NewClient(a.cfg.Camunda)
	if err != nil {
		return err
	}
	defer client.Close()
	a.checks["zeebe"] = client.HealthCheck
	a.log.Info("Zeebe client connected", map[string]interface{}{"broker": a.cfg.Camunda.BrokerAddress})

	handlers := map[string]func(*camunda.Runner) camunda.JobHandler{
		rp.TaskType:  func(r *camunda.Runner) camunda.JobHandler { return rp.NewHandler(a.advisor, r, a.log) },
		esp.TaskType: func(r *camunda.Runner) camunda.JobHandler { return esp.NewHandler(a.advisor, r, a.log) },
		asp.TaskType: func(r *camunda.Runner) camunda.JobHandler { return asp.NewHandler(a.advisor, r, a.log) },
		ss.TaskType:  func(r *camunda.Runner) camunda.JobHandler { return ss.NewHandler(a.advisor, r, a.log) },
		sd.TaskType:  func(r *camunda.Runner) camunda.JobHandler { return sd.NewHandler(a.advisor, r, a.log) },
	}

	var workers []*camunda.CamundaWorker
	for taskType, build := range handlers {
		settings, err := camunda.ResolveJob(a.cfg, reg, taskType)
		if err != nil {
			return err
		}
		if !settings.Enabled {
			a.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
			continue
		}
		runner := camunda.NewRunner(settings, a.obs, a.log)
		workers = append(workers, camunda.NewWorker(client.GetClient(), settings, build(runner), a.log))
	}
	a.log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	ops := newOpsServer(a.cfg.Server, a.checks)
	go func() {
		a.log.Info("health/metrics server listening", map[string]interface{}{"addr": ops.Addr})
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("health/metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh

	a.log.Info("shutdown signal received, stopping workers", nil)
	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(a.cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("health/metrics server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	a.log.Info("workers stopped", nil)
	return nil
}

// newOpsServer exposes health, readiness and metrics for the worker
// process, which serves no API of its own.
func newOpsServer(cfg config.ServerConfig, checks map[string]server.ReadinessCheck) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeOpsJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, results := http.StatusOK, map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		writeOpsJSON(w, status, map[string]interface{}{"checks": results})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: config.GetDuration(cfg.ReadTimeout),
	}
}

func writeOpsJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
