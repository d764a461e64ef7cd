package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/adapters/worker"
	"github.com/kirillkom/evidence-retrieval/internal/bootstrap"
	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/observability/logging"
	"github.com/kirillkom/evidence-retrieval/internal/observability/metrics"
	"github.com/kirillkom/evidence-retrieval/internal/observability/telemetry"
)

const (
	serviceName = "worker"
	jobTimeout  = 2 * time.Minute
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "evidence-" + serviceName,
		Environment:  cfg.Environment,
		Exporter:     cfg.OTelExporter,
		OTLPEndpoint: cfg.OTelOTLPEndpoint,
		StdoutWriter: os.Stderr,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("telemetry_init_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      serviceName,
		Logger:       logger,
		Registerer:   workerMetrics.Registerer(),
		ConnectQueue: true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	handler := worker.NewHandler(app.Pipeline, jobTimeout,
		worker.WithJobObserver(workerMetrics),
		worker.WithLogger(logging.WithComponent(logger, "jobs")),
	)

	logger.Info("worker_subscribed", "subject", cfg.NATSJobsSubject)
	if err := app.Queue.ServeRetrievalJobs(ctx, handler.Handle); err != nil {
		logger.Error("worker_serve_failed", "error", err)
	}
}
