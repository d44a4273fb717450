package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/adapter"
	"github.com/notifyhub/delivery-queue/internal/api"
	"github.com/notifyhub/delivery-queue/internal/config"
	"github.com/notifyhub/delivery-queue/internal/db"
	"github.com/notifyhub/delivery-queue/internal/ingest"
	"github.com/notifyhub/delivery-queue/internal/metrics"
	"github.com/notifyhub/delivery-queue/internal/processor"
	"github.com/notifyhub/delivery-queue/internal/ratelimiter"
	"github.com/notifyhub/delivery-queue/internal/service"
	"github.com/notifyhub/delivery-queue/internal/store"
	"github.com/notifyhub/delivery-queue/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := store.NewPgStore(pool)
	svc := service.NewQueueService(st, logger)

	adapters := adapter.NewRegistry()
	for ch, url := range cfg.WebhookURLs {
		if url == "" {
			continue
		}
		adapters.Register(ch, adapter.NewWebhookSender(url, cfg.AdapterTimeout))
		logger.Info("channel sender registered", zap.String("channel", string(ch)))
	}

	limiter := ratelimiter.New(cfg.RateLimit)
	onCompleted, onFailed := m.ProcessorHooks()
	proc := processor.New(st, adapters, limiter, logger, processor.MetricHooks{
		OnCompleted: onCompleted,
		OnFailed:    onFailed,
	})

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup

	pw := worker.NewProcessWorker(proc, cfg.ProcessInterval, cfg.ProcessBatchSize, nil, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		pw.Run(workerCtx)
	}()

	mw := worker.NewMaintenanceWorker(st, m, cfg, logger)
	if err := mw.Start(workerCtx); err != nil {
		logger.Fatal("failed to start maintenance worker", zap.Error(err))
	}

	var consumer *ingest.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		consumer, err = ingest.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, svc, logger)
		if err != nil {
			logger.Fatal("failed to create kafka consumer", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(workerCtx); err != nil {
				logger.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("kafka ingest enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	// ---- HTTP server ----
	router := api.NewRouter(svc, proc, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal background workers to stop and wait for in-flight work.
	cancelWorkers()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("kafka consumer close error", zap.Error(err))
		}
	}
	wg.Wait()
	mw.Stop()

	logger.Info("server stopped cleanly")
}
