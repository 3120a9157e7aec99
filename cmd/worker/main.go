package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vialtrack/vialtrack/internal/app"
	"github.com/vialtrack/vialtrack/internal/inventory"
	jobmetrics "github.com/vialtrack/vialtrack/internal/jobs"
	"github.com/vialtrack/vialtrack/internal/platform/cache"
	"github.com/vialtrack/vialtrack/internal/platform/db"
	"github.com/vialtrack/vialtrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	opts, err := cfg.EngineOptions()
	if err != nil {
		logger.Error("load catalog", slog.Any("error", err))
		os.Exit(1)
	}

	var source inventory.Source
	if cfg.DataDir != "" {
		source = inventory.NewCSVSource(cfg.DataDir)
	} else {
		pool, err := db.New(ctx, cfg.PostgresOptions("vialtrack-worker"))
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		source = inventory.NewRepository(pool)
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions("vialtrack-worker"))
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	service := inventory.NewService(inventory.NewEngine(opts), source, inventory.ServiceConfig{
		Logger: logger,
		Cache:  inventory.NewCache(redisClient, cfg.CacheTTL),
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	client := jobs.NewClient(redisOpts)
	defer func() { _ = client.Close() }()

	reconcileJob := jobs.NewInventoryReconcileJob(service, client, logger, jobmetrics.NewMetrics(nil))
	alertHandler := jobs.AlertHandler{Logger: logger}

	reconcileTask, err := jobs.NewInventoryReconcileTask("scheduled", time.Now().UTC())
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInventoryReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskDiscrepancyAlert, Handler: alertHandler.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
