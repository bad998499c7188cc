package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openshelf/openshelf/internal/app"
	"github.com/openshelf/openshelf/internal/fines"
	jobmetrics "github.com/openshelf/openshelf/internal/jobs"
	"github.com/openshelf/openshelf/internal/loans"
	"github.com/openshelf/openshelf/internal/notify"
	"github.com/openshelf/openshelf/internal/platform/db"
	"github.com/openshelf/openshelf/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	asynqClient := asynq.NewClient(redisOpts)
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	notifier := notify.NewNotifier(logger, asynqClient, notify.NewDirectory(pool))
	fineService := fines.NewService(fines.NewRepository(pool), nil)
	loanService := loans.NewService(loans.NewRepository(pool), nil, nil)
	scanner := jobs.NewReminderScanner(logger, loanService, fineService, notifier)
	mailer := jobs.NewMailer(logger, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	metrics := jobmetrics.NewMetrics(nil)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.WorkerMetricsAddr, mux); err != nil {
			logger.Warn("metrics listener", slog.Any("error", err))
		}
	}()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Metrics:   metrics,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailer.HandleSendEmail},
			{Type: jobs.TaskTypeOverdueScan, Handler: scanner.HandleOverdueScan},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReminderCron, Task: jobs.NewOverdueScanTask()},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
