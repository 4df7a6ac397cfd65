package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gescom-app/gescom/internal/app"
	"github.com/gescom-app/gescom/internal/crm/clients"
	"github.com/gescom-app/gescom/internal/crm/prospects"
	"github.com/gescom-app/gescom/internal/expenses"
	"github.com/gescom-app/gescom/internal/geo"
	"github.com/gescom-app/gescom/internal/invoicing"
	jobmetrics "github.com/gescom-app/gescom/internal/jobs"
	"github.com/gescom-app/gescom/internal/platform/db"
	"github.com/gescom-app/gescom/internal/quotes"
	"github.com/gescom-app/gescom/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	clientService := clients.NewService(clients.NewRepository(pool))
	prospectService := prospects.NewService(prospects.NewRepository(pool), clientService, nil, logger)
	invoiceService := invoicing.NewService(invoicing.NewRepository(pool), clientService)
	quoteService := quotes.NewService(quotes.NewRepository(pool), clientService, invoiceService)
	expenseService := expenses.NewService(expenses.NewRepository(pool))

	geoClient := geo.NewClient(cfg.BANBaseURL, cfg.BANTimeout)
	metrics := jobmetrics.NewMetrics(nil)

	mailer := jobs.NewMailer(cfg.MailDriver,
		fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort), cfg.SMTPFrom, logger)

	receiptJob := jobs.NewReceiptParseJob(expenseService, logger, metrics)
	geocodeJob := jobs.NewProspectGeocodeJob(prospectService, geoClient, logger, metrics)
	overdueJob := jobs.NewOverdueScanJob(invoiceService, clientService, jobsClient.EnqueueSendEmail, logger, metrics)
	expireJob := jobs.NewQuoteExpireJob(quoteService, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Mailer:    mailer,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeReceiptParse, Handler: receiptJob.Handle},
			{Type: jobs.TaskTypeProspectGeocode, Handler: geocodeJob.Handle},
			{Type: jobs.TaskTypeOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskTypeQuoteExpire, Handler: expireJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: jobs.NewOverdueScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 7 * * *", Task: jobs.NewQuoteExpireTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("configure worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
