package main

import (
	"context"
	"errors"
	"os"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/auth"
	"sheetexpense/internal/backend"
	"sheetexpense/internal/cli"
	"sheetexpense/internal/log"
	"sheetexpense/internal/services"
	"sheetexpense/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting sheetexpense-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.WorkbookBackend != string(backend.GoogleBackend) {
		logger.Error("The worker needs the google workbook backend", log.FieldBackend, cfg.WorkbookBackend)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo := cli.OpenStorage(ctx, logger, cfg.DatabaseURL)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	wb, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create workbook backend", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	provider := auth.NewProvider(auth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
	})
	slogger := logger.Logger
	guard := auth.NewGuard(repo, wb.Connector, provider, slogger.With(log.FieldComponent, log.ComponentAuth))
	summary := services.NewSummarySync(slogger.With(log.FieldComponent, log.ComponentSummary))
	resyncer := services.NewResyncer(guard, repo, summary, slogger.With(log.FieldComponent, log.ComponentSummary))
	rw := worker.NewResyncWorker(resyncer, repo, cfg.ResyncTimeout, slogger.With(log.FieldComponent, log.ComponentWorker))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Rows left stale while the worker was down.
		if err := rw.StartupResync(gctx); err != nil {
			logger.Error("Startup resync failed", log.FieldError, err)
		}
		return nil
	})
	g.Go(func() error {
		err := amqpClient.Consume(gctx, rw.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
