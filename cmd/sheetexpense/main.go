package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/auth"
	"sheetexpense/internal/backend"
	"sheetexpense/internal/cache"
	"sheetexpense/internal/cli"
	"sheetexpense/internal/config"
	apphttp "sheetexpense/internal/http"
	"sheetexpense/internal/log"
	"sheetexpense/internal/services"
	"sheetexpense/internal/storage"

	"golang.org/x/sync/errgroup"
)

const callbackPath = "/auth/google/callback"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

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
		logger.Error("Failed to create workbook backend", log.FieldError, err, log.FieldBackend, cfg.WorkbookBackend)
		os.Exit(1)
	}
	if wb.Cleanup != nil {
		defer wb.Cleanup()
	}

	authn, refresher := authenticator(cfg, logger)

	// Events are optional; only a live client is handed to the services.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, structural events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			events = client
			logger.Info("AMQP client initialized", log.FieldExchange, cfg.AMQPExchange)
		}
	}

	slogger := logger.Logger
	ids := cache.NewIdentifiers(repo, 4096, 10*time.Minute)
	ids.StartCleanup(5*time.Minute, slogger.With(log.FieldComponent, log.ComponentStorage))
	defer ids.Stop()

	guard := auth.NewGuard(repo, wb.Connector, refresher, slogger.With(log.FieldComponent, log.ComponentAuth))
	summary := services.NewSummarySync(slogger.With(log.FieldComponent, log.ComponentSummary))
	prov := services.NewProvisioner(ids, summary, events, slogger.With(log.FieldComponent, log.ComponentProvision))

	store := storage.NewSessionStore(repo, cfg.SessionSecret, cfg.SessionCleanupInterval)
	defer store.StopCleanup()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses:           services.NewExpenseService(guard, ids, prov, summary, events, slogger.With(log.FieldComponent, log.ComponentExpense)),
		Categories:         services.NewCategoryService(guard, prov, slogger.With(log.FieldComponent, log.ComponentCategory)),
		Auth:               authn,
		Users:              repo,
		Sessions:           apphttp.NewSessionManager(store, cfg.SessionLifetime, cfg.IsProduction()),
		DB:                 repo,
		Logger:             logger,
		Production:         cfg.IsProduction(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting sheetexpense server",
			log.FieldPort, cfg.Port,
			"env", cfg.AppEnv,
			log.FieldBackend, cfg.WorkbookBackend,
			"dialect", repo.Dialect())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, log.FieldPort, cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// authenticator picks Google OAuth, or the local development login when the
// memory backend runs without OAuth credentials.
func authenticator(cfg *config.Config, logger *log.Logger) (apphttp.Authenticator, auth.Refresher) {
	if !cfg.OAuthConfigured() && cfg.WorkbookBackend == string(backend.MemoryBackend) {
		logger.Warn("Google OAuth not configured, using local development login")
		local := auth.NewLocal(callbackPath)
		return local, local
	}
	p := auth.NewProvider(auth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
	})
	return p, p
}
