package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/amqp"
	"moneymanager/internal/backend"
	"moneymanager/internal/cli"
	"moneymanager/internal/currency"
	apphttp "moneymanager/internal/http"
	"moneymanager/internal/ledger"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/settings"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err == nil {
		err = backendCfg.Validate()
	}
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	store, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize storage", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	if store.Cleanup != nil {
		defer func() {
			if err := store.Cleanup(); err != nil {
				logger.Error("Storage cleanup failed", log.FieldError, err)
			}
		}()
	}

	target, err := factory.CreateTarget(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backup target", log.FieldError, err, log.FieldBackupTarget, backendCfg.Target)
		os.Exit(1)
	}

	manager, err := ledger.NewManager(ctx, ledger.KVHistoryStore{KV: store.Store}, ledger.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to load month history", log.FieldError, err)
		os.Exit(1)
	}
	if key, created, err := manager.Reconcile(ctx); err != nil {
		logger.Error("Failed to reconcile current month", log.FieldError, err, log.FieldMonth, key)
		os.Exit(1)
	} else {
		logger.Info("Current month ready", log.FieldMonth, key, "created", created)
	}

	refresher := currency.NewRefresher(
		currency.NewFetcher(cfg.RatesURL, cfg.SecondaryCurrency),
		cfg.RatesRefreshInterval, cfg.SecondaryCurrency, logger)

	// Change events are optional; without a broker mutations only persist locally.
	var publisher amqp.Publisher
	if cfg.AMQPURL != "" {
		amqpLogger := logger.WithComponent(log.ComponentAMQP)
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			amqpLogger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			amqpLogger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewLedgerService(manager, refresher, publisher, target, logger)
	prefs := settings.NewStore(store.Store, settings.Defaults{
		DisplayCurrency: currency.Display(cfg.DefaultDisplayCurrency),
		Secondary:       cfg.SecondaryCurrency,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Ledger:             svc,
		Rates:              refresher,
		Preferences:        prefs,
		Password:           settings.NewPasswordGate(store.Store),
		Logger:             logger,
		Secondary:          cfg.SecondaryCurrency,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		BackupTimeout:      cfg.BackupTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting moneymanager server",
			"port", cfg.Port,
			"backend", backendCfg.Type,
			log.FieldBackupTarget, backendCfg.Target)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server shutdown error", log.FieldError, err)
			}
		})
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
