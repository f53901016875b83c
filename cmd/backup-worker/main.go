package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/amqp"
	"moneymanager/internal/backend"
	"moneymanager/internal/cli"
	"moneymanager/internal/ledger"
	"moneymanager/internal/log"
	"moneymanager/internal/sheets"
	"moneymanager/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting backup-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != backend.SQLiteBackend.String() {
		logger.Error("backup-worker needs the shared sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("backup-worker needs AMQP_URL to receive ledger changes")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	target, err := backend.NewFactory(logger).CreateTarget(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backup target", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	// Scheduled backups use the configured spreadsheet and service account.
	backup := worker.NewBackupWorker(ledger.KVHistoryStore{KV: store}, target,
		sheets.Credentials{SpreadsheetID: cfg.GoogleSpreadsheetID}, cfg.BackupDebounce)

	// Mirror whatever is stored now in case changes were missed while down.
	logger.Info("Performing startup backup")
	if err := backup.ExportNow(ctx); err != nil {
		logger.Error("Startup backup failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeLedgerChanges(gctx, backup.HandleLedgerChanged)
	})
	g.Go(func() error {
		interval := cfg.BackupDebounce
		if interval <= 0 {
			interval = 10 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := backup.FlushPending(gctx); err != nil {
					logger.Error("Pending backup failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := backup.FlushPending(ctx); err != nil {
			logger.Error("Final backup failed", log.FieldError, err)
		}
	})
}
