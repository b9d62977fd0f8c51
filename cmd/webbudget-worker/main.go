package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"webbudget/internal/amqp"
	"webbudget/internal/backend"
	"webbudget/internal/cache"
	"webbudget/internal/cli"
	applog "webbudget/internal/log"
	"webbudget/internal/metrics"
	"webbudget/internal/sheets"
	gsheet "webbudget/internal/sheets/google"
	mem "webbudget/internal/sheets/memory"
	"webbudget/internal/worker"
)

const (
	dedupeSize     = 10000
	dedupeTTL      = time.Hour
	janitorEvery   = 5 * time.Minute
	startupTimeout = 2 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting webbudget-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	store := cli.OpenBackend(ctx, cfg)
	defer store.Cleanup()

	var exporter sheets.MovementExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled, exporting to memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	svc := backend.Wire(store.UnitOfWork, metrics.New())
	seen := cache.NewLRU[struct{}](dedupeSize, dedupeTTL)
	exportWorker := worker.NewExportWorker(store.UnitOfWork, svc.Movements, exporter, seen)

	// Catch up on the active period before consuming.
	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	if active, err := svc.Periods.ActivePeriod(startupCtx); err == nil {
		if err := exportWorker.ExportPeriod(startupCtx, active.ID); err != nil {
			logger.Error("Startup export failed", "error", err, applog.FieldPeriodID, active.ID)
		}
	} else {
		logger.Info("No active period to export on startup", "error", err)
	}
	cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cache.RunJanitor(gctx, janitorEvery, seen)
		return nil
	})
	g.Go(func() error {
		err := amqpClient.ConsumeEvents(gctx, exportWorker.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
