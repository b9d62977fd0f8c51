package main

import (
	"context"
	"log/slog"
	"time"

	"webbudget/internal/backend"
	"webbudget/internal/cli"
	applog "webbudget/internal/log"
	"webbudget/internal/metrics"
	"webbudget/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentPeriods)

	ctx, stop := cli.SignalContext()
	defer stop()

	store := cli.OpenBackend(ctx, cfg)
	defer store.Cleanup()

	svc := backend.Wire(store.UnitOfWork, metrics.New())
	logger.Info("Period worker configured", "interval", cfg.PeriodCheckInterval, "backend", cfg.DataBackend)

	ensureMonth(ctx, svc.Periods)

	ticker := time.NewTicker(cfg.PeriodCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Period worker stopped gracefully")
			return
		case <-ticker.C:
			ensureMonth(ctx, svc.Periods)
		}
	}
}

// ensureMonth opens the current month when missing. Opening a period
// launches the auto-launch fixed movements.
func ensureMonth(ctx context.Context, periods *services.PeriodService) {
	p, opened, err := periods.EnsureMonthOpen(ctx, time.Now())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to ensure current period", "error", err)
		return
	}
	if opened {
		slog.InfoContext(ctx, "Opened current period", applog.FieldPeriodID, p.ID, "period", p.Identification)
		return
	}
	slog.DebugContext(ctx, "Current period already open", applog.FieldPeriodID, p.ID, "period", p.Identification)
}
