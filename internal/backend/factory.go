// Package backend selects the storage behind the services and wires the
// services on top of it.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"webbudget/internal/events"
	"webbudget/internal/metrics"
	"webbudget/internal/ports"
	"webbudget/internal/services"
	"webbudget/internal/storage"
	"webbudget/internal/storage/memory"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is an opened backend.
type Result struct {
	UnitOfWork ports.UnitOfWork
	// Ping reports whether the storage is reachable.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Open creates the storage selected by config.
func Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		store, err := storage.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		slog.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &Result{
			UnitOfWork: store,
			Ping:       store.DB().PingContext,
			Cleanup:    store.Close,
		}, nil
	case MemoryBackend:
		slog.InfoContext(ctx, "Initialized memory backend")
		return &Result{
			UnitOfWork: memory.New(),
			Ping:       func(context.Context) error { return nil },
			Cleanup:    func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// Services is the full set of application services sharing one bus.
type Services struct {
	Bus       *events.Bus
	Budget    *services.BudgetService
	Movements *services.MovementService
	Wallets   *services.WalletService
	Fixed     *services.FixedMovementService
	Periods   *services.PeriodService
}

// Wire builds the services over uow. The default subscribers are registered
// before the launch generator so every event is recorded first.
func Wire(uow ports.UnitOfWork, rec *metrics.Recorder) *Services {
	bus := events.NewBus()
	events.RegisterDefaults(bus, rec)

	balance := services.NewBalanceWriter(rec)
	movements := services.NewMovementService(uow, bus, balance)
	return &Services{
		Bus:       bus,
		Budget:    services.NewBudgetService(uow),
		Movements: movements,
		Wallets:   services.NewWalletService(uow, balance),
		Fixed:     services.NewFixedMovementService(uow, bus, movements, rec),
		Periods:   services.NewPeriodService(uow, bus),
	}
}
