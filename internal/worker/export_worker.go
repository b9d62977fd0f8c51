// Package worker consumes movement events from the broker and mirrors paid
// movements into the export spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"webbudget/internal/amqp"
	"webbudget/internal/cache"
	"webbudget/internal/core"
	applog "webbudget/internal/log"
	"webbudget/internal/ports"
	"webbudget/internal/services"
	"webbudget/internal/sheets"
)

// ExportWorker handles MovementPaid and MovementDeleted events.
type ExportWorker struct {
	uow       ports.UnitOfWork
	movements *services.MovementService
	exporter  sheets.MovementExporter
	seen      *cache.LRU[struct{}]
}

func NewExportWorker(uow ports.UnitOfWork, movements *services.MovementService, exporter sheets.MovementExporter, seen *cache.LRU[struct{}]) *ExportWorker {
	return &ExportWorker{
		uow:       uow,
		movements: movements,
		exporter:  exporter,
		seen:      seen,
	}
}

// HandleEvent processes one broker message. Redelivered messages already
// handled successfully are dropped.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.MovementEventMessage) error {
	key := deliveryKey(msg)
	if w.seen != nil && !w.seen.Add(key, struct{}{}) {
		slog.DebugContext(ctx, "Skipping duplicate delivery", "event", msg.Event, applog.FieldMovementCode, msg.MovementCode)
		return nil
	}

	var err error
	switch msg.Event {
	case "MovementPaid":
		err = w.exportMovement(ctx, msg.MovementCode)
	case "MovementDeleted":
		err = w.removeMovement(ctx, msg.MovementCode)
	default:
		slog.DebugContext(ctx, "Ignoring event", "event", msg.Event)
	}
	if err != nil && w.seen != nil {
		// let the requeued delivery through
		w.seen.Delete(key)
	}
	return err
}

func (w *ExportWorker) exportMovement(ctx context.Context, code string) error {
	m, err := w.movements.FindMovementByCode(ctx, code)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Movement gone before export", applog.FieldMovementCode, code)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find movement: %w", err)
	}
	return w.export(ctx, m)
}

func (w *ExportWorker) export(ctx context.Context, m core.Movement) error {
	row, err := w.buildRow(ctx, m)
	if err != nil {
		return err
	}
	// replace any earlier export of the same movement
	if err := w.exporter.Remove(ctx, m.Code); err != nil {
		return fmt.Errorf("remove previous export: %w", err)
	}
	ref, err := w.exporter.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Exported movement",
		applog.FieldMovementCode, m.Code,
		applog.FieldSheetsRef, ref,
		applog.FieldAmountCents, m.Value.Cents)
	return nil
}

func (w *ExportWorker) removeMovement(ctx context.Context, code string) error {
	if err := w.exporter.Remove(ctx, code); err != nil {
		return fmt.Errorf("remove from sheets: %w", err)
	}
	slog.InfoContext(ctx, "Removed exported movement", applog.FieldMovementCode, code)
	return nil
}

// buildRow resolves the period identification and class names of m.
func (w *ExportWorker) buildRow(ctx context.Context, m core.Movement) (sheets.MovementRow, error) {
	var (
		period string
		names  = make(map[int64]string, len(m.Apportionments))
	)
	err := w.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		p, err := r.Periods.FindByID(ctx, m.PeriodID)
		if err != nil {
			return fmt.Errorf("load period: %w", err)
		}
		period = p.Identification
		for _, a := range m.Apportionments {
			class, err := r.Classes.FindByID(ctx, a.MovementClassID)
			if err != nil {
				return fmt.Errorf("load movement class: %w", err)
			}
			names[class.ID] = class.Name
		}
		return nil
	})
	if err != nil {
		return sheets.MovementRow{}, err
	}
	return sheets.NewMovementRow(m, period, names), nil
}

// ExportPeriod re-exports every paid or calculated movement of a period.
// It recovers rows lost while the worker was down.
func (w *ExportWorker) ExportPeriod(ctx context.Context, periodID int64) error {
	list, err := w.movements.ListMovementsByPeriod(ctx, periodID)
	if err != nil {
		return fmt.Errorf("list period movements: %w", err)
	}

	exported, failed := 0, 0
	for _, m := range list {
		if m.State != core.StatePaid && m.State != core.StateCalculated {
			continue
		}
		full, err := w.movements.FindMovementByCode(ctx, m.Code)
		if err == nil {
			err = w.export(ctx, full)
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export movement", applog.FieldMovementCode, m.Code, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Period export completed",
		applog.FieldPeriodID, periodID,
		"exported", exported,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("export period %d: %d movements failed", periodID, failed)
	}
	return nil
}

func deliveryKey(msg *amqp.MovementEventMessage) string {
	return msg.Event + ":" + msg.MovementCode + ":" + strconv.FormatInt(msg.Timestamp.UnixNano(), 10)
}
