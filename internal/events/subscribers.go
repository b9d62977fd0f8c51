package events

import (
	"context"
	"fmt"
	"log/slog"

	"webbudget/internal/amqp"
	"webbudget/internal/core"
	"webbudget/internal/metrics"
	"webbudget/internal/ports"
)

// MovementEvents lists every movement lifecycle event.
var MovementEvents = []Name{MovementCreated, MovementUpdated, MovementPaid, MovementDeleted}

// OutboxRecorder stores each event as an outbox row in the same transaction
// so the relay publishes only committed changes.
func OutboxRecorder() Handler {
	return func(ctx context.Context, r ports.Repos, e Event) error {
		var (
			movementID, periodID int64
			code                 string
		)
		if e.Movement != nil {
			movementID, code, periodID = e.Movement.ID, e.Movement.Code, e.Movement.PeriodID
		}
		if e.Period != nil {
			periodID = e.Period.ID
		}

		body, err := amqp.NewMovementEventMessage(string(e.Name), movementID, code, periodID, e.At).ToJSON()
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		out := &core.OutboxEvent{Name: string(e.Name), Payload: body, CreatedAt: e.At}
		if err := r.Outbox.Append(ctx, out); err != nil {
			return fmt.Errorf("append outbox: %w", err)
		}
		slog.DebugContext(ctx, "Recorded outbox event", "event", e.Name, "outbox_id", out.ID)
		return nil
	}
}

// MetricsRecorder counts lifecycle events.
func MetricsRecorder(rec *metrics.Recorder) Handler {
	return func(_ context.Context, _ ports.Repos, e Event) error {
		rec.Movements.WithLabelValues(string(e.Name)).Inc()
		return nil
	}
}

// RegisterDefaults wires the outbox and metrics subscribers for every event.
func RegisterDefaults(b *Bus, rec *metrics.Recorder) {
	all := append(append([]Name{}, MovementEvents...), PeriodOpened, PeriodClosed)
	b.SubscribeAll(OutboxRecorder(), all...)
	if rec != nil {
		b.SubscribeAll(MetricsRecorder(rec), all...)
	}
}
