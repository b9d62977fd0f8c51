package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/metrics"
	"webbudget/internal/ports"
)

// Publisher delivers one recorded event to the message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, name string, body []byte) error
}

// OutboxRelayConfig holds configuration for the outbox relay
type OutboxRelayConfig struct {
	// PollInterval is how often to check for pending events (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of events to publish per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts after which an event is left alone (default: 3)
	MaxRetries int

	// CleanupInterval is how often to delete published events (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old published events must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultOutboxRelayConfig returns sensible defaults
func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// OutboxRelay publishes committed outbox events to the broker.
type OutboxRelay struct {
	uow       ports.UnitOfWork
	publisher Publisher
	metrics   *metrics.Recorder
	config    OutboxRelayConfig
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewOutboxRelay creates a new relay
func NewOutboxRelay(uow ports.UnitOfWork, publisher Publisher, rec *metrics.Recorder, config OutboxRelayConfig) *OutboxRelay {
	return &OutboxRelay{
		uow:       uow,
		publisher: publisher,
		metrics:   rec,
		config:    config,
		now:       time.Now,
	}
}

// Start begins the relay loop. Returns an error if already running.
func (p *OutboxRelay) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("outbox relay is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Outbox relay started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries)

	return nil
}

// Stop gracefully stops the relay and waits for completion.
func (p *OutboxRelay) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Outbox relay stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Outbox relay stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the relay is currently running
func (p *OutboxRelay) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *OutboxRelay) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Relay immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.Cleanup(ctx)
		}
	}
}

// ProcessBatch publishes one batch of pending events and returns how many
// were published.
func (p *OutboxRelay) ProcessBatch(ctx context.Context) int {
	var pending []core.OutboxEvent
	err := p.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		pending, err = r.Outbox.Pending(ctx, p.config.BatchSize, p.config.MaxRetries)
		return err
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load pending outbox events", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Relaying outbox batch", "count", len(pending))

	published := 0
	for _, e := range pending {
		select {
		case <-p.stopCh:
			return published
		case <-ctx.Done():
			return published
		default:
		}

		if err := p.publisher.PublishEvent(ctx, e.Name, e.Payload); err != nil {
			p.handleFailure(ctx, e, err)
			continue
		}
		p.handleSuccess(ctx, e)
		published++
	}
	return published
}

func (p *OutboxRelay) handleSuccess(ctx context.Context, e core.OutboxEvent) {
	err := p.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		return r.Outbox.MarkPublished(ctx, e.ID, p.now().UTC())
	})
	if err != nil {
		// The broker has the event; a later batch will publish it again.
		slog.ErrorContext(ctx, "Failed to mark outbox event published",
			"outbox_id", e.ID, "error", err)
		return
	}
	p.count("published")
}

func (p *OutboxRelay) handleFailure(ctx context.Context, e core.OutboxEvent, publishErr error) {
	slog.WarnContext(ctx, "Outbox publish failed",
		"outbox_id", e.ID,
		"event", e.Name,
		"attempt", e.Attempts+1,
		"error", publishErr)

	err := p.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		return r.Outbox.MarkFailed(ctx, e.ID, publishErr.Error())
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record outbox failure",
			"outbox_id", e.ID, "error", err)
	}

	if e.Attempts+1 >= p.config.MaxRetries {
		p.count("failed")
		slog.ErrorContext(ctx, "Outbox event failed permanently after max retries",
			"outbox_id", e.ID,
			"event", e.Name,
			"attempts", e.Attempts+1)
		return
	}
	p.count("retry")
}

// Cleanup deletes events published before the cleanup age.
func (p *OutboxRelay) Cleanup(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupAge)
	var n int64
	err := p.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		n, err = r.Outbox.DeletePublishedBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup published outbox events", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up published outbox events", "count", n)
	}
}

func (p *OutboxRelay) count(result string) {
	if p.metrics != nil {
		p.metrics.OutboxRelayed.WithLabelValues(result).Inc()
	}
}
