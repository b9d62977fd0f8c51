// Package events dispatches lifecycle notifications to in-process
// subscribers inside the caller's unit of work.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/ports"
)

type Name string

const (
	MovementCreated Name = "MovementCreated"
	MovementUpdated Name = "MovementUpdated"
	MovementPaid    Name = "MovementPaid"
	MovementDeleted Name = "MovementDeleted"
	PeriodOpened    Name = "PeriodOpened"
	PeriodClosed    Name = "PeriodClosed"
)

// Event is one notification. Movement or Period is set depending on Name.
type Event struct {
	Name     Name
	Movement *core.Movement
	Period   *core.FinancialPeriod
	At       time.Time
}

// Handler reacts to an event using the repositories of the running unit of
// work. A returned error aborts the operation that raised the event.
type Handler func(ctx context.Context, r ports.Repos, e Event) error

type subscription struct {
	name    Name
	handler Handler
}

// Bus delivers events synchronously, in registration order.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name Name, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

// SubscribeAll registers h for every listed event.
func (b *Bus) SubscribeAll(h Handler, names ...Name) {
	for _, n := range names {
		b.Subscribe(n, h)
	}
}

// Notify runs the subscribers of e.Name and stops at the first error.
func (b *Bus) Notify(ctx context.Context, r ports.Repos, e Event) error {
	if b == nil {
		return nil
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == e.Name {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, r, e); err != nil {
			return fmt.Errorf("notify %s: %w", e.Name, err)
		}
	}
	return nil
}
