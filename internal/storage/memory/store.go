// Package memory is an in-process implementation of the repositories.
// Units of work run one at a time against a copy of the data, which replaces
// the live data only when the work succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/ports"
)

type table[T any] struct {
	seq  int64
	rows map[int64]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int64]T)}
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{seq: t.seq, rows: make(map[int64]T, len(t.rows))}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}

func (t *table[T]) next() int64 {
	t.seq++
	return t.seq
}

// all returns the rows ordered by ID.
func (t *table[T]) all() []T {
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	return out
}

func (t *table[T]) where(keep func(T) bool) []T {
	var out []T
	for _, v := range t.all() {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

type state struct {
	costCenters    *table[core.CostCenter]
	classes        *table[core.MovementClass]
	movements      *table[core.Movement]
	apportionments *table[core.Apportionment]
	fixed          *table[core.FixedMovement]
	launches       *table[core.Launch]
	payments       *table[core.Payment]
	wallets        *table[core.Wallet]
	balances       *table[core.WalletBalance]
	cards          *table[core.Card]
	invoices       *table[core.CardInvoice]
	periods        *table[core.FinancialPeriod]
	outbox         *table[core.OutboxEvent]
}

func newState() *state {
	return &state{
		costCenters:    newTable[core.CostCenter](),
		classes:        newTable[core.MovementClass](),
		movements:      newTable[core.Movement](),
		apportionments: newTable[core.Apportionment](),
		fixed:          newTable[core.FixedMovement](),
		launches:       newTable[core.Launch](),
		payments:       newTable[core.Payment](),
		wallets:        newTable[core.Wallet](),
		balances:       newTable[core.WalletBalance](),
		cards:          newTable[core.Card](),
		invoices:       newTable[core.CardInvoice](),
		periods:        newTable[core.FinancialPeriod](),
		outbox:         newTable[core.OutboxEvent](),
	}
}

func (s *state) clone() *state {
	return &state{
		costCenters:    s.costCenters.clone(),
		classes:        s.classes.clone(),
		movements:      s.movements.clone(),
		apportionments: s.apportionments.clone(),
		fixed:          s.fixed.clone(),
		launches:       s.launches.clone(),
		payments:       s.payments.clone(),
		wallets:        s.wallets.clone(),
		balances:       s.balances.clone(),
		cards:          s.cards.clone(),
		invoices:       s.invoices.clone(),
		periods:        s.periods.clone(),
		outbox:         s.outbox.clone(),
	}
}

// Store implements ports.UnitOfWork in memory.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// Within serializes units of work and discards every change made by fn
// when it fails.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, r ports.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, s.repos(work)); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) repos(st *state) ports.Repos {
	return ports.Repos{
		CostCenters:    costCenters{st},
		Classes:        classes{st},
		Movements:      movements{st},
		Apportionments: apportionments{st},
		FixedMovements: fixedMovements{st},
		Launches:       launches{st},
		Payments:       payments{st},
		Wallets:        wallets{st},
		Balances:       balances{st, s.now},
		Cards:          cards{st},
		CardInvoices:   invoices{st},
		Periods:        periods{st},
		Outbox:         outbox{st, s.now},
	}
}

func notFound(entity string, id any) error {
	return core.NewConflict(core.NotFound, fmt.Sprintf("%s %v", entity, id))
}

func page[T any](rows []T, q core.PageQuery, match func(T, string) bool) core.Page[T] {
	q = q.Normalize()
	filter := strings.ToLower(strings.TrimSpace(q.Filter))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if filter == "" || match(r, filter) {
			out = append(out, r)
		}
	}
	if q.SortDirection == core.SortDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return core.Slice(out, q)
}

func contains(s, filter string) bool {
	return strings.Contains(strings.ToLower(s), filter)
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
