package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/events"
	applog "webbudget/internal/log"
	"webbudget/internal/ports"
)

// PeriodService opens and closes financial periods. Opening a period raises
// PeriodOpened, which drives the recurring launch batch in the same unit of
// work.
type PeriodService struct {
	uow ports.UnitOfWork
	bus *events.Bus
}

func NewPeriodService(uow ports.UnitOfWork, bus *events.Bus) *PeriodService {
	return &PeriodService{uow: uow, bus: bus}
}

// OpenPeriod stores p as a new open period.
func (s *PeriodService) OpenPeriod(ctx context.Context, p *core.FinancialPeriod) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		return s.open(ctx, r, p)
	})
	return core.Classify("open period", err)
}

func (s *PeriodService) open(ctx context.Context, r ports.Repos, p *core.FinancialPeriod) error {
	_, err := r.Periods.FindByIdentification(ctx, p.Identification)
	switch {
	case err == nil:
		return core.NewConflict(core.PeriodAlreadyOpen, p.Identification)
	case !isNotFound(err):
		return fmt.Errorf("find period: %w", err)
	}
	if p.End.Before(p.Start.Time) {
		return core.NewValidation(core.InvalidTransition, "period ends before it starts")
	}

	p.ID = 0
	p.Closed = false
	if err := r.Periods.Save(ctx, p); err != nil {
		return fmt.Errorf("save period: %w", err)
	}
	slog.InfoContext(ctx, "Financial period opened",
		applog.FieldPeriodID, p.ID,
		"period", p.Identification,
		"start", p.Start.String(),
		"end", p.End.String())
	return s.bus.Notify(ctx, r, events.Event{Name: events.PeriodOpened, Period: p})
}

// ClosePeriod moves every PAID movement of the period to CALCULATED and
// closes it.
func (s *PeriodService) ClosePeriod(ctx context.Context, periodID int64) (core.FinancialPeriod, error) {
	var p core.FinancialPeriod
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		if p, err = r.Periods.FindByID(ctx, periodID); err != nil {
			return err
		}
		if p.IsClosed() {
			return core.NewConflict(core.PeriodClosed, p.Identification)
		}

		list, err := r.Movements.ListByPeriod(ctx, periodID)
		if err != nil {
			return fmt.Errorf("list period movements: %w", err)
		}
		calculated := 0
		for _, m := range list {
			if !m.State.CanTransitionTo(core.StateCalculated) {
				continue
			}
			m.State = core.StateCalculated
			if err := r.Movements.Save(ctx, &m); err != nil {
				return fmt.Errorf("calculate movement %s: %w", m.Code, err)
			}
			calculated++
		}

		p.Closed = true
		if err := r.Periods.Save(ctx, &p); err != nil {
			return fmt.Errorf("save period: %w", err)
		}
		slog.InfoContext(ctx, "Financial period closed",
			"period", p.Identification,
			"calculated", calculated)
		return s.bus.Notify(ctx, r, events.Event{Name: events.PeriodClosed, Period: &p})
	})
	return p, core.Classify("close period", err)
}

// ActivePeriod returns the latest open period.
func (s *PeriodService) ActivePeriod(ctx context.Context) (core.FinancialPeriod, error) {
	var p core.FinancialPeriod
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		p, err = r.Periods.FindActive(ctx)
		return err
	})
	return p, core.Classify("active period", err)
}

func (s *PeriodService) ListPeriods(ctx context.Context, q core.PageQuery) (core.Page[core.FinancialPeriod], error) {
	var page core.Page[core.FinancialPeriod]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		page, err = r.Periods.List(ctx, q)
		return err
	})
	return page, core.Classify("list periods", err)
}

// EnsureMonthOpen opens the calendar month period containing now unless it
// already exists. It reports whether a period was opened.
func (s *PeriodService) EnsureMonthOpen(ctx context.Context, now time.Time) (core.FinancialPeriod, bool, error) {
	p := core.MonthPeriod(now)
	opened := false
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		existing, err := r.Periods.FindByIdentification(ctx, p.Identification)
		if err == nil {
			p = existing
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("find period: %w", err)
		}
		opened = true
		return s.open(ctx, r, &p)
	})
	if err != nil {
		opened = false
	}
	return p, opened, core.Classify("ensure month open", err)
}
