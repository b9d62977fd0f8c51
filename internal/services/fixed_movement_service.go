package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/events"
	"webbudget/internal/ids"
	applog "webbudget/internal/log"
	"webbudget/internal/metrics"
	"webbudget/internal/ports"
)

// FixedMovementService manages recurring movement templates and launches
// them into financial periods.
type FixedMovementService struct {
	uow       ports.UnitOfWork
	movements *MovementService
	metrics   *metrics.Recorder
	now       func() time.Time
}

// NewFixedMovementService creates the service and subscribes the launch
// generator to PeriodOpened on bus.
func NewFixedMovementService(uow ports.UnitOfWork, bus *events.Bus, movements *MovementService, rec *metrics.Recorder) *FixedMovementService {
	s := &FixedMovementService{
		uow:       uow,
		movements: movements,
		metrics:   rec,
		now:       time.Now,
	}
	if bus != nil {
		bus.Subscribe(events.PeriodOpened, s.OnPeriodOpened)
	}
	return s
}

// SaveFixedMovement validates and stores a template with its apportionments.
func (s *FixedMovementService) SaveFixedMovement(ctx context.Context, f *core.FixedMovement) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		list, err := withClasses(ctx, r, f.Apportionments)
		if err != nil {
			return err
		}
		if err := core.ValidateApportionments(f.Value, list); err != nil {
			return err
		}
		if f.Undetermined {
			f.Quotes = nil
		} else if f.Quotes == nil || *f.Quotes <= 0 {
			return core.NewValidation(core.MissingQuotes, f.Identification)
		}
		if f.Status == "" {
			f.Status = core.FixedActive
		}
		if f.StartDate.IsZero() {
			f.StartDate = core.DateOf(s.now())
		}

		if f.ID != 0 {
			stored, err := r.FixedMovements.FindByID(ctx, f.ID)
			if err != nil {
				return err
			}
			if f.Status, err = reconcileStatus(ctx, r, stored, f); err != nil {
				return err
			}
			if err := r.Apportionments.DeleteByFixedMovement(ctx, f.ID); err != nil {
				return fmt.Errorf("replace apportionments: %w", err)
			}
		}
		if err := r.FixedMovements.Save(ctx, f); err != nil {
			return fmt.Errorf("save fixed movement: %w", err)
		}
		for _, a := range list {
			a = a.Copy()
			a.FixedMovementID = &f.ID
			if err := r.Apportionments.Save(ctx, &a); err != nil {
				return fmt.Errorf("save apportionment: %w", err)
			}
		}
		if f.Apportionments, err = r.Apportionments.ListByFixedMovement(ctx, f.ID); err != nil {
			return fmt.Errorf("reload apportionments: %w", err)
		}

		slog.InfoContext(ctx, "Fixed movement saved",
			applog.FieldFixedMovementID, f.ID,
			"identification", f.Identification,
			applog.FieldAmountCents, f.Value.Cents,
			"undetermined", f.Undetermined)
		return nil
	})
	return core.Classify("save fixed movement", err)
}

// DeleteFixedMovement removes a template that was never launched.
func (s *FixedMovementService) DeleteFixedMovement(ctx context.Context, id int64) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		f, err := r.FixedMovements.FindByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := r.Launches.CountByFixedMovement(ctx, id)
		if err != nil {
			return fmt.Errorf("count launches: %w", err)
		}
		if n > 0 {
			return core.NewConflict(core.HasLaunches, f.Identification)
		}
		if err := r.Apportionments.DeleteByFixedMovement(ctx, id); err != nil {
			return fmt.Errorf("delete apportionments: %w", err)
		}
		return r.FixedMovements.Delete(ctx, id)
	})
	return core.Classify("delete fixed movement", err)
}

// LaunchFixedMovements generates one movement per template in the period.
func (s *FixedMovementService) LaunchFixedMovements(ctx context.Context, fixedMovementIDs []int64, periodID int64) ([]core.Launch, error) {
	var launches []core.Launch
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		period, err := r.Periods.FindByID(ctx, periodID)
		if err != nil {
			return err
		}
		if period.IsClosed() {
			return core.NewConflict(core.PeriodClosed, period.Identification)
		}
		templates := make([]core.FixedMovement, 0, len(fixedMovementIDs))
		for _, id := range fixedMovementIDs {
			f, err := r.FixedMovements.FindByID(ctx, id)
			if err != nil {
				return err
			}
			templates = append(templates, f)
		}
		launches, err = s.launch(ctx, r, templates, period)
		return err
	})
	return launches, core.Classify("launch fixed movements", err)
}

// OnPeriodOpened launches every active auto-launch template into the newly
// opened period as part of the same unit of work.
func (s *FixedMovementService) OnPeriodOpened(ctx context.Context, r ports.Repos, e events.Event) error {
	if e.Period == nil {
		return nil
	}
	templates, err := r.FixedMovements.ListAutoLaunch(ctx)
	if err != nil {
		return fmt.Errorf("list auto launch templates: %w", err)
	}
	launches, err := s.launch(ctx, r, templates, *e.Period)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring launch batch complete",
		"period", e.Period.Identification,
		"launched", len(launches),
		"total_checked", len(templates))
	return nil
}

// launch runs the batch inside the caller's unit of work. Templates that
// already have a launch in the period are skipped.
func (s *FixedMovementService) launch(ctx context.Context, r ports.Repos, templates []core.FixedMovement, period core.FinancialPeriod) ([]core.Launch, error) {
	var out []core.Launch
	for _, f := range templates {
		already, err := r.Launches.ExistsForPeriod(ctx, f.ID, period.ID)
		if err != nil {
			return nil, fmt.Errorf("check launch: %w", err)
		}
		if already {
			slog.InfoContext(ctx, "Fixed movement already launched in period",
				applog.FieldFixedMovementID, f.ID,
				"period", period.Identification)
			continue
		}

		if f.Status == core.FixedFinalized {
			return nil, core.NewConflict(core.QuotesExhausted, f.Identification)
		}

		l := core.Launch{FixedMovementID: f.ID, PeriodID: period.ID}
		if !f.Undetermined {
			last, err := r.Launches.MaxQuote(ctx, f.ID)
			if err != nil {
				return nil, fmt.Errorf("last quote: %w", err)
			}
			quote := last + 1
			if quote > f.TotalQuotes() {
				return nil, core.NewConflict(core.QuotesExhausted, f.Identification)
			}
			l.Quote = &quote
		}

		list, err := r.Apportionments.ListByFixedMovement(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("list template apportionments: %w", err)
		}
		m := &core.Movement{
			Description:    f.Description,
			Value:          f.Value,
			DueDate:        period.End,
			PeriodID:       period.ID,
			Apportionments: core.CopyApportionments(list),
		}
		if l.Quote != nil {
			m.Description = fmt.Sprintf("%s %d/%d", f.Identification, *l.Quote, f.TotalQuotes())
		}

		if err := s.movements.create(ctx, r, m); err != nil {
			return nil, fmt.Errorf("launch %s: %w", f.Identification, err)
		}

		if l.Quote != nil && f.IsLastQuote(*l.Quote) {
			f.Status = core.FixedFinalized
			if err := r.FixedMovements.Save(ctx, &f); err != nil {
				return nil, fmt.Errorf("finalize fixed movement: %w", err)
			}
		}

		l.MovementID = m.ID
		l.Code = ids.At(s.now())
		l.CreatedAt = s.now().UTC()
		if err := r.Launches.Save(ctx, &l); err != nil {
			return nil, fmt.Errorf("save launch: %w", err)
		}
		if s.metrics != nil {
			s.metrics.Launches.Inc()
		}
		out = append(out, l)

		slog.InfoContext(ctx, "Created movement from fixed movement",
			applog.FieldFixedMovementID, f.ID,
			applog.FieldMovementCode, m.Code,
			applog.FieldAmountCents, m.Value.Cents,
			"quote", quoteValue(l.Quote),
			"status", f.Status)
	}
	return out, nil
}

// ListFixedMovements pages the templates and flags those already launched
// in the active period.
func (s *FixedMovementService) ListFixedMovements(ctx context.Context, q core.PageQuery) (core.Page[core.FixedMovement], error) {
	var p core.Page[core.FixedMovement]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		if p, err = r.FixedMovements.List(ctx, q); err != nil {
			return err
		}
		active, err := r.Periods.FindActive(ctx)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		for i := range p.Items {
			if p.Items[i].AlreadyLaunched, err = r.Launches.ExistsForPeriod(ctx, p.Items[i].ID, active.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return p, core.Classify("list fixed movements", err)
}

func (s *FixedMovementService) FindFixedMovement(ctx context.Context, id int64) (core.FixedMovement, error) {
	var f core.FixedMovement
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		if f, err = r.FixedMovements.FindByID(ctx, id); err != nil {
			return err
		}
		f.Apportionments, err = r.Apportionments.ListByFixedMovement(ctx, id)
		return err
	})
	return f, core.Classify("find fixed movement", err)
}

func (s *FixedMovementService) ListLaunches(ctx context.Context, fixedMovementID int64, q core.PageQuery) (core.Page[core.Launch], error) {
	var p core.Page[core.Launch]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		p, err = r.Launches.ListByFixedMovement(ctx, fixedMovementID, q)
		return err
	})
	return p, core.Classify("list launches", err)
}

func quoteValue(q *int) int {
	if q == nil {
		return 0
	}
	return *q
}

// reconcileStatus keeps the stored status of an edited template, reopening a
// FINALIZED one whose new quote count leaves quotes to launch.
func reconcileStatus(ctx context.Context, r ports.Repos, stored core.FixedMovement, next *core.FixedMovement) (core.FixedMovementStatus, error) {
	if stored.Status != core.FixedFinalized {
		return stored.Status, nil
	}
	last, err := r.Launches.MaxQuote(ctx, stored.ID)
	if err != nil {
		return "", fmt.Errorf("last quote: %w", err)
	}
	if next.Undetermined || last < next.TotalQuotes() {
		return core.FixedActive, nil
	}
	return core.FixedFinalized, nil
}
