package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/ports"
)

func (f *fixture) template(t *testing.T, quotes *int, auto bool) *core.FixedMovement {
	t.Helper()
	fm := &core.FixedMovement{
		Identification: "Car loan",
		Description:    "car loan",
		Value:          core.Cents(20000),
		Quotes:         quotes,
		Undetermined:   quotes == nil,
		AutoLaunch:     auto,
		Apportionments: []core.Apportionment{
			{CostCenterID: f.costCenter.ID, MovementClassID: f.rent.ID, Value: core.Cents(20000)},
		},
	}
	if err := f.fixed.SaveFixedMovement(context.Background(), fm); err != nil {
		t.Fatalf("SaveFixedMovement: %v", err)
	}
	return fm
}

func intPtr(v int) *int { return &v }

func TestFixedMovementService_SaveFixedMovement(t *testing.T) {
	tests := []struct {
		name         string
		quotes       *int
		undetermined bool
		apportioned  int64
		wantErr      error
	}{
		{"finite", intPtr(3), false, 20000, nil},
		{"undetermined", nil, true, 20000, nil},
		{"missing quotes", nil, false, 20000, core.ErrMissingQuotes},
		{"zero quotes", intPtr(0), false, 20000, core.ErrMissingQuotes},
		{"mismatch", intPtr(3), false, 19999, core.ErrApportionmentMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			fm := &core.FixedMovement{
				Identification: "Gym",
				Value:          core.Cents(20000),
				Quotes:         tt.quotes,
				Undetermined:   tt.undetermined,
				Apportionments: []core.Apportionment{
					{CostCenterID: f.costCenter.ID, MovementClassID: f.rent.ID, Value: core.Cents(tt.apportioned)},
				},
			}
			err := f.fixed.SaveFixedMovement(context.Background(), fm)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SaveFixedMovement() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SaveFixedMovement: %v", err)
			}
			if fm.Status != core.FixedActive {
				t.Errorf("Status = %s, want ACTIVE", fm.Status)
			}
			if len(fm.Apportionments) != 1 || fm.Apportionments[0].ID == 0 {
				t.Errorf("apportionments not reloaded: %+v", fm.Apportionments)
			}
		})
	}
}

func TestFixedMovementService_QuotesAcrossPeriods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fm := f.template(t, intPtr(3), true)

	var lastPeriod core.FinancialPeriod
	for i, month := range []time.Month{time.April, time.May, time.June} {
		p, opened, err := f.periods.EnsureMonthOpen(ctx, time.Date(2024, month, 2, 0, 0, 0, 0, time.UTC))
		if err != nil || !opened {
			t.Fatalf("EnsureMonthOpen(%s) = %v, %v", month, opened, err)
		}
		lastPeriod = p

		got, err := f.fixed.FindFixedMovement(ctx, fm.ID)
		if err != nil {
			t.Fatalf("FindFixedMovement: %v", err)
		}
		want := core.FixedActive
		if i == 2 {
			want = core.FixedFinalized
		}
		if got.Status != want {
			t.Errorf("after %s: Status = %s, want %s", month, got.Status, want)
		}
	}

	launches, err := f.fixed.ListLaunches(ctx, fm.ID, core.PageQuery{})
	if err != nil {
		t.Fatalf("ListLaunches: %v", err)
	}
	if launches.Total != 3 {
		t.Fatalf("expected 3 launches, got %d", launches.Total)
	}
	for i, l := range launches.Items {
		if l.Quote == nil || *l.Quote != i+1 {
			t.Errorf("launch %d quote = %v, want %d", i, l.Quote, i+1)
		}
	}

	movements, err := f.movements.ListMovementsByPeriod(ctx, lastPeriod.ID)
	if err != nil {
		t.Fatalf("ListMovementsByPeriod: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 movement in June, got %d", len(movements))
	}
	last := movements[0]
	if last.Description != "Car loan 3/3" {
		t.Errorf("Description = %q, want %q", last.Description, "Car loan 3/3")
	}
	if last.DueDate.String() != "2024-06-30" {
		t.Errorf("DueDate = %s, want period end", last.DueDate)
	}

	// A fourth month launches nothing for a finalized template.
	if _, _, err := f.periods.EnsureMonthOpen(ctx, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("EnsureMonthOpen(July): %v", err)
	}
	if n, _ := f.fixed.ListLaunches(ctx, fm.ID, core.PageQuery{}); n.Total != 3 {
		t.Errorf("expected finalized template to stop launching, got %d launches", n.Total)
	}

	if err := f.movements.DeleteMovement(ctx, last.ID); err != nil {
		t.Fatalf("DeleteMovement: %v", err)
	}
	got, err := f.fixed.FindFixedMovement(ctx, fm.ID)
	if err != nil {
		t.Fatalf("FindFixedMovement: %v", err)
	}
	if got.Status != core.FixedActive {
		t.Errorf("Status after deleting last quote = %s, want ACTIVE", got.Status)
	}
	if n, _ := f.fixed.ListLaunches(ctx, fm.ID, core.PageQuery{}); n.Total != 2 {
		t.Errorf("expected the launch row deleted, got %d launches", n.Total)
	}
}

func TestFixedMovementService_LaunchUndetermined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fm := f.template(t, nil, false)

	launches, err := f.fixed.LaunchFixedMovements(ctx, []int64{fm.ID}, f.period.ID)
	if err != nil {
		t.Fatalf("LaunchFixedMovements: %v", err)
	}
	if len(launches) != 1 || launches[0].Quote != nil {
		t.Fatalf("unexpected launches %+v", launches)
	}

	movements, err := f.movements.ListMovementsByPeriod(ctx, f.period.ID)
	if err != nil {
		t.Fatalf("ListMovementsByPeriod: %v", err)
	}
	if len(movements) != 1 || movements[0].Description != "car loan" {
		t.Errorf("unexpected movements %+v", movements)
	}

	again, err := f.fixed.LaunchFixedMovements(ctx, []int64{fm.ID}, f.period.ID)
	if err != nil {
		t.Fatalf("second LaunchFixedMovements: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected the second launch in the same period to be skipped, got %d", len(again))
	}

	page, err := f.fixed.ListFixedMovements(ctx, core.PageQuery{})
	if err != nil {
		t.Fatalf("ListFixedMovements: %v", err)
	}
	if len(page.Items) != 1 || !page.Items[0].AlreadyLaunched {
		t.Errorf("expected template flagged as launched: %+v", page.Items)
	}
	got, _ := f.fixed.FindFixedMovement(ctx, fm.ID)
	if got.Status != core.FixedActive {
		t.Errorf("undetermined template must stay ACTIVE, got %s", got.Status)
	}
}

func TestFixedMovementService_DeleteWithLaunches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fm := f.template(t, intPtr(2), false)

	if _, err := f.fixed.LaunchFixedMovements(ctx, []int64{fm.ID}, f.period.ID); err != nil {
		t.Fatalf("LaunchFixedMovements: %v", err)
	}
	if err := f.fixed.DeleteFixedMovement(ctx, fm.ID); !errors.Is(err, core.ErrHasLaunches) {
		t.Errorf("expected HasLaunches, got %v", err)
	}

	unused := f.template(t, intPtr(2), false)
	if err := f.fixed.DeleteFixedMovement(ctx, unused.ID); err != nil {
		t.Errorf("DeleteFixedMovement: %v", err)
	}
}

func TestFixedMovementService_LaunchFailureRollsBackPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.template(t, intPtr(3), true)

	if err := f.store.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		return r.Classes.Delete(ctx, f.rent.ID)
	}); err != nil {
		t.Fatalf("delete class: %v", err)
	}

	_, opened, err := f.periods.EnsureMonthOpen(ctx, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	if err == nil || opened {
		t.Fatalf("expected the open to fail with the launch, got opened=%v err=%v", opened, err)
	}
	page, err := f.periods.ListPeriods(ctx, core.PageQuery{Filter: "04/2024"})
	if err != nil {
		t.Fatalf("ListPeriods: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("expected the period open rolled back, found %d", page.Total)
	}
}

func TestFixedMovementService_FinalizedTemplateStopsLaunching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fm := f.template(t, intPtr(1), false)

	if _, err := f.fixed.LaunchFixedMovements(ctx, []int64{fm.ID}, f.period.ID); err != nil {
		t.Fatalf("LaunchFixedMovements(March): %v", err)
	}
	april, _, err := f.periods.EnsureMonthOpen(ctx, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("EnsureMonthOpen(April): %v", err)
	}

	launches, err := f.fixed.LaunchFixedMovements(ctx, []int64{fm.ID}, april.ID)
	if !errors.Is(err, core.ErrQuotesExhausted) {
		t.Fatalf("LaunchFixedMovements(April) = %d launches, %v; want quotes exhausted", len(launches), err)
	}
	if again, err := f.fixed.LaunchFixedMovements(ctx, []int64{fm.ID}, f.period.ID); err != nil || len(again) != 0 {
		t.Errorf("relaunch into March = %d launches, %v; want skipped", len(again), err)
	}
	if page, _ := f.fixed.ListLaunches(ctx, fm.ID, core.PageQuery{}); page.Total != 1 {
		t.Errorf("launches = %d, want 1", page.Total)
	}

	// raising the quote count reopens the template
	fm.Quotes = intPtr(2)
	if err := f.fixed.SaveFixedMovement(ctx, fm); err != nil {
		t.Fatalf("SaveFixedMovement: %v", err)
	}
	if fm.Status != core.FixedActive {
		t.Fatalf("Status after raising quotes = %s, want ACTIVE", fm.Status)
	}
	launches, err = f.fixed.LaunchFixedMovements(ctx, []int64{fm.ID}, april.ID)
	if err != nil {
		t.Fatalf("LaunchFixedMovements(April) after edit: %v", err)
	}
	if len(launches) != 1 || launches[0].Quote == nil || *launches[0].Quote != 2 {
		t.Errorf("unexpected launches %+v", launches)
	}
}

func TestFixedMovementService_DeleteMiddleQuoteKeepsQuotesIncreasing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fm := f.template(t, intPtr(3), true)

	var opened []core.FinancialPeriod
	for _, month := range []time.Month{time.April, time.May} {
		p, _, err := f.periods.EnsureMonthOpen(ctx, time.Date(2024, month, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("EnsureMonthOpen(%s): %v", month, err)
		}
		opened = append(opened, p)
	}

	aprilMovements, err := f.movements.ListMovementsByPeriod(ctx, opened[0].ID)
	if err != nil || len(aprilMovements) != 1 {
		t.Fatalf("ListMovementsByPeriod(April) = %d, %v", len(aprilMovements), err)
	}
	if err := f.movements.DeleteMovement(ctx, aprilMovements[0].ID); err != nil {
		t.Fatalf("DeleteMovement: %v", err)
	}

	if _, _, err := f.periods.EnsureMonthOpen(ctx, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("EnsureMonthOpen(June): %v", err)
	}

	page, err := f.fixed.ListLaunches(ctx, fm.ID, core.PageQuery{})
	if err != nil {
		t.Fatalf("ListLaunches: %v", err)
	}
	seen := map[int]bool{}
	for _, l := range page.Items {
		if l.Quote == nil {
			t.Fatal("finite template launched without a quote")
		}
		if seen[*l.Quote] {
			t.Errorf("quote %d launched twice", *l.Quote)
		}
		seen[*l.Quote] = true
	}
	if !seen[2] || !seen[3] || len(seen) != 2 {
		t.Errorf("quotes = %v, want 2 and 3", seen)
	}

	got, err := f.fixed.FindFixedMovement(ctx, fm.ID)
	if err != nil {
		t.Fatalf("FindFixedMovement: %v", err)
	}
	if got.Status != core.FixedFinalized {
		t.Errorf("Status = %s, want FINALIZED after quote 3", got.Status)
	}
}
