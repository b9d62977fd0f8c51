package services

import (
	"context"
	"testing"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/events"
	"webbudget/internal/metrics"
	"webbudget/internal/ports"
	"webbudget/internal/storage/memory"
)

type fixture struct {
	store     *memory.Store
	bus       *events.Bus
	rec       *metrics.Recorder
	budget    *BudgetService
	movements *MovementService
	wallets   *WalletService
	fixed     *FixedMovementService
	periods   *PeriodService

	costCenter core.CostCenter
	rent       core.MovementClass
	salary     core.MovementClass
	period     core.FinancialPeriod
	wallet     core.Wallet
}

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.New(),
		bus:   events.NewBus(),
		rec:   metrics.New(),
	}
	events.RegisterDefaults(f.bus, f.rec)

	balance := NewBalanceWriter(f.rec)
	f.budget = NewBudgetService(f.store)
	f.movements = NewMovementService(f.store, f.bus, balance)
	f.movements.now = func() time.Time { return fixedNow }
	f.wallets = NewWalletService(f.store, balance)
	f.fixed = NewFixedMovementService(f.store, f.bus, f.movements, f.rec)
	f.fixed.now = func() time.Time { return fixedNow }
	f.periods = NewPeriodService(f.store, f.bus)

	ctx := context.Background()

	f.costCenter = core.CostCenter{
		Name:            "Home",
		ExpensesBudget:  core.Cents(100000),
		RevenuesBudget:  core.Cents(500000),
		ControlExpenses: true,
	}
	if err := f.budget.SaveCostCenter(ctx, &f.costCenter); err != nil {
		t.Fatalf("SaveCostCenter: %v", err)
	}
	f.rent = core.MovementClass{Name: "Rent", Type: core.Expense, CostCenterID: f.costCenter.ID, Budget: core.Cents(60000)}
	if err := f.budget.SaveMovementClass(ctx, &f.rent); err != nil {
		t.Fatalf("SaveMovementClass(rent): %v", err)
	}
	f.salary = core.MovementClass{Name: "Salary", Type: core.Revenue, CostCenterID: f.costCenter.ID, Budget: core.Cents(300000)}
	if err := f.budget.SaveMovementClass(ctx, &f.salary); err != nil {
		t.Fatalf("SaveMovementClass(salary): %v", err)
	}

	f.period = core.MonthPeriod(fixedNow)
	if err := f.periods.OpenPeriod(ctx, &f.period); err != nil {
		t.Fatalf("OpenPeriod: %v", err)
	}

	f.wallet = core.Wallet{Name: "Checking"}
	if err := f.wallets.SaveWallet(ctx, &f.wallet); err != nil {
		t.Fatalf("SaveWallet: %v", err)
	}
	if _, err := f.wallets.AdjustBalance(ctx, f.wallet.ID, core.Cents(100000)); err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}
	return f
}

// expense builds an OPEN movement fully apportioned to rent.
func (f *fixture) expense(t *testing.T, cents int64) *core.Movement {
	t.Helper()
	m := &core.Movement{
		Description: "rent",
		Value:       core.Cents(cents),
		PeriodID:    f.period.ID,
		Apportionments: []core.Apportionment{
			{CostCenterID: f.costCenter.ID, MovementClassID: f.rent.ID, Value: core.Cents(cents)},
		},
	}
	if err := f.movements.CreateMovement(context.Background(), m); err != nil {
		t.Fatalf("CreateMovement: %v", err)
	}
	return m
}

func (f *fixture) revenue(t *testing.T, cents int64) *core.Movement {
	t.Helper()
	m := &core.Movement{
		Description: "salary",
		Value:       core.Cents(cents),
		PeriodID:    f.period.ID,
		Apportionments: []core.Apportionment{
			{CostCenterID: f.costCenter.ID, MovementClassID: f.salary.ID, Value: core.Cents(cents)},
		},
	}
	if err := f.movements.CreateMovement(context.Background(), m); err != nil {
		t.Fatalf("CreateMovement: %v", err)
	}
	return m
}

func (f *fixture) cash() *core.Payment {
	return &core.Payment{Method: core.InCash, WalletID: &f.wallet.ID}
}

func (f *fixture) balance(t *testing.T) core.Money {
	t.Helper()
	w, err := f.wallets.FindWallet(context.Background(), f.wallet.ID)
	if err != nil {
		t.Fatalf("FindWallet: %v", err)
	}
	return w.Balance
}

func (f *fixture) ledger(t *testing.T) []core.WalletBalance {
	t.Helper()
	entries, err := f.wallets.Ledger(context.Background(), f.wallet.ID)
	if err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	return entries
}

func (f *fixture) outbox(t *testing.T) []core.OutboxEvent {
	t.Helper()
	var pending []core.OutboxEvent
	err := f.store.Within(context.Background(), func(ctx context.Context, r ports.Repos) (err error) {
		pending, err = r.Outbox.Pending(ctx, 1000, 1000)
		return err
	})
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	return pending
}
