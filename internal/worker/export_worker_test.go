package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"webbudget/internal/amqp"
	"webbudget/internal/cache"
	"webbudget/internal/core"
	"webbudget/internal/events"
	"webbudget/internal/services"
	"webbudget/internal/sheets"
	sheetsmem "webbudget/internal/sheets/memory"
	"webbudget/internal/storage/memory"
)

type env struct {
	store     *memory.Store
	movements *services.MovementService
	exporter  *sheetsmem.Store
	worker    *ExportWorker
	period    core.FinancialPeriod
	paid      core.Movement
	open      core.Movement
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	e := &env{store: memory.New(), exporter: sheetsmem.New()}
	bus := events.NewBus()
	balance := services.NewBalanceWriter(nil)
	budget := services.NewBudgetService(e.store)
	e.movements = services.NewMovementService(e.store, bus, balance)
	wallets := services.NewWalletService(e.store, balance)
	periods := services.NewPeriodService(e.store, bus)

	cc := core.CostCenter{Name: "Home", ExpensesBudget: core.Cents(100000)}
	if err := budget.SaveCostCenter(ctx, &cc); err != nil {
		t.Fatalf("SaveCostCenter: %v", err)
	}
	rent := core.MovementClass{Name: "Rent", Type: core.Expense, CostCenterID: cc.ID, Budget: core.Cents(60000)}
	if err := budget.SaveMovementClass(ctx, &rent); err != nil {
		t.Fatalf("SaveMovementClass: %v", err)
	}
	e.period = core.MonthPeriod(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	if err := periods.OpenPeriod(ctx, &e.period); err != nil {
		t.Fatalf("OpenPeriod: %v", err)
	}
	wallet := core.Wallet{Name: "Checking"}
	if err := wallets.SaveWallet(ctx, &wallet); err != nil {
		t.Fatalf("SaveWallet: %v", err)
	}

	newMovement := func(desc string) core.Movement {
		m := core.Movement{
			Description: desc,
			Value:       core.Cents(30000),
			PeriodID:    e.period.ID,
			Apportionments: []core.Apportionment{
				{CostCenterID: cc.ID, MovementClassID: rent.ID, Value: core.Cents(30000)},
			},
		}
		if err := e.movements.CreateMovement(ctx, &m); err != nil {
			t.Fatalf("CreateMovement: %v", err)
		}
		return m
	}
	e.paid = newMovement("rent march")
	if err := e.movements.PayMovement(ctx, &e.paid, &core.Payment{Method: core.InCash, WalletID: &wallet.ID}); err != nil {
		t.Fatalf("PayMovement: %v", err)
	}
	e.open = newMovement("rent april")

	e.worker = NewExportWorker(e.store, e.movements, e.exporter, cache.NewLRU[struct{}](100, time.Hour))
	return e
}

func message(event, code string) *amqp.MovementEventMessage {
	return amqp.NewMovementEventMessage(event, 0, code, 0, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
}

func TestExportWorker_HandleEvent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	if err := e.worker.HandleEvent(ctx, message("MovementPaid", e.paid.Code)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	rows := e.exporter.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(rows))
	}
	got := rows[0]
	if got.Code != e.paid.Code || got.Period != e.period.Identification || got.Method != core.InCash {
		t.Errorf("unexpected row %+v", got)
	}
	if got.Direction != core.Expense || got.Amount != core.Cents(30000) {
		t.Errorf("unexpected amount or direction %+v", got)
	}
	if len(got.Classes) != 1 || got.Classes[0] != "Rent" {
		t.Errorf("Classes = %v, want [Rent]", got.Classes)
	}

	// redelivery of the same message is dropped
	if err := e.worker.HandleEvent(ctx, message("MovementPaid", e.paid.Code)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if n := len(e.exporter.Rows()); n != 1 {
		t.Errorf("duplicate delivery exported %d rows", n)
	}

	if err := e.worker.HandleEvent(ctx, message("MovementDeleted", e.paid.Code)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if n := len(e.exporter.Rows()); n != 0 {
		t.Errorf("expected the row removed, %d left", n)
	}
}

func TestExportWorker_IgnoredEvents(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		msg  *amqp.MovementEventMessage
	}{
		{"created", message("MovementCreated", e.open.Code)},
		{"period opened", message("PeriodOpened", "")},
		{"paid but gone", message("MovementPaid", "01UNKNOWN")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.worker.HandleEvent(ctx, tt.msg); err != nil {
				t.Errorf("HandleEvent: %v", err)
			}
		})
	}
	if n := len(e.exporter.Rows()); n != 0 {
		t.Errorf("expected nothing exported, got %d rows", n)
	}
}

type failingExporter struct {
	*sheetsmem.Store
	fail error
}

func (f *failingExporter) Append(ctx context.Context, r sheets.MovementRow) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	return f.Store.Append(ctx, r)
}

func TestExportWorker_FailureAllowsRedelivery(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	exp := &failingExporter{Store: sheetsmem.New(), fail: errors.New("quota exceeded")}
	w := NewExportWorker(e.store, e.movements, exp, cache.NewLRU[struct{}](100, time.Hour))

	msg := message("MovementPaid", e.paid.Code)
	if err := w.HandleEvent(ctx, msg); err == nil {
		t.Fatal("expected append failure")
	}
	exp.fail = nil
	if err := w.HandleEvent(ctx, msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if n := len(exp.Rows()); n != 1 {
		t.Errorf("expected 1 row after redelivery, got %d", n)
	}
}

func TestExportWorker_ExportPeriod(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := e.worker.ExportPeriod(ctx, e.period.ID); err != nil {
			t.Fatalf("ExportPeriod: %v", err)
		}
	}
	rows := e.exporter.Rows()
	if len(rows) != 1 || rows[0].Code != e.paid.Code {
		t.Errorf("expected only the paid movement exported once, got %+v", rows)
	}
}
