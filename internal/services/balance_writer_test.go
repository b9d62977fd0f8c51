package services

import (
	"context"
	"errors"
	"testing"

	"webbudget/internal/core"
	"webbudget/internal/ports"
)

func TestBalanceWriter_Apply(t *testing.T) {
	tests := []struct {
		name       string
		oldBalance int64
		wantErr    error
		wantRows   int
	}{
		{"current snapshot", 100000, nil, 2},
		{"stale snapshot", 90000, core.ErrStaleBalance, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := NewBalanceWriter(f.rec)

			err := f.store.Within(context.Background(), func(ctx context.Context, r ports.Repos) error {
				_, err := w.Apply(ctx, r, BalanceUpdate{
					WalletID:        f.wallet.ID,
					OldBalance:      core.Cents(tt.oldBalance),
					NewBalance:      core.Cents(tt.oldBalance - 5000),
					MovementedValue: core.Cents(5000),
					Type:            core.BalancePayment,
					Reference:       "manual",
				})
				return err
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(f.ledger(t)); n != tt.wantRows {
				t.Errorf("ledger rows = %d, want %d", n, tt.wantRows)
			}
			if tt.wantErr != nil && f.balance(t) != core.Cents(100000) {
				t.Errorf("stale write changed the balance to %s", f.balance(t))
			}
		})
	}
}

func TestBalanceWriter_VersionAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.wallets.FindWallet(ctx, f.wallet.ID)
	if err != nil {
		t.Fatalf("FindWallet: %v", err)
	}
	m := f.expense(t, 1000)
	if err := f.movements.PayMovement(ctx, m, f.cash()); err != nil {
		t.Fatalf("PayMovement: %v", err)
	}
	after, err := f.wallets.FindWallet(ctx, f.wallet.ID)
	if err != nil {
		t.Fatalf("FindWallet: %v", err)
	}
	if after.Version != before.Version+1 {
		t.Errorf("Version = %d, want %d", after.Version, before.Version+1)
	}

	// renaming keeps the balance and version
	after.Name = "Main"
	after.Balance = core.Cents(1)
	if err := f.wallets.SaveWallet(ctx, &after); err != nil {
		t.Fatalf("SaveWallet: %v", err)
	}
	if got := f.balance(t); got != core.Cents(99000) {
		t.Errorf("rename changed the balance to %s", got)
	}
}
