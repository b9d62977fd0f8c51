package services

import (
	"context"
	"errors"
	"testing"

	"webbudget/internal/core"
)

func TestWalletService_AdjustBalance(t *testing.T) {
	tests := []struct {
		name     string
		target   int64
		wantMove int64
	}{
		{"raise", 150000, 50000},
		{"lower", 80000, -20000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			entry, err := f.wallets.AdjustBalance(context.Background(), f.wallet.ID, core.Cents(tt.target))
			if err != nil {
				t.Fatalf("AdjustBalance: %v", err)
			}
			if entry.Type != core.BalanceAdjustment || entry.MovementedValue != core.Cents(tt.wantMove) {
				t.Errorf("entry = %+v", entry)
			}
			if entry.OldBalance != core.Cents(100000) || entry.NewBalance != core.Cents(tt.target) {
				t.Errorf("entry balances %s -> %s", entry.OldBalance, entry.NewBalance)
			}
			if got := f.balance(t); got != core.Cents(tt.target) {
				t.Errorf("balance = %s, want %s", got, core.Cents(tt.target))
			}
			entries := f.ledger(t)
			if len(entries) != 2 {
				t.Fatalf("ledger rows = %d, want 2", len(entries))
			}
			for _, e := range entries {
				if e.Type != core.BalanceAdjustment || e.MovementCode != "" {
					t.Errorf("manual entry %+v should be an adjustment without movement", e)
				}
			}
		})
	}
}

func TestWalletService_MissingWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.wallets.AdjustBalance(ctx, 999, core.Cents(1)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("AdjustBalance() error = %v, want not found", err)
	}
	if _, err := f.wallets.Ledger(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Ledger() error = %v, want not found", err)
	}
}

func TestWalletService_SaveCard(t *testing.T) {
	f := newFixture(t)
	missing := int64(999)

	tests := []struct {
		name    string
		card    core.Card
		wantErr error
	}{
		{"credit without wallet", core.Card{Name: "Visa", Type: core.CardCredit, InvoiceDueDay: 10}, nil},
		{"debit with wallet", core.Card{Name: "Debit", Type: core.CardDebit, WalletID: &f.wallet.ID}, nil},
		{"debit without wallet", core.Card{Name: "Debit", Type: core.CardDebit}, core.ErrValidation},
		{"unknown type", core.Card{Name: "Gift", Type: "GIFT"}, core.ErrValidation},
		{"unknown wallet", core.Card{Name: "Visa", Type: core.CardCredit, WalletID: &missing}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.card
			err := f.wallets.SaveCard(context.Background(), &c)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SaveCard() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && (c.ID == 0 || c.InvoiceDueDay < 1) {
				t.Errorf("saved card = %+v", c)
			}
		})
	}

	cards, err := f.wallets.ListCards(context.Background(), core.PageQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if cards.Total != 2 {
		t.Errorf("cards total = %d, want 2", cards.Total)
	}
}
