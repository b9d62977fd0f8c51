package services

import (
	"context"
	"fmt"
	"log/slog"

	"webbudget/internal/core"
	applog "webbudget/internal/log"
	"webbudget/internal/metrics"
	"webbudget/internal/ports"
)

// BalanceUpdate asks for one wallet balance change.
type BalanceUpdate struct {
	WalletID        int64
	OldBalance      core.Money
	NewBalance      core.Money
	MovementedValue core.Money
	Type            core.BalanceType
	Reference       string
}

// BalanceWriter is the only path that changes a wallet balance. Each change
// appends exactly one ledger row.
type BalanceWriter struct {
	metrics *metrics.Recorder
}

func NewBalanceWriter(rec *metrics.Recorder) *BalanceWriter {
	return &BalanceWriter{metrics: rec}
}

// Apply locks the wallet, checks that the caller saw the current balance,
// records the ledger row and moves the balance. A mismatch fails with a
// StaleBalance conflict and changes nothing.
func (w *BalanceWriter) Apply(ctx context.Context, r ports.Repos, u BalanceUpdate) (core.WalletBalance, error) {
	wallet, err := r.Wallets.Lock(ctx, u.WalletID)
	if err != nil {
		return core.WalletBalance{}, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet.Balance.Cmp(u.OldBalance) != 0 {
		slog.WarnContext(ctx, "Stale wallet balance",
			applog.FieldWalletID, wallet.ID,
			"expected_cents", u.OldBalance.Cents,
			"actual_cents", wallet.Balance.Cents)
		return core.WalletBalance{}, core.NewConflict(core.StaleBalance, fmt.Sprintf("wallet %d", wallet.ID))
	}

	entry := core.WalletBalance{
		WalletID:        wallet.ID,
		OldBalance:      u.OldBalance,
		NewBalance:      u.NewBalance,
		MovementedValue: u.MovementedValue,
		Type:            u.Type,
		MovementCode:    u.Reference,
	}
	if err := r.Balances.Append(ctx, &entry); err != nil {
		return core.WalletBalance{}, fmt.Errorf("append wallet balance: %w", err)
	}

	n, err := r.Wallets.UpdateBalance(ctx, wallet.ID, u.NewBalance, wallet.Version)
	if err != nil {
		return core.WalletBalance{}, err
	}
	if n == 0 {
		return core.WalletBalance{}, core.NewConflict(core.StaleBalance, fmt.Sprintf("wallet %d", wallet.ID))
	}

	if w != nil && w.metrics != nil {
		w.metrics.BalanceEntries.WithLabelValues(string(u.Type)).Inc()
	}
	slog.InfoContext(ctx, "Wallet balance updated",
		applog.FieldWalletID, wallet.ID,
		"type", u.Type,
		"old_cents", u.OldBalance.Cents,
		"new_cents", u.NewBalance.Cents,
		applog.FieldMovementCode, u.Reference)
	return entry, nil
}
