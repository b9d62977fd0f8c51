package storage

import (
	"context"
	"fmt"
	"time"

	"webbudget/internal/core"
)

const walletSelect = `SELECT id, name, balance_cents, version FROM wallets`

type walletRepo struct{ q queryer }

func scanWallet(s scanner) (core.Wallet, error) {
	var w core.Wallet
	err := s.Scan(&w.ID, &w.Name, &w.Balance.Cents, &w.Version)
	return w, err
}

// Save never touches the balance of an existing wallet; balances move only
// through UpdateBalance.
func (r walletRepo) Save(ctx context.Context, w *core.Wallet) error {
	if w.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO wallets (name, balance_cents, version) VALUES (?, ?, 0)`,
			w.Name, w.Balance.Cents)
		if err != nil {
			return fmt.Errorf("insert wallet: %w", err)
		}
		w.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE wallets SET name = ? WHERE id = ?`, w.Name, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return requireRow(res, "wallet", w.ID)
}

func (r walletRepo) FindByID(ctx context.Context, id int64) (core.Wallet, error) {
	w, err := scanWallet(r.q.QueryRowContext(ctx, walletSelect+` WHERE id = ?`, id))
	return w, one(err, "wallet", id)
}

func (r walletRepo) List(ctx context.Context, q core.PageQuery) (core.Page[core.Wallet], error) {
	return listPage(ctx, r.q, q, "wallets", walletSelect, []string{"name"},
		map[string]string{"name": "name", "balance": "balance_cents"}, scanWallet, "")
}

// Lock reads the wallet inside the running transaction. Transactions begin
// IMMEDIATE, so the database write lock is already held and no other writer
// can change the row before commit.
func (r walletRepo) Lock(ctx context.Context, id int64) (core.Wallet, error) {
	w, err := scanWallet(r.q.QueryRowContext(ctx, walletSelect+` WHERE id = ?`, id))
	return w, one(err, "wallet", id)
}

func (r walletRepo) UpdateBalance(ctx context.Context, id int64, balance core.Money, version int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE wallets SET balance_cents = ?, version = version + 1 WHERE id = ? AND version = ?`,
		balance.Cents, id, version)
	if err != nil {
		return 0, fmt.Errorf("update wallet balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

const balanceSelect = `SELECT id, wallet_id, old_balance_cents, new_balance_cents, movemented_value_cents, type,
	movement_code, created_at FROM wallet_balances`

type balanceRepo struct {
	q   queryer
	now func() time.Time
}

func scanBalance(s scanner) (core.WalletBalance, error) {
	var (
		b       core.WalletBalance
		created string
	)
	err := s.Scan(&b.ID, &b.WalletID, &b.OldBalance.Cents, &b.NewBalance.Cents, &b.MovementedValue.Cents, &b.Type,
		&b.MovementCode, &created)
	b.CreatedAt = parseTime(created)
	return b, err
}

func (r balanceRepo) Append(ctx context.Context, b *core.WalletBalance) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `INSERT INTO wallet_balances (wallet_id, old_balance_cents, new_balance_cents,
		movemented_value_cents, type, movement_code, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.WalletID, b.OldBalance.Cents, b.NewBalance.Cents, b.MovementedValue.Cents, string(b.Type), b.MovementCode,
		formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert wallet balance: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (r balanceRepo) ListByWallet(ctx context.Context, walletID int64) ([]core.WalletBalance, error) {
	return queryAll(ctx, r.q, scanBalance, balanceSelect+` WHERE wallet_id = ? ORDER BY id`, walletID)
}

const cardSelect = `SELECT id, name, type, wallet_id, invoice_due_day FROM cards`

type cardRepo struct{ q queryer }

func scanCard(s scanner) (core.Card, error) {
	var (
		c        core.Card
		walletID nullInt64
	)
	err := s.Scan(&c.ID, &c.Name, &c.Type, &walletID, &c.InvoiceDueDay)
	c.WalletID = idPtr(walletID)
	return c, err
}

func (r cardRepo) Save(ctx context.Context, c *core.Card) error {
	if c.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO cards (name, type, wallet_id, invoice_due_day) VALUES (?, ?, ?, ?)`,
			c.Name, string(c.Type), nullID(c.WalletID), c.InvoiceDueDay)
		if err != nil {
			return fmt.Errorf("insert card: %w", err)
		}
		c.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE cards SET name = ?, type = ?, wallet_id = ?, invoice_due_day = ? WHERE id = ?`,
		c.Name, string(c.Type), nullID(c.WalletID), c.InvoiceDueDay, c.ID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return requireRow(res, "card", c.ID)
}

func (r cardRepo) FindByID(ctx context.Context, id int64) (core.Card, error) {
	c, err := scanCard(r.q.QueryRowContext(ctx, cardSelect+` WHERE id = ?`, id))
	return c, one(err, "card", id)
}

func (r cardRepo) List(ctx context.Context, q core.PageQuery) (core.Page[core.Card], error) {
	return listPage(ctx, r.q, q, "cards", cardSelect, []string{"name"},
		map[string]string{"name": "name"}, scanCard, "")
}
