package services

import (
	"context"
	"errors"
	"fmt"

	"webbudget/internal/core"
	"webbudget/internal/ports"
)

// withClasses fills the class type and class cost center of each
// apportionment from storage so validation never trusts caller input.
func withClasses(ctx context.Context, r ports.Repos, list []core.Apportionment) ([]core.Apportionment, error) {
	out := make([]core.Apportionment, len(list))
	for i, a := range list {
		class, err := r.Classes.FindByID(ctx, a.MovementClassID)
		if err != nil {
			return nil, fmt.Errorf("load movement class: %w", err)
		}
		a.ClassType = class.Type
		a.ClassCostCenterID = class.CostCenterID
		out[i] = a
	}
	return out, nil
}

// checkOwnedApportionments rejects any stored apportionment in list or
// deleted that belongs to another movement.
func checkOwnedApportionments(ctx context.Context, r ports.Repos, movementID int64, list, deleted []core.Apportionment) error {
	stored, err := r.Apportionments.ListByMovement(ctx, movementID)
	if err != nil {
		return fmt.Errorf("list apportionments: %w", err)
	}
	owned := make(map[int64]bool, len(stored))
	for _, a := range stored {
		owned[a.ID] = true
	}
	for _, set := range [][]core.Apportionment{list, deleted} {
		for _, a := range set {
			if a.ID != 0 && !owned[a.ID] {
				return core.NewConflict(core.NotFound,
					fmt.Sprintf("apportionment %d of movement %d", a.ID, movementID))
			}
		}
	}
	return nil
}

// loadPayment reads a payment with its wallet and card.
func loadPayment(ctx context.Context, r ports.Repos, id int64) (*core.Payment, error) {
	p, err := r.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if err := resolveInstrument(ctx, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// resolveInstrument loads the wallet and card referenced by p.
func resolveInstrument(ctx context.Context, r ports.Repos, p *core.Payment) error {
	p.Wallet, p.Card = nil, nil
	if p.WalletID != nil {
		w, err := r.Wallets.FindByID(ctx, *p.WalletID)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		p.Wallet = &w
	}
	if p.CardID != nil {
		c, err := r.Cards.FindByID(ctx, *p.CardID)
		if err != nil {
			return fmt.Errorf("load card: %w", err)
		}
		if c.WalletID != nil {
			w, err := r.Wallets.FindByID(ctx, *c.WalletID)
			if err != nil {
				return fmt.Errorf("load card wallet: %w", err)
			}
			c.Wallet = &w
		}
		p.Card = &c
	}
	return nil
}

// loadMovement returns the stored movement with apportionments and payment.
func loadMovement(ctx context.Context, r ports.Repos, m core.Movement) (core.Movement, error) {
	list, err := r.Apportionments.ListByMovement(ctx, m.ID)
	if err != nil {
		return m, fmt.Errorf("list apportionments: %w", err)
	}
	m.Apportionments = list
	if m.PaymentID != nil {
		p, err := loadPayment(ctx, r, *m.PaymentID)
		if err != nil {
			return m, err
		}
		m.Payment = p
	}
	return m, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
