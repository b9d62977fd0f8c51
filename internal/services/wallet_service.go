package services

import (
	"context"
	"fmt"

	"webbudget/internal/core"
	"webbudget/internal/ports"
)

// WalletService manages wallets and cards and reads the balance ledger.
type WalletService struct {
	uow     ports.UnitOfWork
	balance *BalanceWriter
}

func NewWalletService(uow ports.UnitOfWork, balance *BalanceWriter) *WalletService {
	return &WalletService{uow: uow, balance: balance}
}

// SaveWallet creates or renames a wallet. The balance of an existing wallet
// is left untouched.
func (s *WalletService) SaveWallet(ctx context.Context, w *core.Wallet) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		if w.ID != 0 {
			stored, err := r.Wallets.FindByID(ctx, w.ID)
			if err != nil {
				return err
			}
			w.Balance, w.Version = stored.Balance, stored.Version
		}
		return r.Wallets.Save(ctx, w)
	})
	return core.Classify("save wallet", err)
}

// AdjustBalance sets the wallet balance to target through the ledger. The
// entry is an ADJUSTMENT carrying the signed difference.
func (s *WalletService) AdjustBalance(ctx context.Context, walletID int64, target core.Money) (core.WalletBalance, error) {
	var entry core.WalletBalance
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		w, err := r.Wallets.FindByID(ctx, walletID)
		if err != nil {
			return err
		}
		entry, err = s.balance.Apply(ctx, r, BalanceUpdate{
			WalletID:        w.ID,
			OldBalance:      w.Balance,
			NewBalance:      target,
			MovementedValue: target.Sub(w.Balance),
			Type:            core.BalanceAdjustment,
		})
		return err
	})
	return entry, core.Classify("adjust balance", err)
}

func (s *WalletService) FindWallet(ctx context.Context, id int64) (core.Wallet, error) {
	var w core.Wallet
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		w, err = r.Wallets.FindByID(ctx, id)
		return err
	})
	return w, core.Classify("find wallet", err)
}

func (s *WalletService) ListWallets(ctx context.Context, q core.PageQuery) (core.Page[core.Wallet], error) {
	var p core.Page[core.Wallet]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		p, err = r.Wallets.List(ctx, q)
		return err
	})
	return p, core.Classify("list wallets", err)
}

// Ledger lists the balance entries of a wallet in causal order.
func (s *WalletService) Ledger(ctx context.Context, walletID int64) ([]core.WalletBalance, error) {
	var entries []core.WalletBalance
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		if _, err := r.Wallets.FindByID(ctx, walletID); err != nil {
			return err
		}
		var err error
		entries, err = r.Balances.ListByWallet(ctx, walletID)
		return err
	})
	return entries, core.Classify("list wallet ledger", err)
}

// SaveCard stores a card after checking that its wallet exists.
func (s *WalletService) SaveCard(ctx context.Context, c *core.Card) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		if c.Type != core.CardCredit && c.Type != core.CardDebit {
			return core.NewValidation(core.InvalidPayment, "unknown card type "+string(c.Type))
		}
		if c.Type == core.CardDebit && c.WalletID == nil {
			return core.NewValidation(core.InvalidPayment, "debit card requires a wallet")
		}
		if c.WalletID != nil {
			if _, err := r.Wallets.FindByID(ctx, *c.WalletID); err != nil {
				return fmt.Errorf("load card wallet: %w", err)
			}
		}
		if c.InvoiceDueDay < 1 || c.InvoiceDueDay > 31 {
			c.InvoiceDueDay = 1
		}
		return r.Cards.Save(ctx, c)
	})
	return core.Classify("save card", err)
}

func (s *WalletService) ListCards(ctx context.Context, q core.PageQuery) (core.Page[core.Card], error) {
	var p core.Page[core.Card]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		p, err = r.Cards.List(ctx, q)
		return err
	})
	return p, core.Classify("list cards", err)
}
