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
	"webbudget/internal/ports"
)

// MovementService runs the movement lifecycle. Every operation is one unit
// of work: storage writes, balance changes and subscriber side effects
// commit together or not at all.
type MovementService struct {
	uow     ports.UnitOfWork
	bus     *events.Bus
	balance *BalanceWriter
	now     func() time.Time
}

func NewMovementService(uow ports.UnitOfWork, bus *events.Bus, balance *BalanceWriter) *MovementService {
	return &MovementService{
		uow:     uow,
		bus:     bus,
		balance: balance,
		now:     time.Now,
	}
}

// CreateMovement validates and stores a new OPEN movement with its
// apportionments.
func (s *MovementService) CreateMovement(ctx context.Context, m *core.Movement) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		return s.create(ctx, r, m)
	})
	return core.Classify("create movement", err)
}

func (s *MovementService) create(ctx context.Context, r ports.Repos, m *core.Movement) error {
	m.Payment = nil
	m.PaymentID = nil

	list, err := withClasses(ctx, r, m.Apportionments)
	if err != nil {
		return err
	}
	if err := core.ValidateApportionments(m.Value, list); err != nil {
		return err
	}
	if _, err := r.Periods.FindByID(ctx, m.PeriodID); err != nil {
		return fmt.Errorf("load period: %w", err)
	}

	if !m.HasDueDate() {
		m.DueDate = core.DateOf(s.now())
	}
	if m.Code == "" {
		m.Code = ids.At(s.now())
	}
	if m.Kind == "" {
		m.Kind = core.KindMovement
	}
	m.ID = 0
	m.State = core.StateOpen
	m.CreatedAt = s.now().UTC()
	for i := range list {
		list[i].ID = 0
	}

	if err := r.Movements.Save(ctx, m); err != nil {
		return fmt.Errorf("save movement: %w", err)
	}
	if m.Apportionments, err = saveMovementApportionments(ctx, r, m.ID, list); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Movement created",
		"code", m.Code,
		applog.FieldAmountCents, m.Value.Cents,
		applog.FieldPeriodID, m.PeriodID)

	return s.bus.Notify(ctx, r, events.Event{Name: events.MovementCreated, Movement: m})
}

// UpdateMovement stores the editable fields and the apportionment set of an
// existing movement. Apportionments in DeletedApportionments are removed.
func (s *MovementService) UpdateMovement(ctx context.Context, m *core.Movement) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		stored, err := r.Movements.FindByID(ctx, m.ID)
		if err != nil {
			return err
		}

		if err := checkOwnedApportionments(ctx, r, m.ID, m.Apportionments, m.DeletedApportionments); err != nil {
			return err
		}
		list, err := withClasses(ctx, r, m.Apportionments)
		if err != nil {
			return err
		}
		if err := core.ValidateApportionments(m.Value, list); err != nil {
			return err
		}

		for _, a := range m.DeletedApportionments {
			if err := r.Apportionments.Delete(ctx, a.ID); err != nil {
				return fmt.Errorf("delete apportionment: %w", err)
			}
		}

		// lifecycle fields only change through their own operations
		m.Code = stored.Code
		m.State = stored.State
		m.Kind = stored.Kind
		m.PaymentID = stored.PaymentID
		m.CardInvoiceID = stored.CardInvoiceID
		m.CardInvoicePaid = stored.CardInvoicePaid
		m.CreatedAt = stored.CreatedAt
		if m.PeriodID == 0 {
			m.PeriodID = stored.PeriodID
		}
		if !m.HasDueDate() {
			m.DueDate = core.DateOf(s.now())
		}

		if err := r.Movements.Save(ctx, m); err != nil {
			return fmt.Errorf("save movement: %w", err)
		}
		if _, err := saveMovementApportionments(ctx, r, m.ID, list); err != nil {
			return err
		}
		if m.Apportionments, err = r.Apportionments.ListByMovement(ctx, m.ID); err != nil {
			return fmt.Errorf("reload apportionments: %w", err)
		}
		m.DeletedApportionments = nil

		return s.bus.Notify(ctx, r, events.Event{Name: events.MovementUpdated, Movement: m})
	})
	return core.Classify("update movement", err)
}

// PayMovement records payment p for m, marks it PAID and moves the wallet
// balance when the payment goes through a wallet.
func (s *MovementService) PayMovement(ctx context.Context, m *core.Movement, p *core.Payment) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		stored, err := r.Movements.FindByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if !stored.State.CanTransitionTo(core.StatePaid) {
			return core.NewValidation(core.InvalidTransition,
				fmt.Sprintf("%s -> %s", stored.State, core.StatePaid))
		}

		if err := resolveInstrument(ctx, r, p); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}

		if err := checkOwnedApportionments(ctx, r, m.ID, m.Apportionments, m.DeletedApportionments); err != nil {
			return err
		}
		list, err := withClasses(ctx, r, m.Apportionments)
		if err != nil {
			return err
		}
		if err := core.ValidateApportionments(m.Value, list); err != nil {
			return err
		}

		m.Code = stored.Code
		m.Kind = stored.Kind
		m.CreatedAt = stored.CreatedAt
		m.CardInvoiceID = stored.CardInvoiceID
		m.CardInvoicePaid = stored.CardInvoicePaid
		if m.PeriodID == 0 {
			m.PeriodID = stored.PeriodID
		}
		period, err := r.Periods.FindByID(ctx, m.PeriodID)
		if err != nil {
			return fmt.Errorf("load period: %w", err)
		}

		if !m.HasDueDate() {
			m.DueDate = core.DateOf(s.now())
		}
		if p.Method == core.CreditCard {
			m.DueDate = p.CreditCardInvoiceDueDate(period)
		}
		if p.PaidOn.IsZero() {
			p.PaidOn = core.DateOf(s.now())
		}

		for _, a := range m.DeletedApportionments {
			if err := r.Apportionments.Delete(ctx, a.ID); err != nil {
				return fmt.Errorf("delete apportionment: %w", err)
			}
		}
		if err := r.Payments.Save(ctx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		m.PaymentID = &p.ID
		m.Payment = p
		m.State = core.StatePaid
		if err := r.Movements.Save(ctx, m); err != nil {
			return fmt.Errorf("save movement: %w", err)
		}
		if _, err := saveMovementApportionments(ctx, r, m.ID, list); err != nil {
			return err
		}
		if m.Apportionments, err = r.Apportionments.ListByMovement(ctx, m.ID); err != nil {
			return fmt.Errorf("reload apportionments: %w", err)
		}
		m.DeletedApportionments = nil

		if wallet := p.ResolveWallet(); wallet != nil {
			u := BalanceUpdate{
				WalletID:        wallet.ID,
				OldBalance:      wallet.Balance,
				MovementedValue: m.Value,
				Reference:       m.Code,
			}
			if m.IsExpense() {
				u.NewBalance, u.Type = wallet.Balance.Sub(m.Value), core.BalancePayment
			} else {
				u.NewBalance, u.Type = wallet.Balance.Add(m.Value), core.BalanceRevenue
			}
			if _, err := s.balance.Apply(ctx, r, u); err != nil {
				return err
			}
		}

		slog.InfoContext(ctx, "Movement paid",
			"code", m.Code,
			applog.FieldAmountCents, m.Value.Cents,
			"method", p.Method)

		return s.bus.Notify(ctx, r, events.Event{Name: events.MovementPaid, Movement: m})
	})
	return core.Classify("pay movement", err)
}

// CancelMovement moves an OPEN movement to CANCELED.
func (s *MovementService) CancelMovement(ctx context.Context, id int64) (core.Movement, error) {
	var m core.Movement
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		if m, err = r.Movements.FindByID(ctx, id); err != nil {
			return err
		}
		if !m.State.CanTransitionTo(core.StateCanceled) {
			return core.NewValidation(core.InvalidTransition,
				fmt.Sprintf("%s -> %s", m.State, core.StateCanceled))
		}
		m.State = core.StateCanceled
		if err := r.Movements.Save(ctx, &m); err != nil {
			return fmt.Errorf("save movement: %w", err)
		}
		return s.bus.Notify(ctx, r, events.Event{Name: events.MovementUpdated, Movement: &m})
	})
	return m, core.Classify("cancel movement", err)
}

// DeleteMovement removes a movement, giving back its wallet effect when it
// was paid in cash or by debit card.
func (s *MovementService) DeleteMovement(ctx context.Context, id int64) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		m, err := r.Movements.FindByID(ctx, id)
		if err != nil {
			return err
		}
		return s.delete(ctx, r, m)
	})
	return core.Classify("delete movement", err)
}

// DeleteMovementByCode deletes the movement with code unless its period is
// already closed.
func (s *MovementService) DeleteMovementByCode(ctx context.Context, code string) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		m, err := r.Movements.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		period, err := r.Periods.FindByID(ctx, m.PeriodID)
		if err != nil {
			return fmt.Errorf("load period: %w", err)
		}
		if period.IsClosed() {
			return core.NewConflict(core.PeriodClosed, code)
		}
		return s.delete(ctx, r, m)
	})
	return core.Classify("delete movement", err)
}

func (s *MovementService) delete(ctx context.Context, r ports.Repos, m core.Movement) error {
	if m.IsCardInvoicePaid() {
		return core.NewConflict(core.PaidInvoiceLinked, m.Code)
	}

	if err := reopenFixedMovement(ctx, r, m.ID); err != nil {
		return err
	}

	m, err := loadMovement(ctx, r, m)
	if err != nil {
		return err
	}

	if m.State == core.StatePaid && m.Payment != nil &&
		(m.Payment.Method == core.InCash || m.Payment.Method == core.DebitCard) {
		value := m.Value
		if m.IsRevenue() {
			value = value.Neg()
		}
		if err := s.giveBack(ctx, r, m.Payment, value, m.Code); err != nil {
			return err
		}
	}

	if err := removeMovement(ctx, r, m); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Movement deleted", "code", m.Code, "state", m.State)
	return s.bus.Notify(ctx, r, events.Event{Name: events.MovementDeleted, Movement: &m})
}

// DeleteCardInvoiceMovement deletes the movement that pays a card invoice,
// releases the movements grouped in that invoice and deletes the invoice.
func (s *MovementService) DeleteCardInvoiceMovement(ctx context.Context, movementID int64) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		m, err := r.Movements.FindByID(ctx, movementID)
		if err != nil {
			return err
		}
		invoice, err := r.CardInvoices.FindByMovement(ctx, m.ID)
		if err != nil {
			return err
		}

		linked, err := r.Movements.ListByCardInvoice(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("list invoice movements: %w", err)
		}
		for _, lm := range linked {
			lm.CardInvoiceID = nil
			lm.CardInvoicePaid = false
			if err := r.Movements.Save(ctx, &lm); err != nil {
				return fmt.Errorf("release invoice movement: %w", err)
			}
			if lm.ID == m.ID {
				m.CardInvoiceID, m.CardInvoicePaid = nil, false
			}
		}

		if m, err = loadMovement(ctx, r, m); err != nil {
			return err
		}
		if m.State == core.StatePaid && m.Payment != nil {
			if err := s.giveBack(ctx, r, m.Payment, m.Value, m.Code); err != nil {
				return err
			}
		}

		if err := removeMovement(ctx, r, m); err != nil {
			return err
		}
		if err := r.CardInvoices.Delete(ctx, invoice.ID); err != nil {
			return fmt.Errorf("delete card invoice: %w", err)
		}

		slog.InfoContext(ctx, "Card invoice movement deleted",
			"code", m.Code,
			"invoice_id", invoice.ID,
			"released", len(linked))
		return s.bus.Notify(ctx, r, events.Event{Name: events.MovementDeleted, Movement: &m})
	})
	return core.Classify("delete card invoice movement", err)
}

// giveBack adds value to the wallet behind p with a BALANCE_RETURN entry.
func (s *MovementService) giveBack(ctx context.Context, r ports.Repos, p *core.Payment, value core.Money, code string) error {
	wallet := p.ResolveWallet()
	if wallet == nil {
		return nil
	}
	current, err := r.Wallets.FindByID(ctx, wallet.ID)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	_, err = s.balance.Apply(ctx, r, BalanceUpdate{
		WalletID:        current.ID,
		OldBalance:      current.Balance,
		NewBalance:      current.Balance.Add(value),
		MovementedValue: value,
		Type:            core.BalanceReturn,
		Reference:       code,
	})
	return err
}

// FindMovementByCode returns the movement with its apportionments and payment.
func (s *MovementService) FindMovementByCode(ctx context.Context, code string) (core.Movement, error) {
	var m core.Movement
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		found, err := r.Movements.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		m, err = loadMovement(ctx, r, found)
		return err
	})
	return m, core.Classify("find movement", err)
}

func (s *MovementService) ListMovements(ctx context.Context, q core.PageQuery) (core.Page[core.Movement], error) {
	var p core.Page[core.Movement]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		p, err = r.Movements.List(ctx, q)
		return err
	})
	return p, core.Classify("list movements", err)
}

func (s *MovementService) ListMovementsByPeriod(ctx context.Context, periodID int64) ([]core.Movement, error) {
	var list []core.Movement
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		list, err = r.Movements.ListByPeriod(ctx, periodID)
		return err
	})
	return list, core.Classify("list period movements", err)
}

// saveMovementApportionments binds list to movementID and stores it.
func saveMovementApportionments(ctx context.Context, r ports.Repos, movementID int64, list []core.Apportionment) ([]core.Apportionment, error) {
	for i := range list {
		list[i].MovementID = &movementID
		list[i].FixedMovementID = nil
		if err := r.Apportionments.Save(ctx, &list[i]); err != nil {
			return nil, fmt.Errorf("save apportionment: %w", err)
		}
	}
	return list, nil
}

// reopenFixedMovement drops the launch that produced movementID and sets its
// template back to ACTIVE when the launch was the last quote.
func reopenFixedMovement(ctx context.Context, r ports.Repos, movementID int64) error {
	launch, err := r.Launches.FindByMovement(ctx, movementID)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find launch: %w", err)
	}

	if launch.Quote != nil {
		fm, err := r.FixedMovements.FindByID(ctx, launch.FixedMovementID)
		if err != nil {
			return fmt.Errorf("load fixed movement: %w", err)
		}
		if fm.IsLastQuote(*launch.Quote) && fm.Status == core.FixedFinalized {
			fm.Status = core.FixedActive
			if err := r.FixedMovements.Save(ctx, &fm); err != nil {
				return fmt.Errorf("reopen fixed movement: %w", err)
			}
			slog.InfoContext(ctx, "Fixed movement reopened", applog.FieldFixedMovementID, fm.ID)
		}
	}
	if err := r.Launches.Delete(ctx, launch.ID); err != nil {
		return fmt.Errorf("delete launch: %w", err)
	}
	return nil
}

// removeMovement hard deletes m, its apportionments and its payment.
func removeMovement(ctx context.Context, r ports.Repos, m core.Movement) error {
	if err := r.Apportionments.DeleteByMovement(ctx, m.ID); err != nil {
		return err
	}
	if err := r.Movements.Delete(ctx, m.ID); err != nil {
		return err
	}
	if m.PaymentID != nil {
		if err := r.Payments.Delete(ctx, *m.PaymentID); err != nil {
			return err
		}
	}
	return nil
}
