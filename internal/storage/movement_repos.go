package storage

import (
	"context"
	"fmt"
	"time"

	"webbudget/internal/core"
)

const movementSelect = `SELECT id, code, description, value_cents, due_date, state, kind, period_id,
	payment_id, card_invoice_id, card_invoice_paid, created_at FROM movements`

type movementRepo struct{ q queryer }

func scanMovement(s scanner) (core.Movement, error) {
	var (
		m                    core.Movement
		due, created         string
		paymentID, invoiceID nullInt64
	)
	err := s.Scan(&m.ID, &m.Code, &m.Description, &m.Value.Cents, &due, &m.State, &m.Kind, &m.PeriodID,
		&paymentID, &invoiceID, &m.CardInvoicePaid, &created)
	m.DueDate = parseDate(due)
	m.CreatedAt = parseTime(created)
	m.PaymentID = idPtr(paymentID)
	m.CardInvoiceID = idPtr(invoiceID)
	return m, err
}

func (r movementRepo) Save(ctx context.Context, m *core.Movement) error {
	if m.ID == 0 {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		res, err := r.q.ExecContext(ctx, `INSERT INTO movements (code, description, value_cents, due_date, state, kind,
			period_id, payment_id, card_invoice_id, card_invoice_paid, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Code, m.Description, m.Value.Cents, m.DueDate.String(), string(m.State), string(m.Kind), m.PeriodID,
			nullID(m.PaymentID), nullID(m.CardInvoiceID), m.CardInvoicePaid, formatTime(m.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}
		m.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE movements SET code = ?, description = ?, value_cents = ?, due_date = ?,
		state = ?, kind = ?, period_id = ?, payment_id = ?, card_invoice_id = ?, card_invoice_paid = ? WHERE id = ?`,
		m.Code, m.Description, m.Value.Cents, m.DueDate.String(), string(m.State), string(m.Kind), m.PeriodID,
		nullID(m.PaymentID), nullID(m.CardInvoiceID), m.CardInvoicePaid, m.ID)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	return requireRow(res, "movement", m.ID)
}

func (r movementRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM movements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	return nil
}

func (r movementRepo) FindByID(ctx context.Context, id int64) (core.Movement, error) {
	m, err := scanMovement(r.q.QueryRowContext(ctx, movementSelect+` WHERE id = ?`, id))
	return m, one(err, "movement", id)
}

func (r movementRepo) FindByCode(ctx context.Context, code string) (core.Movement, error) {
	m, err := scanMovement(r.q.QueryRowContext(ctx, movementSelect+` WHERE code = ?`, code))
	return m, one(err, "movement", code)
}

func (r movementRepo) List(ctx context.Context, q core.PageQuery) (core.Page[core.Movement], error) {
	return listPage(ctx, r.q, q, "movements", movementSelect, []string{"description", "code"},
		map[string]string{"due_date": "due_date", "value": "value_cents", "state": "state", "created_at": "created_at"},
		scanMovement, "")
}

func (r movementRepo) ListByPeriod(ctx context.Context, periodID int64) ([]core.Movement, error) {
	return queryAll(ctx, r.q, scanMovement, movementSelect+` WHERE period_id = ? ORDER BY id`, periodID)
}

func (r movementRepo) ListByCardInvoice(ctx context.Context, invoiceID int64) ([]core.Movement, error) {
	return queryAll(ctx, r.q, scanMovement, movementSelect+` WHERE card_invoice_id = ? ORDER BY id`, invoiceID)
}

// Class type and cost center come from the joined class so validation sees
// the stored truth.
const apportionmentSelect = `SELECT a.id, a.movement_id, a.fixed_movement_id, a.cost_center_id, a.movement_class_id,
	a.value_cents, c.type, c.cost_center_id FROM apportionments a JOIN movement_classes c ON c.id = a.movement_class_id`

type apportionmentRepo struct{ q queryer }

func scanApportionment(s scanner) (core.Apportionment, error) {
	var (
		a                 core.Apportionment
		movementID, fixed nullInt64
	)
	err := s.Scan(&a.ID, &movementID, &fixed, &a.CostCenterID, &a.MovementClassID, &a.Value.Cents,
		&a.ClassType, &a.ClassCostCenterID)
	a.MovementID = idPtr(movementID)
	a.FixedMovementID = idPtr(fixed)
	return a, err
}

func (r apportionmentRepo) Save(ctx context.Context, a *core.Apportionment) error {
	if a.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO apportionments (movement_id, fixed_movement_id, cost_center_id,
			movement_class_id, value_cents) VALUES (?, ?, ?, ?, ?)`,
			nullID(a.MovementID), nullID(a.FixedMovementID), a.CostCenterID, a.MovementClassID, a.Value.Cents)
		if err != nil {
			return fmt.Errorf("insert apportionment: %w", err)
		}
		a.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE apportionments SET movement_id = ?, fixed_movement_id = ?,
		cost_center_id = ?, movement_class_id = ?, value_cents = ? WHERE id = ?`,
		nullID(a.MovementID), nullID(a.FixedMovementID), a.CostCenterID, a.MovementClassID, a.Value.Cents, a.ID)
	if err != nil {
		return fmt.Errorf("update apportionment: %w", err)
	}
	return requireRow(res, "apportionment", a.ID)
}

func (r apportionmentRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM apportionments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete apportionment: %w", err)
	}
	return nil
}

func (r apportionmentRepo) ListByMovement(ctx context.Context, movementID int64) ([]core.Apportionment, error) {
	return queryAll(ctx, r.q, scanApportionment, apportionmentSelect+` WHERE a.movement_id = ? ORDER BY a.id`, movementID)
}

func (r apportionmentRepo) ListByFixedMovement(ctx context.Context, fixedMovementID int64) ([]core.Apportionment, error) {
	return queryAll(ctx, r.q, scanApportionment, apportionmentSelect+` WHERE a.fixed_movement_id = ? ORDER BY a.id`, fixedMovementID)
}

func (r apportionmentRepo) DeleteByMovement(ctx context.Context, movementID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM apportionments WHERE movement_id = ?`, movementID); err != nil {
		return fmt.Errorf("delete movement apportionments: %w", err)
	}
	return nil
}

func (r apportionmentRepo) DeleteByFixedMovement(ctx context.Context, fixedMovementID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM apportionments WHERE fixed_movement_id = ?`, fixedMovementID); err != nil {
		return fmt.Errorf("delete fixed movement apportionments: %w", err)
	}
	return nil
}

func (r apportionmentRepo) CountByClass(ctx context.Context, classID int64) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM apportionments WHERE movement_class_id = ?`, classID)
}

func (r apportionmentRepo) SumPaidByClass(ctx context.Context, classID, periodID int64) (core.Money, error) {
	var total int64
	err := r.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(a.value_cents), 0) FROM apportionments a
		JOIN movements m ON m.id = a.movement_id
		WHERE a.movement_class_id = ? AND m.period_id = ? AND m.state IN ('PAID', 'CALCULATED')`,
		classID, periodID).Scan(&total)
	if err != nil {
		return core.Zero, fmt.Errorf("sum class movements: %w", err)
	}
	return core.Cents(total), nil
}

const paymentSelect = `SELECT id, method, wallet_id, card_id, paid_on FROM payments`

type paymentRepo struct{ q queryer }

func scanPayment(s scanner) (core.Payment, error) {
	var (
		p              core.Payment
		walletID, card nullInt64
		paidOn         string
	)
	err := s.Scan(&p.ID, &p.Method, &walletID, &card, &paidOn)
	p.WalletID = idPtr(walletID)
	p.CardID = idPtr(card)
	p.PaidOn = parseDate(paidOn)
	return p, err
}

func (r paymentRepo) Save(ctx context.Context, p *core.Payment) error {
	if p.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO payments (method, wallet_id, card_id, paid_on) VALUES (?, ?, ?, ?)`,
			string(p.Method), nullID(p.WalletID), nullID(p.CardID), p.PaidOn.String())
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		p.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE payments SET method = ?, wallet_id = ?, card_id = ?, paid_on = ? WHERE id = ?`,
		string(p.Method), nullID(p.WalletID), nullID(p.CardID), p.PaidOn.String(), p.ID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return requireRow(res, "payment", p.ID)
}

func (r paymentRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

func (r paymentRepo) FindByID(ctx context.Context, id int64) (core.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, paymentSelect+` WHERE id = ?`, id))
	return p, one(err, "payment", id)
}

const cardInvoiceSelect = `SELECT id, card_id, period_id, movement_id FROM card_invoices`

type cardInvoiceRepo struct{ q queryer }

func scanCardInvoice(s scanner) (core.CardInvoice, error) {
	var (
		inv        core.CardInvoice
		movementID nullInt64
	)
	err := s.Scan(&inv.ID, &inv.CardID, &inv.PeriodID, &movementID)
	inv.MovementID = idPtr(movementID)
	return inv, err
}

func (r cardInvoiceRepo) Save(ctx context.Context, inv *core.CardInvoice) error {
	if inv.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO card_invoices (card_id, period_id, movement_id) VALUES (?, ?, ?)`,
			inv.CardID, inv.PeriodID, nullID(inv.MovementID))
		if err != nil {
			return fmt.Errorf("insert card invoice: %w", err)
		}
		inv.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE card_invoices SET card_id = ?, period_id = ?, movement_id = ? WHERE id = ?`,
		inv.CardID, inv.PeriodID, nullID(inv.MovementID), inv.ID)
	if err != nil {
		return fmt.Errorf("update card invoice: %w", err)
	}
	return requireRow(res, "card invoice", inv.ID)
}

func (r cardInvoiceRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM card_invoices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete card invoice: %w", err)
	}
	return nil
}

func (r cardInvoiceRepo) FindByID(ctx context.Context, id int64) (core.CardInvoice, error) {
	inv, err := scanCardInvoice(r.q.QueryRowContext(ctx, cardInvoiceSelect+` WHERE id = ?`, id))
	return inv, one(err, "card invoice", id)
}

func (r cardInvoiceRepo) FindByMovement(ctx context.Context, movementID int64) (core.CardInvoice, error) {
	inv, err := scanCardInvoice(r.q.QueryRowContext(ctx, cardInvoiceSelect+` WHERE movement_id = ?`, movementID))
	return inv, one(err, "card invoice for movement", movementID)
}
