package memory

import (
	"context"
	"time"

	"webbudget/internal/core"
)

type costCenters struct{ st *state }

func (r costCenters) Save(_ context.Context, v *core.CostCenter) error {
	t := r.st.costCenters
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("cost center", v.ID)
	}
	t.rows[v.ID] = *v
	return nil
}

func (r costCenters) Delete(_ context.Context, id int64) error {
	delete(r.st.costCenters.rows, id)
	return nil
}

func (r costCenters) FindByID(_ context.Context, id int64) (core.CostCenter, error) {
	v, ok := r.st.costCenters.rows[id]
	if !ok {
		return core.CostCenter{}, notFound("cost center", id)
	}
	return v, nil
}

func (r costCenters) List(_ context.Context, q core.PageQuery) (core.Page[core.CostCenter], error) {
	return page(r.st.costCenters.all(), q, func(c core.CostCenter, f string) bool {
		return contains(c.Name, f) || contains(c.Description, f)
	}), nil
}

func (r costCenters) FindByNameAndParent(_ context.Context, name string, parentID *int64) (core.CostCenter, error) {
	for _, c := range r.st.costCenters.all() {
		if c.Name == name && sameParent(c.ParentID, parentID) {
			return c, nil
		}
	}
	return core.CostCenter{}, notFound("cost center", name)
}

type classes struct{ st *state }

func (r classes) Save(_ context.Context, v *core.MovementClass) error {
	t := r.st.classes
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("movement class", v.ID)
	}
	row := *v
	row.TotalMovements = core.Zero
	t.rows[v.ID] = row
	return nil
}

func (r classes) Delete(_ context.Context, id int64) error {
	delete(r.st.classes.rows, id)
	return nil
}

func (r classes) FindByID(_ context.Context, id int64) (core.MovementClass, error) {
	v, ok := r.st.classes.rows[id]
	if !ok {
		return core.MovementClass{}, notFound("movement class", id)
	}
	return v, nil
}

func (r classes) List(_ context.Context, q core.PageQuery) (core.Page[core.MovementClass], error) {
	return page(r.st.classes.all(), q, func(c core.MovementClass, f string) bool {
		return contains(c.Name, f)
	}), nil
}

func (r classes) FindByCostCenter(_ context.Context, costCenterID int64, t core.ClassType) ([]core.MovementClass, error) {
	return r.st.classes.where(func(c core.MovementClass) bool {
		return c.CostCenterID == costCenterID && c.Type == t
	}), nil
}

func (r classes) FindByNameAndType(_ context.Context, name string, t core.ClassType, costCenterID int64) (core.MovementClass, error) {
	for _, c := range r.st.classes.all() {
		if c.Name == name && c.Type == t && c.CostCenterID == costCenterID {
			return c, nil
		}
	}
	return core.MovementClass{}, notFound("movement class", name)
}

type movements struct{ st *state }

func (r movements) Save(_ context.Context, v *core.Movement) error {
	t := r.st.movements
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("movement", v.ID)
	}
	row := *v
	row.Apportionments = nil
	row.DeletedApportionments = nil
	row.Payment = nil
	t.rows[v.ID] = row
	return nil
}

func (r movements) Delete(_ context.Context, id int64) error {
	delete(r.st.movements.rows, id)
	return nil
}

func (r movements) FindByID(_ context.Context, id int64) (core.Movement, error) {
	v, ok := r.st.movements.rows[id]
	if !ok {
		return core.Movement{}, notFound("movement", id)
	}
	return v, nil
}

func (r movements) List(_ context.Context, q core.PageQuery) (core.Page[core.Movement], error) {
	return page(r.st.movements.all(), q, func(m core.Movement, f string) bool {
		return contains(m.Description, f) || contains(m.Code, f)
	}), nil
}

func (r movements) FindByCode(_ context.Context, code string) (core.Movement, error) {
	for _, m := range r.st.movements.rows {
		if m.Code == code {
			return m, nil
		}
	}
	return core.Movement{}, notFound("movement", code)
}

func (r movements) ListByPeriod(_ context.Context, periodID int64) ([]core.Movement, error) {
	return r.st.movements.where(func(m core.Movement) bool { return m.PeriodID == periodID }), nil
}

func (r movements) ListByCardInvoice(_ context.Context, invoiceID int64) ([]core.Movement, error) {
	return r.st.movements.where(func(m core.Movement) bool {
		return m.CardInvoiceID != nil && *m.CardInvoiceID == invoiceID
	}), nil
}

type apportionments struct{ st *state }

func (r apportionments) Save(_ context.Context, v *core.Apportionment) error {
	t := r.st.apportionments
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("apportionment", v.ID)
	}
	t.rows[v.ID] = *v
	return nil
}

func (r apportionments) Delete(_ context.Context, id int64) error {
	delete(r.st.apportionments.rows, id)
	return nil
}

// withClass refreshes the denormalized class fields from the class table.
func (r apportionments) withClass(list []core.Apportionment) []core.Apportionment {
	for i, a := range list {
		if c, ok := r.st.classes.rows[a.MovementClassID]; ok {
			list[i].ClassType = c.Type
			list[i].ClassCostCenterID = c.CostCenterID
		}
	}
	return list
}

func (r apportionments) ListByMovement(_ context.Context, movementID int64) ([]core.Apportionment, error) {
	return r.withClass(r.st.apportionments.where(func(a core.Apportionment) bool {
		return a.MovementID != nil && *a.MovementID == movementID
	})), nil
}

func (r apportionments) ListByFixedMovement(_ context.Context, fixedMovementID int64) ([]core.Apportionment, error) {
	return r.withClass(r.st.apportionments.where(func(a core.Apportionment) bool {
		return a.FixedMovementID != nil && *a.FixedMovementID == fixedMovementID
	})), nil
}

func (r apportionments) DeleteByMovement(ctx context.Context, movementID int64) error {
	list, _ := r.ListByMovement(ctx, movementID)
	for _, a := range list {
		delete(r.st.apportionments.rows, a.ID)
	}
	return nil
}

func (r apportionments) DeleteByFixedMovement(ctx context.Context, fixedMovementID int64) error {
	list, _ := r.ListByFixedMovement(ctx, fixedMovementID)
	for _, a := range list {
		delete(r.st.apportionments.rows, a.ID)
	}
	return nil
}

func (r apportionments) CountByClass(_ context.Context, classID int64) (int, error) {
	return len(r.st.apportionments.where(func(a core.Apportionment) bool { return a.MovementClassID == classID })), nil
}

func (r apportionments) SumPaidByClass(_ context.Context, classID, periodID int64) (core.Money, error) {
	var total core.Money
	for _, a := range r.st.apportionments.rows {
		if a.MovementClassID != classID || a.MovementID == nil {
			continue
		}
		m, ok := r.st.movements.rows[*a.MovementID]
		if !ok || m.PeriodID != periodID {
			continue
		}
		if m.State == core.StatePaid || m.State == core.StateCalculated {
			total = total.Add(a.Value)
		}
	}
	return total, nil
}

type fixedMovements struct{ st *state }

func (r fixedMovements) Save(_ context.Context, v *core.FixedMovement) error {
	t := r.st.fixed
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("fixed movement", v.ID)
	}
	row := *v
	row.Apportionments = nil
	row.AlreadyLaunched = false
	t.rows[v.ID] = row
	return nil
}

func (r fixedMovements) Delete(_ context.Context, id int64) error {
	delete(r.st.fixed.rows, id)
	return nil
}

func (r fixedMovements) FindByID(_ context.Context, id int64) (core.FixedMovement, error) {
	v, ok := r.st.fixed.rows[id]
	if !ok {
		return core.FixedMovement{}, notFound("fixed movement", id)
	}
	return v, nil
}

func (r fixedMovements) List(_ context.Context, q core.PageQuery) (core.Page[core.FixedMovement], error) {
	return page(r.st.fixed.all(), q, func(f core.FixedMovement, s string) bool {
		return contains(f.Identification, s) || contains(f.Description, s)
	}), nil
}

func (r fixedMovements) ListAutoLaunch(_ context.Context) ([]core.FixedMovement, error) {
	return r.st.fixed.where(func(f core.FixedMovement) bool {
		return f.AutoLaunch && f.Status == core.FixedActive
	}), nil
}

type launches struct{ st *state }

func (r launches) Save(_ context.Context, v *core.Launch) error {
	t := r.st.launches
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("launch", v.ID)
	}
	t.rows[v.ID] = *v
	return nil
}

func (r launches) Delete(_ context.Context, id int64) error {
	delete(r.st.launches.rows, id)
	return nil
}

func (r launches) byFixed(id int64) []core.Launch {
	return r.st.launches.where(func(l core.Launch) bool { return l.FixedMovementID == id })
}

func (r launches) CountByFixedMovement(_ context.Context, fixedMovementID int64) (int, error) {
	return len(r.byFixed(fixedMovementID)), nil
}

func (r launches) MaxQuote(_ context.Context, fixedMovementID int64) (int, error) {
	top := 0
	for _, l := range r.byFixed(fixedMovementID) {
		if l.Quote != nil && *l.Quote > top {
			top = *l.Quote
		}
	}
	return top, nil
}

func (r launches) ListByFixedMovement(_ context.Context, fixedMovementID int64, q core.PageQuery) (core.Page[core.Launch], error) {
	return page(r.byFixed(fixedMovementID), q, func(l core.Launch, f string) bool {
		return contains(l.Code, f)
	}), nil
}

func (r launches) FindByMovement(_ context.Context, movementID int64) (core.Launch, error) {
	for _, l := range r.st.launches.rows {
		if l.MovementID == movementID {
			return l, nil
		}
	}
	return core.Launch{}, notFound("launch for movement", movementID)
}

func (r launches) ExistsForPeriod(_ context.Context, fixedMovementID, periodID int64) (bool, error) {
	for _, l := range r.st.launches.rows {
		if l.FixedMovementID == fixedMovementID && l.PeriodID == periodID {
			return true, nil
		}
	}
	return false, nil
}

type payments struct{ st *state }

func (r payments) Save(_ context.Context, v *core.Payment) error {
	t := r.st.payments
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("payment", v.ID)
	}
	row := *v
	row.Wallet, row.Card = nil, nil
	t.rows[v.ID] = row
	return nil
}

func (r payments) Delete(_ context.Context, id int64) error {
	delete(r.st.payments.rows, id)
	return nil
}

func (r payments) FindByID(_ context.Context, id int64) (core.Payment, error) {
	v, ok := r.st.payments.rows[id]
	if !ok {
		return core.Payment{}, notFound("payment", id)
	}
	return v, nil
}

type wallets struct{ st *state }

func (r wallets) Save(_ context.Context, v *core.Wallet) error {
	t := r.st.wallets
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("wallet", v.ID)
	}
	t.rows[v.ID] = *v
	return nil
}

func (r wallets) FindByID(_ context.Context, id int64) (core.Wallet, error) {
	v, ok := r.st.wallets.rows[id]
	if !ok {
		return core.Wallet{}, notFound("wallet", id)
	}
	return v, nil
}

func (r wallets) List(_ context.Context, q core.PageQuery) (core.Page[core.Wallet], error) {
	return page(r.st.wallets.all(), q, func(w core.Wallet, f string) bool {
		return contains(w.Name, f)
	}), nil
}

// Lock needs no extra work: the store already runs one unit of work at a time.
func (r wallets) Lock(ctx context.Context, id int64) (core.Wallet, error) {
	return r.FindByID(ctx, id)
}

func (r wallets) UpdateBalance(_ context.Context, id int64, balance core.Money, version int64) (int64, error) {
	w, ok := r.st.wallets.rows[id]
	if !ok || w.Version != version {
		return 0, nil
	}
	w.Balance = balance
	w.Version++
	r.st.wallets.rows[id] = w
	return 1, nil
}

type balances struct {
	st  *state
	now func() time.Time
}

func (r balances) Append(_ context.Context, b *core.WalletBalance) error {
	b.ID = r.st.balances.next()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now().UTC()
	}
	r.st.balances.rows[b.ID] = *b
	return nil
}

func (r balances) ListByWallet(_ context.Context, walletID int64) ([]core.WalletBalance, error) {
	return r.st.balances.where(func(b core.WalletBalance) bool { return b.WalletID == walletID }), nil
}

type cards struct{ st *state }

func (r cards) Save(_ context.Context, v *core.Card) error {
	t := r.st.cards
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("card", v.ID)
	}
	row := *v
	row.Wallet = nil
	t.rows[v.ID] = row
	return nil
}

func (r cards) FindByID(_ context.Context, id int64) (core.Card, error) {
	v, ok := r.st.cards.rows[id]
	if !ok {
		return core.Card{}, notFound("card", id)
	}
	return v, nil
}

func (r cards) List(_ context.Context, q core.PageQuery) (core.Page[core.Card], error) {
	return page(r.st.cards.all(), q, func(c core.Card, f string) bool {
		return contains(c.Name, f)
	}), nil
}

type invoices struct{ st *state }

func (r invoices) Save(_ context.Context, v *core.CardInvoice) error {
	t := r.st.invoices
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("card invoice", v.ID)
	}
	t.rows[v.ID] = *v
	return nil
}

func (r invoices) Delete(_ context.Context, id int64) error {
	delete(r.st.invoices.rows, id)
	return nil
}

func (r invoices) FindByID(_ context.Context, id int64) (core.CardInvoice, error) {
	v, ok := r.st.invoices.rows[id]
	if !ok {
		return core.CardInvoice{}, notFound("card invoice", id)
	}
	return v, nil
}

func (r invoices) FindByMovement(_ context.Context, movementID int64) (core.CardInvoice, error) {
	for _, inv := range r.st.invoices.all() {
		if inv.MovementID != nil && *inv.MovementID == movementID {
			return inv, nil
		}
	}
	return core.CardInvoice{}, notFound("card invoice for movement", movementID)
}

type periods struct{ st *state }

func (r periods) Save(_ context.Context, v *core.FinancialPeriod) error {
	t := r.st.periods
	if v.ID == 0 {
		v.ID = t.next()
	} else if _, ok := t.rows[v.ID]; !ok {
		return notFound("financial period", v.ID)
	}
	t.rows[v.ID] = *v
	return nil
}

func (r periods) FindByID(_ context.Context, id int64) (core.FinancialPeriod, error) {
	v, ok := r.st.periods.rows[id]
	if !ok {
		return core.FinancialPeriod{}, notFound("financial period", id)
	}
	return v, nil
}

func (r periods) List(_ context.Context, q core.PageQuery) (core.Page[core.FinancialPeriod], error) {
	return page(r.st.periods.all(), q, func(p core.FinancialPeriod, f string) bool {
		return contains(p.Identification, f)
	}), nil
}

func (r periods) FindActive(_ context.Context) (core.FinancialPeriod, error) {
	var (
		active core.FinancialPeriod
		found  bool
	)
	for _, p := range r.st.periods.all() {
		if p.Closed {
			continue
		}
		if !found || !p.Start.Before(active.Start.Time) {
			active, found = p, true
		}
	}
	if !found {
		return core.FinancialPeriod{}, notFound("financial period", "active")
	}
	return active, nil
}

func (r periods) FindByIdentification(_ context.Context, identification string) (core.FinancialPeriod, error) {
	for _, p := range r.st.periods.all() {
		if p.Identification == identification {
			return p, nil
		}
	}
	return core.FinancialPeriod{}, notFound("financial period", identification)
}

type outbox struct {
	st  *state
	now func() time.Time
}

func (r outbox) Append(_ context.Context, e *core.OutboxEvent) error {
	e.ID = r.st.outbox.next()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	r.st.outbox.rows[e.ID] = *e
	return nil
}

func (r outbox) Pending(_ context.Context, limit, maxAttempts int) ([]core.OutboxEvent, error) {
	var out []core.OutboxEvent
	for _, e := range r.st.outbox.all() {
		if e.PublishedAt != nil || e.Attempts >= maxAttempts {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r outbox) MarkPublished(_ context.Context, id int64, at time.Time) error {
	e, ok := r.st.outbox.rows[id]
	if !ok {
		return notFound("outbox event", id)
	}
	e.PublishedAt = &at
	r.st.outbox.rows[id] = e
	return nil
}

func (r outbox) MarkFailed(_ context.Context, id int64, reason string) error {
	e, ok := r.st.outbox.rows[id]
	if !ok {
		return notFound("outbox event", id)
	}
	e.Attempts++
	e.LastError = reason
	r.st.outbox.rows[id] = e
	return nil
}

func (r outbox) DeletePublishedBefore(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, e := range r.st.outbox.rows {
		if e.PublishedAt != nil && e.PublishedAt.Before(before) {
			delete(r.st.outbox.rows, id)
			n++
		}
	}
	return n, nil
}
