package core

import (
	"strings"
	"time"
)

const (
	Revenue ClassType = "IN"
	Expense ClassType = "OUT"
)

const (
	StateOpen       MovementState = "OPEN"
	StatePaid       MovementState = "PAID"
	StateCanceled   MovementState = "CANCELED"
	StateCalculated MovementState = "CALCULATED"
)

const (
	KindMovement    MovementKind = "MOVEMENT"
	KindCardInvoice MovementKind = "CARD_INVOICE"
)

const (
	FixedActive    FixedMovementStatus = "ACTIVE"
	FixedFinalized FixedMovementStatus = "FINALIZED"
)

const (
	InCash     PaymentMethod = "IN_CASH"
	DebitCard  PaymentMethod = "DEBIT_CARD"
	CreditCard PaymentMethod = "CREDIT_CARD"
)

const (
	CardCredit CardType = "CREDIT"
	CardDebit  CardType = "DEBIT"
)

const (
	BalancePayment    BalanceType = "PAYMENT"
	BalanceRevenue    BalanceType = "REVENUE"
	BalanceReturn     BalanceType = "BALANCE_RETURN"
	BalanceAdjustment BalanceType = "ADJUSTMENT"
)

type (
	ClassType           string
	MovementState       string
	MovementKind        string
	FixedMovementStatus string
	PaymentMethod       string
	CardType            string
	BalanceType         string

	Date struct {
		time.Time
	}

	// CostCenter is a budget-owning tree node grouping movement classes.
	CostCenter struct {
		ID              int64
		Name            string
		Description     string
		ParentID        *int64
		RevenuesBudget  Money
		ExpensesBudget  Money
		ControlRevenues bool
		ControlExpenses bool
		Blocked         bool
	}

	// MovementClass is a budget line of one type within a cost center.
	MovementClass struct {
		ID           int64
		Name         string
		Type         ClassType
		CostCenterID int64
		Budget       Money
		Blocked      bool

		// TotalMovements is derived from paid apportionments, never persisted.
		TotalMovements Money
	}

	Apportionment struct {
		ID              int64
		MovementID      *int64
		FixedMovementID *int64
		CostCenterID    int64
		MovementClassID int64
		Value           Money

		// Denormalized from the movement class so validation needs no lookups.
		ClassType         ClassType
		ClassCostCenterID int64
	}

	Movement struct {
		ID              int64
		Code            string
		Description     string
		Value           Money
		DueDate         Date
		State           MovementState
		Kind            MovementKind
		PeriodID        int64
		PaymentID       *int64
		Payment         *Payment
		CardInvoiceID   *int64
		CardInvoicePaid bool
		CreatedAt       time.Time

		Apportionments []Apportionment
		// DeletedApportionments holds persisted apportionments the caller removed.
		DeletedApportionments []Apportionment
	}

	// FixedMovement is a recurring movement template.
	FixedMovement struct {
		ID             int64
		Identification string
		Description    string
		Value          Money
		Quotes         *int
		Undetermined   bool
		AutoLaunch     bool
		StartDate      Date
		Status         FixedMovementStatus
		Apportionments []Apportionment

		// AlreadyLaunched is derived against the active period for listings.
		AlreadyLaunched bool
	}

	// Launch realizes one fixed movement occurrence in one period.
	Launch struct {
		ID              int64
		Code            string
		FixedMovementID int64
		PeriodID        int64
		MovementID      int64
		Quote           *int
		CreatedAt       time.Time
	}

	Payment struct {
		ID       int64
		Method   PaymentMethod
		WalletID *int64
		CardID   *int64
		PaidOn   Date

		// Resolved relations.
		Wallet *Wallet
		Card   *Card
	}

	Card struct {
		ID            int64
		Name          string
		Type          CardType
		WalletID      *int64
		InvoiceDueDay int

		Wallet *Wallet
	}

	CardInvoice struct {
		ID         int64
		CardID     int64
		PeriodID   int64
		MovementID *int64
	}

	Wallet struct {
		ID      int64
		Name    string
		Balance Money
		Version int64
	}

	// WalletBalance is one immutable ledger row of a wallet.
	WalletBalance struct {
		ID              int64
		WalletID        int64
		OldBalance      Money
		NewBalance      Money
		MovementedValue Money
		Type            BalanceType
		MovementCode    string
		CreatedAt       time.Time
	}

	FinancialPeriod struct {
		ID             int64
		Identification string
		Start          Date
		End            Date
		Closed         bool
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO yyyy-mm-dd date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (t ClassType) Valid() bool { return t == Revenue || t == Expense }

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s MovementState) CanTransitionTo(next MovementState) bool {
	switch s {
	case StateOpen:
		return next == StatePaid || next == StateCanceled
	case StatePaid:
		return next == StateCalculated
	default:
		return false
	}
}

// Budget returns the ceiling for the given class type.
func (c CostCenter) Budget(t ClassType) Money {
	if t == Revenue {
		return c.RevenuesBudget
	}
	return c.ExpensesBudget
}

// ControlsBudget reports whether class budgets of type t are bounded by the cost center.
func (c CostCenter) ControlsBudget(t ClassType) bool {
	if t == Revenue {
		return c.ControlRevenues
	}
	return c.ControlExpenses
}

func (c MovementClass) IsOverBudget() bool {
	return c.TotalMovements.Cmp(c.Budget) >= 0
}

// CompletionPercentage is the consumed share of the budget, capped at 100.
func (c MovementClass) CompletionPercentage() int {
	if c.IsOverBudget() {
		return 100
	}
	p := Percentage(c.TotalMovements, c.Budget)
	if p > 100 {
		return 100
	}
	return p
}

// NewApportionment binds value to a (cost center, class) pair.
func NewApportionment(cc CostCenter, class MovementClass, value Money) (Apportionment, error) {
	if class.CostCenterID != cc.ID {
		return Apportionment{}, newValidation(InvalidClassForCostCenter, class.Name)
	}
	return Apportionment{
		CostCenterID:      cc.ID,
		MovementClassID:   class.ID,
		Value:             value,
		ClassType:         class.Type,
		ClassCostCenterID: class.CostCenterID,
	}, nil
}

// Copy returns an unpersisted copy detached from any owner.
func (a Apportionment) Copy() Apportionment {
	a.ID = 0
	a.MovementID = nil
	a.FixedMovementID = nil
	return a
}

func (a Apportionment) IsForRevenues() bool { return a.ClassType == Revenue }
func (a Apportionment) IsForExpenses() bool { return a.ClassType == Expense }

func (m *Movement) HasDueDate() bool { return !m.DueDate.IsZero() }

// IsExpense reports whether the movement takes money out; a movement is an
// expense unless its apportionments are all revenue classes.
func (m *Movement) IsExpense() bool {
	if len(m.Apportionments) == 0 {
		return true
	}
	for _, a := range m.Apportionments {
		if a.IsForExpenses() {
			return true
		}
	}
	return false
}

func (m *Movement) IsRevenue() bool { return !m.IsExpense() }

// IsCardInvoicePaid reports whether the movement belongs to a paid card invoice.
func (m *Movement) IsCardInvoicePaid() bool {
	return m.CardInvoiceID != nil && m.CardInvoicePaid
}

// RemoveApportionment drops the i-th apportionment, remembering it for
// deletion when it was already persisted.
func (m *Movement) RemoveApportionment(i int) {
	if i < 0 || i >= len(m.Apportionments) {
		return
	}
	a := m.Apportionments[i]
	if a.ID != 0 {
		m.DeletedApportionments = append(m.DeletedApportionments, a)
	}
	m.Apportionments = append(m.Apportionments[:i:i], m.Apportionments[i+1:]...)
}

// TotalQuotes returns the quote count of a finite template, 0 when undetermined.
func (f *FixedMovement) TotalQuotes() int {
	if f.Undetermined || f.Quotes == nil {
		return 0
	}
	return *f.Quotes
}

func (f *FixedMovement) IsLastQuote(quote int) bool {
	return !f.Undetermined && f.Quotes != nil && quote == *f.Quotes
}

// Validate checks that the payment method and its instrument agree.
func (p *Payment) Validate() error {
	switch p.Method {
	case InCash:
		if p.Wallet == nil {
			return newValidation(InvalidPayment, "cash payment requires a wallet")
		}
	case DebitCard:
		if p.Card == nil || p.Card.Type != CardDebit {
			return newValidation(InvalidPayment, "debit payment requires a debit card")
		}
		if p.Card.Wallet == nil {
			return newValidation(InvalidPayment, "debit card has no wallet")
		}
	case CreditCard:
		if p.Card == nil || p.Card.Type != CardCredit {
			return newValidation(InvalidPayment, "credit payment requires a credit card")
		}
	default:
		return newValidation(InvalidPayment, "unknown payment method "+string(p.Method))
	}
	return nil
}

// ResolveWallet returns the wallet the payment moves money through, or nil
// for credit card payments.
func (p *Payment) ResolveWallet() *Wallet {
	switch p.Method {
	case InCash:
		return p.Wallet
	case DebitCard:
		if p.Card != nil {
			return p.Card.Wallet
		}
	}
	return nil
}

// CreditCardInvoiceDueDate is the card's invoice due day in the month the
// period ends, clamped to the month length.
func (p *Payment) CreditCardInvoiceDueDate(period FinancialPeriod) Date {
	end := period.End
	day := 1
	if p.Card != nil && p.Card.InvoiceDueDay > 0 {
		day = p.Card.InvoiceDueDay
	}
	last := time.Date(end.Year(), end.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return NewDate(end.Year(), int(end.Month()), day)
}

func (p FinancialPeriod) IsClosed() bool { return p.Closed }

func (p FinancialPeriod) Contains(d Date) bool {
	return !d.Before(p.Start.Time) && !d.After(p.End.Time)
}

// MonthPeriod returns the open calendar-month period containing t.
func MonthPeriod(t time.Time) FinancialPeriod {
	start := NewDate(t.Year(), int(t.Month()), 1)
	end := Date{Time: start.AddDate(0, 1, -1)}
	return FinancialPeriod{
		Identification: start.Format("01/2006"),
		Start:          start,
		End:            end,
	}
}
