package http

import (
	"errors"
	"strings"
	"time"

	"webbudget/internal/core"
)

// Amounts travel as decimal strings ("12.34") and dates as yyyy-mm-dd.

type costCenterDTO struct {
	ID              int64  `json:"id,omitempty"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ParentID        *int64 `json:"parent_id,omitempty"`
	RevenuesBudget  string `json:"revenues_budget"`
	ExpensesBudget  string `json:"expenses_budget"`
	ControlRevenues bool   `json:"control_revenues"`
	ControlExpenses bool   `json:"control_expenses"`
	Blocked         bool   `json:"blocked"`
}

func (d costCenterDTO) toCore() (core.CostCenter, error) {
	revenues, err := parseMoney("revenues_budget", d.RevenuesBudget)
	if err != nil {
		return core.CostCenter{}, err
	}
	expenses, err := parseMoney("expenses_budget", d.ExpensesBudget)
	if err != nil {
		return core.CostCenter{}, err
	}
	return core.CostCenter{
		ID:              d.ID,
		Name:            sanitizeInput(d.Name),
		Description:     sanitizeInput(d.Description),
		ParentID:        d.ParentID,
		RevenuesBudget:  revenues,
		ExpensesBudget:  expenses,
		ControlRevenues: d.ControlRevenues,
		ControlExpenses: d.ControlExpenses,
		Blocked:         d.Blocked,
	}, nil
}

func newCostCenterDTO(c core.CostCenter) costCenterDTO {
	return costCenterDTO{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		ParentID:        c.ParentID,
		RevenuesBudget:  c.RevenuesBudget.String(),
		ExpensesBudget:  c.ExpensesBudget.String(),
		ControlRevenues: c.ControlRevenues,
		ControlExpenses: c.ControlExpenses,
		Blocked:         c.Blocked,
	}
}

type movementClassDTO struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	CostCenterID int64  `json:"cost_center_id"`
	Budget       string `json:"budget"`
	Blocked      bool   `json:"blocked"`

	TotalMovements       string `json:"total_movements,omitempty"`
	CompletionPercentage *int   `json:"completion_percentage,omitempty"`
	OverBudget           *bool  `json:"over_budget,omitempty"`
}

func (d movementClassDTO) toCore() (core.MovementClass, error) {
	budget, err := parseMoney("budget", d.Budget)
	if err != nil {
		return core.MovementClass{}, err
	}
	return core.MovementClass{
		ID:           d.ID,
		Name:         sanitizeInput(d.Name),
		Type:         core.ClassType(strings.ToUpper(strings.TrimSpace(d.Type))),
		CostCenterID: d.CostCenterID,
		Budget:       budget,
		Blocked:      d.Blocked,
	}, nil
}

func newMovementClassDTO(c core.MovementClass) movementClassDTO {
	return movementClassDTO{
		ID:           c.ID,
		Name:         c.Name,
		Type:         string(c.Type),
		CostCenterID: c.CostCenterID,
		Budget:       c.Budget.String(),
		Blocked:      c.Blocked,
	}
}

// newClassUsageDTO includes the derived usage fields.
func newClassUsageDTO(c core.MovementClass) movementClassDTO {
	d := newMovementClassDTO(c)
	pct, over := c.CompletionPercentage(), c.IsOverBudget()
	d.TotalMovements = c.TotalMovements.String()
	d.CompletionPercentage = &pct
	d.OverBudget = &over
	return d
}

type apportionmentDTO struct {
	ID              int64  `json:"id,omitempty"`
	CostCenterID    int64  `json:"cost_center_id"`
	MovementClassID int64  `json:"movement_class_id"`
	Value           string `json:"value"`
}

func apportionmentsToCore(list []apportionmentDTO) ([]core.Apportionment, error) {
	out := make([]core.Apportionment, 0, len(list))
	for _, a := range list {
		v, err := parseMoney("apportionment value", a.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, core.Apportionment{
			ID:              a.ID,
			CostCenterID:    a.CostCenterID,
			MovementClassID: a.MovementClassID,
			Value:           v,
		})
	}
	return out, nil
}

func newApportionmentDTOs(list []core.Apportionment) []apportionmentDTO {
	out := make([]apportionmentDTO, 0, len(list))
	for _, a := range list {
		out = append(out, apportionmentDTO{
			ID:              a.ID,
			CostCenterID:    a.CostCenterID,
			MovementClassID: a.MovementClassID,
			Value:           a.Value.String(),
		})
	}
	return out
}

type movementRequest struct {
	Description    string             `json:"description"`
	Value          string             `json:"value"`
	DueDate        string             `json:"due_date,omitempty"`
	PeriodID       int64              `json:"period_id"`
	Apportionments []apportionmentDTO `json:"apportionments"`
}

func (d movementRequest) toCore() (core.Movement, error) {
	value, err := parseMoney("value", d.Value)
	if err != nil {
		return core.Movement{}, err
	}
	due, err := parseDate("due_date", d.DueDate)
	if err != nil {
		return core.Movement{}, err
	}
	list, err := apportionmentsToCore(d.Apportionments)
	if err != nil {
		return core.Movement{}, err
	}
	return core.Movement{
		Description:    sanitizeInput(d.Description),
		Value:          value,
		DueDate:        due,
		PeriodID:       d.PeriodID,
		Apportionments: list,
	}, nil
}

type paymentDTO struct {
	ID       int64  `json:"id,omitempty"`
	Method   string `json:"method"`
	WalletID *int64 `json:"wallet_id,omitempty"`
	CardID   *int64 `json:"card_id,omitempty"`
	PaidOn   string `json:"paid_on,omitempty"`
}

func (d paymentDTO) toCore() (core.Payment, error) {
	paidOn, err := parseDate("paid_on", d.PaidOn)
	if err != nil {
		return core.Payment{}, err
	}
	return core.Payment{
		Method:   core.PaymentMethod(strings.ToUpper(strings.TrimSpace(d.Method))),
		WalletID: d.WalletID,
		CardID:   d.CardID,
		PaidOn:   paidOn,
	}, nil
}

type movementDTO struct {
	ID              int64              `json:"id"`
	Code            string             `json:"code"`
	Description     string             `json:"description"`
	Value           string             `json:"value"`
	DueDate         string             `json:"due_date"`
	State           string             `json:"state"`
	Kind            string             `json:"kind"`
	PeriodID        int64              `json:"period_id"`
	Payment         *paymentDTO        `json:"payment,omitempty"`
	CardInvoiceID   *int64             `json:"card_invoice_id,omitempty"`
	CardInvoicePaid bool               `json:"card_invoice_paid"`
	Apportionments  []apportionmentDTO `json:"apportionments"`
	CreatedAt       time.Time          `json:"created_at"`
}

func newMovementDTO(m core.Movement) movementDTO {
	d := movementDTO{
		ID:              m.ID,
		Code:            m.Code,
		Description:     m.Description,
		Value:           m.Value.String(),
		DueDate:         m.DueDate.String(),
		State:           string(m.State),
		Kind:            string(m.Kind),
		PeriodID:        m.PeriodID,
		CardInvoiceID:   m.CardInvoiceID,
		CardInvoicePaid: m.CardInvoicePaid,
		Apportionments:  newApportionmentDTOs(m.Apportionments),
		CreatedAt:       m.CreatedAt,
	}
	if m.Payment != nil {
		d.Payment = &paymentDTO{
			ID:       m.Payment.ID,
			Method:   string(m.Payment.Method),
			WalletID: m.Payment.WalletID,
			CardID:   m.Payment.CardID,
			PaidOn:   m.Payment.PaidOn.String(),
		}
	}
	return d
}

type fixedMovementDTO struct {
	ID              int64              `json:"id,omitempty"`
	Identification  string             `json:"identification"`
	Description     string             `json:"description"`
	Value           string             `json:"value"`
	Quotes          *int               `json:"quotes,omitempty"`
	Undetermined    bool               `json:"undetermined"`
	AutoLaunch      bool               `json:"auto_launch"`
	StartDate       string             `json:"start_date,omitempty"`
	Status          string             `json:"status,omitempty"`
	Apportionments  []apportionmentDTO `json:"apportionments"`
	AlreadyLaunched bool               `json:"already_launched"`
}

func (d fixedMovementDTO) toCore() (core.FixedMovement, error) {
	value, err := parseMoney("value", d.Value)
	if err != nil {
		return core.FixedMovement{}, err
	}
	start, err := parseDate("start_date", d.StartDate)
	if err != nil {
		return core.FixedMovement{}, err
	}
	list, err := apportionmentsToCore(d.Apportionments)
	if err != nil {
		return core.FixedMovement{}, err
	}
	return core.FixedMovement{
		ID:             d.ID,
		Identification: sanitizeInput(d.Identification),
		Description:    sanitizeInput(d.Description),
		Value:          value,
		Quotes:         d.Quotes,
		Undetermined:   d.Undetermined,
		AutoLaunch:     d.AutoLaunch,
		StartDate:      start,
		Status:         core.FixedMovementStatus(d.Status),
		Apportionments: list,
	}, nil
}

func newFixedMovementDTO(f core.FixedMovement) fixedMovementDTO {
	return fixedMovementDTO{
		ID:              f.ID,
		Identification:  f.Identification,
		Description:     f.Description,
		Value:           f.Value.String(),
		Quotes:          f.Quotes,
		Undetermined:    f.Undetermined,
		AutoLaunch:      f.AutoLaunch,
		StartDate:       f.StartDate.String(),
		Status:          string(f.Status),
		Apportionments:  newApportionmentDTOs(f.Apportionments),
		AlreadyLaunched: f.AlreadyLaunched,
	}
}

type launchDTO struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	FixedMovementID int64     `json:"fixed_movement_id"`
	PeriodID        int64     `json:"period_id"`
	MovementID      int64     `json:"movement_id"`
	Quote           *int      `json:"quote,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newLaunchDTO(l core.Launch) launchDTO {
	return launchDTO{
		ID:              l.ID,
		Code:            l.Code,
		FixedMovementID: l.FixedMovementID,
		PeriodID:        l.PeriodID,
		MovementID:      l.MovementID,
		Quote:           l.Quote,
		CreatedAt:       l.CreatedAt,
	}
}

type walletDTO struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name"`
	Balance string `json:"balance,omitempty"`
}

func newWalletDTO(w core.Wallet) walletDTO {
	return walletDTO{ID: w.ID, Name: w.Name, Balance: w.Balance.String()}
}

type walletBalanceDTO struct {
	ID              int64     `json:"id"`
	WalletID        int64     `json:"wallet_id"`
	OldBalance      string    `json:"old_balance"`
	NewBalance      string    `json:"new_balance"`
	MovementedValue string    `json:"movemented_value"`
	Type            string    `json:"type"`
	MovementCode    string    `json:"movement_code,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newWalletBalanceDTO(b core.WalletBalance) walletBalanceDTO {
	return walletBalanceDTO{
		ID:              b.ID,
		WalletID:        b.WalletID,
		OldBalance:      b.OldBalance.String(),
		NewBalance:      b.NewBalance.String(),
		MovementedValue: b.MovementedValue.String(),
		Type:            string(b.Type),
		MovementCode:    b.MovementCode,
		CreatedAt:       b.CreatedAt,
	}
}

type cardDTO struct {
	ID            int64  `json:"id,omitempty"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	WalletID      *int64 `json:"wallet_id,omitempty"`
	InvoiceDueDay int    `json:"invoice_due_day"`
}

func (d cardDTO) toCore() core.Card {
	return core.Card{
		ID:            d.ID,
		Name:          sanitizeInput(d.Name),
		Type:          core.CardType(strings.ToUpper(strings.TrimSpace(d.Type))),
		WalletID:      d.WalletID,
		InvoiceDueDay: d.InvoiceDueDay,
	}
}

func newCardDTO(c core.Card) cardDTO {
	return cardDTO{ID: c.ID, Name: c.Name, Type: string(c.Type), WalletID: c.WalletID, InvoiceDueDay: c.InvoiceDueDay}
}

type periodDTO struct {
	ID             int64  `json:"id,omitempty"`
	Identification string `json:"identification"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Closed         bool   `json:"closed"`
}

func (d periodDTO) toCore() (core.FinancialPeriod, error) {
	start, err := parseDate("start", d.Start)
	if err != nil {
		return core.FinancialPeriod{}, err
	}
	end, err := parseDate("end", d.End)
	if err != nil {
		return core.FinancialPeriod{}, err
	}
	if start.IsZero() || end.IsZero() {
		return core.FinancialPeriod{}, errors.New("start and end are required")
	}
	ident := sanitizeInput(d.Identification)
	if ident == "" {
		ident = core.MonthPeriod(start.Time).Identification
	}
	return core.FinancialPeriod{
		Identification: ident,
		Start:          start,
		End:            end,
	}, nil
}

func newPeriodDTO(p core.FinancialPeriod) periodDTO {
	return periodDTO{
		ID:             p.ID,
		Identification: p.Identification,
		Start:          p.Start.String(),
		End:            p.End.String(),
		Closed:         p.Closed,
	}
}

type classAmountDTO struct {
	ClassID    int64  `json:"class_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	Budget     string `json:"budget"`
	Percentage int    `json:"percentage"`
}

type overviewDTO struct {
	PeriodID       int64            `json:"period_id"`
	Identification string           `json:"identification"`
	Revenues       string           `json:"revenues"`
	Expenses       string           `json:"expenses"`
	Balance        string           `json:"balance"`
	ByClass        []classAmountDTO `json:"by_class"`
}

func newOverviewDTO(o core.PeriodOverview) overviewDTO {
	d := overviewDTO{
		PeriodID:       o.PeriodID,
		Identification: o.Identification,
		Revenues:       o.Revenues.String(),
		Expenses:       o.Expenses.String(),
		Balance:        o.Balance.String(),
		ByClass:        make([]classAmountDTO, 0, len(o.ByClass)),
	}
	for _, c := range o.ByClass {
		d.ByClass = append(d.ByClass, classAmountDTO{
			ClassID:    c.ClassID,
			Name:       c.Name,
			Type:       string(c.Type),
			Amount:     c.Amount.String(),
			Budget:     c.Budget.String(),
			Percentage: c.Percentage,
		})
	}
	return d
}

// pageDTO is the JSON envelope of paginated listings.
type pageDTO[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func newPageDTO[S, T any](p core.Page[S], q core.PageQuery, conv func(S) T) pageDTO[T] {
	items := make([]T, 0, len(p.Items))
	for _, v := range p.Items {
		items = append(items, conv(v))
	}
	return pageDTO[T]{Items: items, Total: p.Total, Offset: q.Offset, Limit: q.Limit}
}

func mapSlice[S, T any](list []S, conv func(S) T) []T {
	out := make([]T, 0, len(list))
	for _, v := range list {
		out = append(out, conv(v))
	}
	return out
}

func walletFromBody(id int64, name string, balance core.Money) core.Wallet {
	return core.Wallet{ID: id, Name: sanitizeInput(name), Balance: balance}
}
