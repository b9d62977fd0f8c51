package core

// ClassAmount is the paid amount of one movement class in a period.
type ClassAmount struct {
	ClassID    int64
	Name       string
	Type       ClassType
	Amount     Money
	Budget     Money
	Percentage int
}

// PeriodOverview is a compact summary of a financial period.
type PeriodOverview struct {
	PeriodID       int64
	Identification string
	Revenues       Money
	Expenses       Money
	Balance        Money
	ByClass        []ClassAmount
}

// NewPeriodOverview aggregates classes whose TotalMovements are already
// computed for the period.
func NewPeriodOverview(p FinancialPeriod, classes []MovementClass) PeriodOverview {
	o := PeriodOverview{PeriodID: p.ID, Identification: p.Identification}
	for _, c := range classes {
		if c.Type == Revenue {
			o.Revenues = o.Revenues.Add(c.TotalMovements)
		} else {
			o.Expenses = o.Expenses.Add(c.TotalMovements)
		}
		o.ByClass = append(o.ByClass, ClassAmount{
			ClassID:    c.ID,
			Name:       c.Name,
			Type:       c.Type,
			Amount:     c.TotalMovements,
			Budget:     c.Budget,
			Percentage: c.CompletionPercentage(),
		})
	}
	o.Balance = o.Revenues.Sub(o.Expenses)
	return o
}
