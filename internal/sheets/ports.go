package sheets

import (
	"context"

	"webbudget/internal/core"
)

// MovementRow is the flat shape of a paid movement in the export sheet.
type MovementRow struct {
	Code        string
	Period      string
	DueDate     core.Date
	Description string
	Amount      core.Money
	// Direction is IN for revenues and OUT for expenses.
	Direction core.ClassType
	Method    core.PaymentMethod
	Classes   []string
}

// NewMovementRow flattens m. Class names are looked up by ID in names.
func NewMovementRow(m core.Movement, period string, names map[int64]string) MovementRow {
	row := MovementRow{
		Code:        m.Code,
		Period:      period,
		DueDate:     m.DueDate,
		Description: m.Description,
		Amount:      m.Value,
		Direction:   core.Expense,
	}
	if m.IsRevenue() {
		row.Direction = core.Revenue
	}
	if m.Payment != nil {
		row.Method = m.Payment.Method
	}
	for _, a := range m.Apportionments {
		if n, ok := names[a.MovementClassID]; ok {
			row.Classes = append(row.Classes, n)
		}
	}
	return row
}

// Ports for outbound adapters.
type (
	MovementWriter interface {
		Append(ctx context.Context, r MovementRow) (rowRef string, err error)
	}

	// MovementRemover clears the exported row of a deleted movement.
	MovementRemover interface {
		Remove(ctx context.Context, code string) error
	}

	MovementExporter interface {
		MovementWriter
		MovementRemover
	}
)
