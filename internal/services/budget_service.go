package services

import (
	"context"
	"fmt"
	"log/slog"

	"webbudget/internal/core"
	"webbudget/internal/ports"
)

// BudgetService manages cost centers and movement classes and enforces the
// cost center budget ceilings.
type BudgetService struct {
	uow ports.UnitOfWork
}

func NewBudgetService(uow ports.UnitOfWork) *BudgetService {
	return &BudgetService{uow: uow}
}

// SaveCostCenter stores a new cost center; name and parent must be unique.
func (s *BudgetService) SaveCostCenter(ctx context.Context, cc *core.CostCenter) error {
	cc.ID = 0
	return s.UpdateCostCenter(ctx, cc)
}

// UpdateCostCenter stores cc after the duplicate check.
func (s *BudgetService) UpdateCostCenter(ctx context.Context, cc *core.CostCenter) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		if cc.ID != 0 {
			if _, err := r.CostCenters.FindByID(ctx, cc.ID); err != nil {
				return err
			}
		}
		if cc.ParentID != nil {
			if _, err := r.CostCenters.FindByID(ctx, *cc.ParentID); err != nil {
				return err
			}
		}
		found, err := r.CostCenters.FindByNameAndParent(ctx, cc.Name, cc.ParentID)
		switch {
		case err == nil && found.ID != cc.ID:
			return core.NewValidation(core.DuplicateCostCenter, cc.Name)
		case err != nil && !isNotFound(err):
			return fmt.Errorf("find cost center: %w", err)
		}
		if err := r.CostCenters.Save(ctx, cc); err != nil {
			return fmt.Errorf("save cost center: %w", err)
		}
		slog.InfoContext(ctx, "Cost center saved",
			"cost_center_id", cc.ID,
			"name", cc.Name,
			"control_expenses", cc.ControlExpenses,
			"control_revenues", cc.ControlRevenues)
		return nil
	})
	return core.Classify("save cost center", err)
}

// DeleteCostCenter removes a cost center that has no movement classes.
func (s *BudgetService) DeleteCostCenter(ctx context.Context, id int64) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		cc, err := r.CostCenters.FindByID(ctx, id)
		if err != nil {
			return err
		}
		for _, t := range []core.ClassType{core.Expense, core.Revenue} {
			classes, err := r.Classes.FindByCostCenter(ctx, id, t)
			if err != nil {
				return fmt.Errorf("list classes: %w", err)
			}
			if len(classes) > 0 {
				return core.NewConflict(core.InUse, cc.Name)
			}
		}
		return r.CostCenters.Delete(ctx, id)
	})
	return core.Classify("delete cost center", err)
}

func (s *BudgetService) FindCostCenter(ctx context.Context, id int64) (core.CostCenter, error) {
	var cc core.CostCenter
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		cc, err = r.CostCenters.FindByID(ctx, id)
		return err
	})
	return cc, core.Classify("find cost center", err)
}

func (s *BudgetService) ListCostCenters(ctx context.Context, q core.PageQuery) (core.Page[core.CostCenter], error) {
	var p core.Page[core.CostCenter]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		p, err = r.CostCenters.List(ctx, q)
		return err
	})
	return p, core.Classify("list cost centers", err)
}

// SaveMovementClass stores a new class.
func (s *BudgetService) SaveMovementClass(ctx context.Context, c *core.MovementClass) error {
	c.ID = 0
	return s.UpdateMovementClass(ctx, c)
}

// UpdateMovementClass stores c. A class with the same name and type in the
// same cost center is a duplicate; when the cost center controls budgets of
// the class type the sibling budgets plus c's budget must stay within the
// cost center budget.
func (s *BudgetService) UpdateMovementClass(ctx context.Context, c *core.MovementClass) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		if !c.Type.Valid() {
			return core.NewValidation(core.InvalidClassForCostCenter, "unknown class type "+string(c.Type))
		}
		if c.ID != 0 {
			if _, err := r.Classes.FindByID(ctx, c.ID); err != nil {
				return err
			}
		}
		cc, err := r.CostCenters.FindByID(ctx, c.CostCenterID)
		if err != nil {
			return err
		}

		found, err := r.Classes.FindByNameAndType(ctx, c.Name, c.Type, c.CostCenterID)
		switch {
		case err == nil && found.ID != c.ID:
			return core.NewValidation(core.DuplicateMovementClass, c.Name)
		case err != nil && !isNotFound(err):
			return fmt.Errorf("find movement class: %w", err)
		}

		siblings, err := r.Classes.FindByCostCenter(ctx, cc.ID, c.Type)
		if err != nil {
			return fmt.Errorf("list sibling classes: %w", err)
		}
		if err := core.CheckClassBudget(cc, *c, siblings); err != nil {
			return err
		}

		if err := r.Classes.Save(ctx, c); err != nil {
			return fmt.Errorf("save movement class: %w", err)
		}
		slog.InfoContext(ctx, "Movement class saved",
			"class_id", c.ID,
			"name", c.Name,
			"type", c.Type,
			"budget_cents", c.Budget.Cents)
		return nil
	})
	return core.Classify("save movement class", err)
}

// DeleteMovementClass removes a class no apportionment references.
func (s *BudgetService) DeleteMovementClass(ctx context.Context, id int64) error {
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		c, err := r.Classes.FindByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := r.Apportionments.CountByClass(ctx, id)
		if err != nil {
			return fmt.Errorf("count apportionments: %w", err)
		}
		if n > 0 {
			return core.NewConflict(core.InUse, c.Name)
		}
		return r.Classes.Delete(ctx, id)
	})
	return core.Classify("delete movement class", err)
}

func (s *BudgetService) ListMovementClasses(ctx context.Context, q core.PageQuery) (core.Page[core.MovementClass], error) {
	var p core.Page[core.MovementClass]
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) (err error) {
		p, err = r.Classes.List(ctx, q)
		return err
	})
	return p, core.Classify("list movement classes", err)
}

// MovementClassUsage returns the class with TotalMovements computed for the
// period.
func (s *BudgetService) MovementClassUsage(ctx context.Context, classID, periodID int64) (core.MovementClass, error) {
	var c core.MovementClass
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		var err error
		if c, err = r.Classes.FindByID(ctx, classID); err != nil {
			return err
		}
		if _, err := r.Periods.FindByID(ctx, periodID); err != nil {
			return err
		}
		c.TotalMovements, err = r.Apportionments.SumPaidByClass(ctx, classID, periodID)
		return err
	})
	return c, core.Classify("movement class usage", err)
}

// PeriodOverview sums paid apportionments per class of a cost center.
func (s *BudgetService) PeriodOverview(ctx context.Context, costCenterID, periodID int64) (core.PeriodOverview, error) {
	var o core.PeriodOverview
	err := s.uow.Within(ctx, func(ctx context.Context, r ports.Repos) error {
		period, err := r.Periods.FindByID(ctx, periodID)
		if err != nil {
			return err
		}
		if _, err := r.CostCenters.FindByID(ctx, costCenterID); err != nil {
			return err
		}
		var classes []core.MovementClass
		for _, t := range []core.ClassType{core.Revenue, core.Expense} {
			list, err := r.Classes.FindByCostCenter(ctx, costCenterID, t)
			if err != nil {
				return fmt.Errorf("list classes: %w", err)
			}
			classes = append(classes, list...)
		}
		for i := range classes {
			if classes[i].TotalMovements, err = r.Apportionments.SumPaidByClass(ctx, classes[i].ID, periodID); err != nil {
				return fmt.Errorf("sum class %d: %w", classes[i].ID, err)
			}
		}
		o = core.NewPeriodOverview(period, classes)
		return nil
	})
	return o, core.Classify("period overview", err)
}
