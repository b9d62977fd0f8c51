package storage

import (
	"context"
	"fmt"

	"webbudget/internal/core"
)

const costCenterSelect = `SELECT id, name, description, parent_id, revenues_budget_cents, expenses_budget_cents,
	control_revenues, control_expenses, blocked FROM cost_centers`

type costCenterRepo struct{ q queryer }

func scanCostCenter(s scanner) (core.CostCenter, error) {
	var (
		c        core.CostCenter
		parentID nullInt64
	)
	err := s.Scan(&c.ID, &c.Name, &c.Description, &parentID, &c.RevenuesBudget.Cents, &c.ExpensesBudget.Cents,
		&c.ControlRevenues, &c.ControlExpenses, &c.Blocked)
	c.ParentID = idPtr(parentID)
	return c, err
}

func (r costCenterRepo) Save(ctx context.Context, c *core.CostCenter) error {
	if c.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO cost_centers (name, description, parent_id, revenues_budget_cents,
			expenses_budget_cents, control_revenues, control_expenses, blocked) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.Description, nullID(c.ParentID), c.RevenuesBudget.Cents, c.ExpensesBudget.Cents,
			c.ControlRevenues, c.ControlExpenses, c.Blocked)
		if err != nil {
			return fmt.Errorf("insert cost center: %w", err)
		}
		c.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE cost_centers SET name = ?, description = ?, parent_id = ?,
		revenues_budget_cents = ?, expenses_budget_cents = ?, control_revenues = ?, control_expenses = ?, blocked = ?
		WHERE id = ?`,
		c.Name, c.Description, nullID(c.ParentID), c.RevenuesBudget.Cents, c.ExpensesBudget.Cents,
		c.ControlRevenues, c.ControlExpenses, c.Blocked, c.ID)
	if err != nil {
		return fmt.Errorf("update cost center: %w", err)
	}
	return requireRow(res, "cost center", c.ID)
}

func (r costCenterRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM cost_centers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete cost center: %w", err)
	}
	return nil
}

func (r costCenterRepo) FindByID(ctx context.Context, id int64) (core.CostCenter, error) {
	c, err := scanCostCenter(r.q.QueryRowContext(ctx, costCenterSelect+` WHERE id = ?`, id))
	return c, one(err, "cost center", id)
}

func (r costCenterRepo) List(ctx context.Context, q core.PageQuery) (core.Page[core.CostCenter], error) {
	return listPage(ctx, r.q, q, "cost_centers", costCenterSelect, []string{"name", "description"},
		map[string]string{"name": "name"}, scanCostCenter, "")
}

func (r costCenterRepo) FindByNameAndParent(ctx context.Context, name string, parentID *int64) (core.CostCenter, error) {
	c, err := scanCostCenter(r.q.QueryRowContext(ctx,
		costCenterSelect+` WHERE name = ? AND parent_id IS ? LIMIT 1`, name, nullID(parentID)))
	return c, one(err, "cost center", name)
}

const classSelect = `SELECT id, name, type, cost_center_id, budget_cents, blocked FROM movement_classes`

type classRepo struct{ q queryer }

func scanClass(s scanner) (core.MovementClass, error) {
	var c core.MovementClass
	err := s.Scan(&c.ID, &c.Name, &c.Type, &c.CostCenterID, &c.Budget.Cents, &c.Blocked)
	return c, err
}

func (r classRepo) Save(ctx context.Context, c *core.MovementClass) error {
	if c.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO movement_classes (name, type, cost_center_id, budget_cents, blocked)
			VALUES (?, ?, ?, ?, ?)`, c.Name, string(c.Type), c.CostCenterID, c.Budget.Cents, c.Blocked)
		if err != nil {
			return fmt.Errorf("insert movement class: %w", err)
		}
		c.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE movement_classes SET name = ?, type = ?, cost_center_id = ?,
		budget_cents = ?, blocked = ? WHERE id = ?`, c.Name, string(c.Type), c.CostCenterID, c.Budget.Cents, c.Blocked, c.ID)
	if err != nil {
		return fmt.Errorf("update movement class: %w", err)
	}
	return requireRow(res, "movement class", c.ID)
}

func (r classRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM movement_classes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete movement class: %w", err)
	}
	return nil
}

func (r classRepo) FindByID(ctx context.Context, id int64) (core.MovementClass, error) {
	c, err := scanClass(r.q.QueryRowContext(ctx, classSelect+` WHERE id = ?`, id))
	return c, one(err, "movement class", id)
}

func (r classRepo) List(ctx context.Context, q core.PageQuery) (core.Page[core.MovementClass], error) {
	return listPage(ctx, r.q, q, "movement_classes", classSelect, []string{"name"},
		map[string]string{"name": "name", "type": "type"}, scanClass, "")
}

func (r classRepo) FindByCostCenter(ctx context.Context, costCenterID int64, t core.ClassType) ([]core.MovementClass, error) {
	return queryAll(ctx, r.q, scanClass, classSelect+` WHERE cost_center_id = ? AND type = ? ORDER BY id`, costCenterID, string(t))
}

func (r classRepo) FindByNameAndType(ctx context.Context, name string, t core.ClassType, costCenterID int64) (core.MovementClass, error) {
	c, err := scanClass(r.q.QueryRowContext(ctx,
		classSelect+` WHERE name = ? AND type = ? AND cost_center_id = ? LIMIT 1`, name, string(t), costCenterID))
	return c, one(err, "movement class", name)
}
