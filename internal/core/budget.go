package core

// AvailableBudget returns how much of the cost center's budget for t is left
// once the sibling class budgets are consumed. The class with excludeID is
// left out of the sum; zero excludes nothing.
func AvailableBudget(cc CostCenter, t ClassType, siblings []MovementClass, excludeID int64) Money {
	var consumed Money
	for _, c := range siblings {
		if c.Type != t || c.CostCenterID != cc.ID {
			continue
		}
		if excludeID != 0 && c.ID == excludeID {
			continue
		}
		consumed = consumed.Add(c.Budget)
	}
	return cc.Budget(t).Sub(consumed)
}

// CheckClassBudget enforces the cost center ceiling for class. It is a no-op
// when the cost center does not control budgets of the class type.
func CheckClassBudget(cc CostCenter, class MovementClass, siblings []MovementClass) error {
	if !cc.ControlsBudget(class.Type) {
		return nil
	}
	available := AvailableBudget(cc, class.Type, siblings, class.ID)
	if class.Budget.Cmp(available) > 0 {
		return &BudgetExceededError{Available: available}
	}
	return nil
}
