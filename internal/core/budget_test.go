package core

import (
	"errors"
	"testing"
)

func TestCheckClassBudget(t *testing.T) {
	home := CostCenter{ID: 1, Name: "Home", ExpensesBudget: Cents(100000), ControlExpenses: true}
	rent := MovementClass{ID: 1, Name: "Rent", Type: Expense, CostCenterID: 1, Budget: Cents(60000)}

	if err := CheckClassBudget(home, rent, nil); err != nil {
		t.Fatalf("rent should fit: %v", err)
	}

	food := MovementClass{Name: "Food", Type: Expense, CostCenterID: 1, Budget: Cents(50000)}
	err := CheckClassBudget(home, food, []MovementClass{rent})
	var be *BudgetExceededError
	if !errors.As(err, &be) {
		t.Fatalf("expected BudgetExceededError, got %v", err)
	}
	if be.Available.Cents != 40000 {
		t.Fatalf("expected 400.00 available, got %s", be.Available)
	}

	// updating rent itself must not count its old budget
	rent.Budget = Cents(100000)
	if err := CheckClassBudget(home, rent, []MovementClass{{ID: 1, Type: Expense, CostCenterID: 1, Budget: Cents(60000)}}); err != nil {
		t.Fatalf("self exclusion failed: %v", err)
	}

	// revenue classes are not bounded by the expense ceiling
	salary := MovementClass{Name: "Salary", Type: Revenue, CostCenterID: 1, Budget: Cents(900000)}
	if err := CheckClassBudget(home, salary, []MovementClass{rent}); err != nil {
		t.Fatalf("uncontrolled type should pass: %v", err)
	}

	home.ControlExpenses = false
	if err := CheckClassBudget(home, food, []MovementClass{rent}); err != nil {
		t.Fatalf("uncontrolled cost center should pass: %v", err)
	}
}

func TestAvailableBudgetIgnoresOtherTypes(t *testing.T) {
	cc := CostCenter{ID: 1, RevenuesBudget: Cents(1000)}
	siblings := []MovementClass{
		{ID: 1, Type: Revenue, CostCenterID: 1, Budget: Cents(300)},
		{ID: 2, Type: Expense, CostCenterID: 1, Budget: Cents(700)},
		{ID: 3, Type: Revenue, CostCenterID: 2, Budget: Cents(700)},
	}
	if got := AvailableBudget(cc, Revenue, siblings, 0); got.Cents != 700 {
		t.Fatalf("got %s", got)
	}
}
