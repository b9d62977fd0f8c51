package core

// ValidateApportionments checks that every apportionment targets a class of
// its own cost center and that the apportioned cents add up exactly to value.
func ValidateApportionments(value Money, apportionments []Apportionment) error {
	if len(apportionments) == 0 {
		return newValidation(MissingApportionments, "at least one apportionment is required")
	}
	for _, a := range apportionments {
		if a.ClassCostCenterID != a.CostCenterID {
			return newValidation(InvalidClassForCostCenter, "")
		}
	}
	var total Money
	for _, a := range apportionments {
		total = total.Add(a.Value)
	}
	if total.Cmp(value) != 0 {
		return &ValidationError{Kind: ApportionmentMismatch, Expected: value, Actual: total}
	}
	return nil
}

// CopyApportionments returns detached copies suitable for a new owner.
func CopyApportionments(src []Apportionment) []Apportionment {
	out := make([]Apportionment, 0, len(src))
	for _, a := range src {
		out = append(out, a.Copy())
	}
	return out
}
