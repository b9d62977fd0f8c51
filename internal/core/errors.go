package core

import (
	"errors"
	"fmt"
)

// Validation kinds.
const (
	ApportionmentMismatch     = "apportionment_mismatch"
	InvalidClassForCostCenter = "invalid_class_for_cost_center"
	MissingApportionments     = "missing_apportionments"
	DuplicateMovementClass    = "duplicate_movement_class"
	DuplicateCostCenter       = "duplicate_cost_center"
	MissingQuotes             = "missing_quotes"
	InvalidPayment            = "invalid_payment"
	InvalidTransition         = "invalid_transition"
)

// State conflict kinds.
const (
	PaidInvoiceLinked = "paid_invoice_linked"
	PeriodClosed      = "period_closed"
	NotFound          = "not_found"
	HasLaunches       = "has_launches"
	StaleBalance      = "stale_balance"
	PeriodAlreadyOpen = "period_already_open"
	InUse             = "in_use"
	QuotesExhausted   = "quotes_exhausted"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")

	ErrValidation     = errors.New("validation failed")
	ErrBudgetExceeded = errors.New("budget exceeded")
	ErrStateConflict  = errors.New("state conflict")
	ErrUnexpected     = errors.New("unexpected failure")

	ErrApportionmentMismatch     = &ValidationError{Kind: ApportionmentMismatch}
	ErrInvalidClassForCostCenter = &ValidationError{Kind: InvalidClassForCostCenter}
	ErrDuplicateMovementClass    = &ValidationError{Kind: DuplicateMovementClass}
	ErrMissingQuotes             = &ValidationError{Kind: MissingQuotes}

	ErrNotFound          = &StateConflictError{Kind: NotFound}
	ErrPeriodClosed      = &StateConflictError{Kind: PeriodClosed}
	ErrPaidInvoiceLinked = &StateConflictError{Kind: PaidInvoiceLinked}
	ErrHasLaunches       = &StateConflictError{Kind: HasLaunches}
	ErrStaleBalance      = &StateConflictError{Kind: StaleBalance}
	ErrQuotesExhausted   = &StateConflictError{Kind: QuotesExhausted}
)

// ValidationError reports input that breaks a domain rule.
type ValidationError struct {
	Kind   string
	Detail string

	// Expected and Actual are set for apportionment mismatches.
	Expected Money
	Actual   Money
}

func (e *ValidationError) Error() string {
	if e.Kind == ApportionmentMismatch {
		return fmt.Sprintf("validation: %s: expected %s, apportioned %s", e.Kind, e.Expected, e.Actual)
	}
	if e.Detail == "" {
		return "validation: " + e.Kind
	}
	return fmt.Sprintf("validation: %s: %s", e.Kind, e.Detail)
}

// Is matches ErrValidation and any ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// BudgetExceededError carries the amount still available in the cost center.
type BudgetExceededError struct {
	Available Money
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: available %s", e.Available)
}

func (e *BudgetExceededError) Is(target error) bool { return target == ErrBudgetExceeded }

// StateConflictError reports an operation the current state does not allow.
type StateConflictError struct {
	Kind string
	Ref  string
}

func (e *StateConflictError) Error() string {
	if e.Ref == "" {
		return "state conflict: " + e.Kind
	}
	return fmt.Sprintf("state conflict: %s: %s", e.Kind, e.Ref)
}

func (e *StateConflictError) Is(target error) bool {
	if target == ErrStateConflict {
		return true
	}
	t, ok := target.(*StateConflictError)
	return ok && t.Kind == e.Kind
}

// UnexpectedError wraps an unclassified failure of an operation.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *UnexpectedError) Unwrap() error { return e.Err }

func (e *UnexpectedError) Is(target error) bool { return target == ErrUnexpected }

func newValidation(kind, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Detail: detail}
}

// NewValidation builds a ValidationError of the given kind.
func NewValidation(kind, detail string) error { return newValidation(kind, detail) }

// NewConflict builds a StateConflictError of the given kind.
func NewConflict(kind, ref string) error { return &StateConflictError{Kind: kind, Ref: ref} }

// IsDomain reports whether err is one of the typed domain errors.
func IsDomain(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrStateConflict) || errors.Is(err, ErrInvalidAmount)
}

// Classify passes domain errors through and wraps anything else as an
// UnexpectedError for op.
func Classify(op string, err error) error {
	if err == nil || IsDomain(err) || errors.Is(err, ErrUnexpected) {
		return err
	}
	return &UnexpectedError{Op: op, Err: err}
}
