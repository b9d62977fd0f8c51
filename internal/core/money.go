// Package core provides the budget domain model: money, cost centers,
// movement classes, movements, fixed movements, wallets and the error taxonomy.
//
// This file contains the fixed-point money type and the functions for parsing
// monetary amounts from strings.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is an exact amount with two fraction digits, stored in cents.
type Money struct {
	Cents int64
}

// Zero is the zero amount.
var Zero = Money{}

// Cents builds a Money from a cent count.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseMoney parses a signed decimal amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Extra
// fraction digits are rounded half-up (away from zero for negatives).
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("-0,5")   -> -50
//	ParseMoney("12.345") -> 1235
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	for i, r := range s {
		if (r == '-' || r == '+') && i == 0 {
			continue
		}
		if r != '.' && !unicode.IsDigit(r) {
			return Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return Zero, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

const maxCents = (1<<63 - 1) / 100

// ParseDecimalToCents converts a strictly positive decimal string to cents.
//
// It accepts both dot and comma separators and rounds half-up on the third
// fraction digit. Signs, zero and malformed values return ErrInvalidAmount.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	m, err := ParseMoney(s)
	if err != nil {
		return 0, err
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two fraction digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.Cents < o.Cents:
		return -1
	case m.Cents > o.Cents:
		return 1
	default:
		return 0
	}
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }
func (m Money) IsPositive() bool { return m.Cents > 0 }

// Sum adds all amounts.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Percentage returns part/whole*100, rounded half-up to two fraction digits
// and truncated to an integer. A zero whole yields 0.
func Percentage(part, whole Money) int {
	if whole.IsZero() {
		return 0
	}
	p := part.Decimal().Mul(hundred).DivRound(whole.Decimal(), 2)
	return int(p.IntPart())
}
