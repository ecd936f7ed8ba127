/*
Package money provides the currency-scoped decimal amount used everywhere
in the loan engine.

PURPOSE:
  Every scheduled amount, paid accumulator, and allocation in the engine is
  a Money: an arbitrary-precision decimal bound to a currency. Arithmetic
  between two Money values of different currencies is a programming error
  and panics - a loan account has exactly one currency, so a mismatch can
  only come from a wiring bug, never from user input.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, never float64
  2. Value equality: 2.50 equals 2.5 (comparison by value, not scale)
  3. Immutability: every operation returns a new Money
  4. Single currency: mixing currencies panics at the call site

USAGE:
  due := money.FromFloat(125.50, money.USD)
  paid := money.FromFloat(100, money.USD)
  remaining := due.Subtract(paid)  // 25.50 USD

SEE ALSO:
  - loan/installment.go: The heaviest consumer of this type
*/
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

// Currency is an ISO 4217 currency code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	INR Currency = "INR"
	KES Currency = "KES"
)

// =============================================================================
// MONEY - Decimal amount bound to a currency
// =============================================================================

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

// New creates a Money from a decimal value.
func New(value decimal.Decimal, currency Currency) Money {
	return Money{Value: value, Currency: currency}
}

// Zero returns the zero amount in the given currency.
func Zero(currency Currency) Money {
	return Money{Value: decimal.Zero, Currency: currency}
}

// FromString parses a decimal string ("125.50") into a Money.
func FromString(s string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{Value: d, Currency: currency}, nil
}

// FromFloat creates a Money from a float. Test and fixture convenience;
// production paths should prefer FromString.
func FromFloat(value float64, currency Currency) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

// assertSameCurrency panics when two operands belong to different currencies.
// A mismatch is a programming error, not a recoverable condition.
func (m Money) assertSameCurrency(o Money) {
	if m.Currency != o.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s vs %s", m.Currency, o.Currency))
	}
}

// =============================================================================
// ARITHMETIC
// =============================================================================

func (m Money) Add(o Money) Money {
	m.assertSameCurrency(o)
	return Money{Value: m.Value.Add(o.Value), Currency: m.Currency}
}

// Subtract may yield a negative amount. Callers needing non-negative
// results must clamp; the installment logic never subtracts more than is due.
func (m Money) Subtract(o Money) Money {
	m.assertSameCurrency(o)
	return Money{Value: m.Value.Sub(o.Value), Currency: m.Currency}
}

func (m Money) Neg() Money {
	return Money{Value: m.Value.Neg(), Currency: m.Currency}
}

func (m Money) Min(o Money) Money {
	m.assertSameCurrency(o)
	if m.Value.LessThan(o.Value) {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	m.assertSameCurrency(o)
	if m.Value.GreaterThan(o.Value) {
		return m
	}
	return o
}

// =============================================================================
// PREDICATES - Value-based, scale-insensitive
// =============================================================================

func (m Money) IsZero() bool              { return m.Value.IsZero() }
func (m Money) IsNonZero() bool           { return !m.Value.IsZero() }
func (m Money) IsGreaterThanZero() bool   { return m.Value.IsPositive() }
func (m Money) IsNegative() bool          { return m.Value.IsNegative() }

func (m Money) Equal(o Money) bool {
	m.assertSameCurrency(o)
	return m.Value.Equal(o.Value)
}

func (m Money) GreaterThan(o Money) bool {
	m.assertSameCurrency(o)
	return m.Value.GreaterThan(o.Value)
}

func (m Money) LessThan(o Money) bool {
	m.assertSameCurrency(o)
	return m.Value.LessThan(o.Value)
}

// Compare returns -1, 0, or 1 comparing by value.
func (m Money) Compare(o Money) int {
	m.assertSameCurrency(o)
	return m.Value.Cmp(o.Value)
}

func (m Money) String() string {
	return m.Value.String() + " " + string(m.Currency)
}
