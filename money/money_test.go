package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// ARITHMETIC TESTS
// =============================================================================

func TestMoney_AddSubtract(t *testing.T) {
	a := money.FromFloat(125.50, money.USD)
	b := money.FromFloat(100, money.USD)

	assert.True(t, a.Add(b).Equal(money.FromFloat(225.50, money.USD)))
	assert.True(t, a.Subtract(b).Equal(money.FromFloat(25.50, money.USD)))
}

func TestMoney_SubtractBelowZero(t *testing.T) {
	// Subtract does not clamp; callers own the invariant.
	a := money.FromFloat(10, money.USD)
	b := money.FromFloat(25, money.USD)

	diff := a.Subtract(b)
	assert.True(t, diff.IsNegative())
	assert.True(t, diff.Equal(money.FromFloat(-15, money.USD)))
}

func TestMoney_MinMax(t *testing.T) {
	small := money.FromFloat(3, money.EUR)
	big := money.FromFloat(7, money.EUR)

	assert.True(t, small.Min(big).Equal(small))
	assert.True(t, small.Max(big).Equal(big))
	assert.True(t, small.Min(small).Equal(small))
}

// =============================================================================
// EQUALITY - By value, not scale
// =============================================================================

func TestMoney_ValueEquality_ScaleInsensitive(t *testing.T) {
	// GIVEN: 2.50 and 2.5 in the same currency
	// THEN: They are equal - comparison is by value, not representation

	a, err := money.FromString("2.50", money.USD)
	require.NoError(t, err)
	b, err := money.FromString("2.5", money.USD)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Compare(b))
}

func TestMoney_Predicates(t *testing.T) {
	zero := money.Zero(money.KES)
	positive := money.FromFloat(1, money.KES)

	assert.True(t, zero.IsZero())
	assert.False(t, zero.IsGreaterThanZero())
	assert.True(t, positive.IsNonZero())
	assert.True(t, positive.IsGreaterThanZero())
	assert.True(t, positive.Neg().IsNegative())
}

// =============================================================================
// CURRENCY SAFETY
// =============================================================================

func TestMoney_CurrencyMismatch_Panics(t *testing.T) {
	// Mixing currencies is a wiring bug, not user input - it must panic.
	usd := money.FromFloat(10, money.USD)
	eur := money.FromFloat(10, money.EUR)

	assert.Panics(t, func() { usd.Add(eur) })
	assert.Panics(t, func() { usd.Subtract(eur) })
	assert.Panics(t, func() { usd.Equal(eur) })
	assert.Panics(t, func() { usd.Min(eur) })
}

// =============================================================================
// PARSING
// =============================================================================

func TestMoney_FromString_Invalid(t *testing.T) {
	_, err := money.FromString("not-a-number", money.USD)
	assert.Error(t, err)
}

func TestMoney_String(t *testing.T) {
	m := money.FromFloat(12.5, money.INR)
	assert.Equal(t, "12.5 INR", m.String())
}
