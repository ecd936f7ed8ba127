package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/money"
	"github.com/warp/loan-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func usd(v float64) money.Money { return money.FromFloat(v, money.USD) }

func due(day int) time.Time {
	return time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
}

func newLoan(t *testing.T, id loan.LoanID) *loan.Schedule {
	entries := []loan.ScheduleEntry{
		{InstallmentID: 1, DueDate: due(10), Principal: usd(1000), Interest: usd(50)},
		{InstallmentID: 2, DueDate: due(17), Principal: usd(1000), Interest: usd(50)},
	}
	s, err := loan.NewSchedule(id, money.USD, entries)
	require.NoError(t, err)
	return s
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestSQLiteStore_SaveAndGet_FullGraph(t *testing.T) {
	// GIVEN: A loan with fees, a misc penalty, and a posted payment
	// WHEN: Saving and loading
	// THEN: Due amounts, fee order, and payment allocations all survive

	store := newTestStore(t)
	ctx := context.Background()

	s := newLoan(t, "loan-1")
	require.NoError(t, s.AttachFeeToUnpaid("fee-a", "processing", usd(10)))
	require.NoError(t, s.AttachFeeToUnpaid("fee-b", "insurance", usd(5)))
	require.NoError(t, s.ApplyMiscCharge(1, loan.ChargeMiscPenalty, usd(7)))
	_, err := s.ApplyPayment(usd(600), due(10), loan.PaymentCheque)
	require.NoError(t, err)

	require.NoError(t, store.SaveLoan(ctx, s))

	got, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)

	assert.Equal(t, s.Status(), got.Status())
	assert.True(t, got.TotalDueWithFees().Equal(s.TotalDueWithFees()))

	first, err := got.Installment(1)
	require.NoError(t, err)
	fees := first.FeeCharges()
	require.Len(t, fees, 2)
	assert.Equal(t, loan.FeeID("fee-a"), fees[0].ID())
	assert.Equal(t, loan.FeeID("fee-b"), fees[1].ID())
	assert.True(t, first.MiscPenaltyPaid().Equal(usd(7)))

	payments := got.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, loan.PaymentCheque, payments[0].Type)
	assert.True(t, payments[0].Amount.Equal(usd(600)))
	require.Len(t, payments[0].Allocations, 1)
	assert.True(t, payments[0].Allocations[0].Allocation.Total().Equal(usd(600)))
}

func TestSQLiteStore_SaveReplacesPriorState(t *testing.T) {
	// SaveLoan is a wholesale replace; stale installments or payments from
	// the previous save must not linger.

	store := newTestStore(t)
	ctx := context.Background()

	s := newLoan(t, "loan-1")
	require.NoError(t, store.SaveLoan(ctx, s))

	_, err := s.ApplyPayment(usd(1050), due(10), loan.PaymentCash)
	require.NoError(t, err)
	require.NoError(t, store.SaveLoan(ctx, s))

	got, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Len(t, got.Payments(), 1)
	assert.Len(t, got.Installments(), 2)
	first, err := got.Installment(1)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusPaid, first.Status())
}

func TestSQLiteStore_GetUnknown(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetLoan(context.Background(), "nope")
	assert.ErrorIs(t, err, loan.ErrLoanNotFound)
}

func TestSQLiteStore_AdjustmentAfterReload(t *testing.T) {
	// The allocation JSON must decode back into sealed allocations the
	// reversal path can replay.

	store := newTestStore(t)
	ctx := context.Background()

	s := newLoan(t, "loan-1")
	_, err := s.ApplyPayment(usd(1080), due(10), loan.PaymentCash)
	require.NoError(t, err)
	require.NoError(t, store.SaveLoan(ctx, s))

	got, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)

	reversed, err := got.AdjustLastPayment()
	require.NoError(t, err)
	assert.True(t, reversed.Amount.Equal(usd(1080)))
	assert.True(t, got.TotalDueWithFees().Equal(usd(2100)))
}

// =============================================================================
// LISTING
// =============================================================================

func TestSQLiteStore_ListLoans_SortedByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveLoan(ctx, newLoan(t, "loan-b")))
	require.NoError(t, store.SaveLoan(ctx, newLoan(t, "loan-a")))

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, loan.LoanID("loan-a"), loans[0].LoanID())
	assert.Equal(t, loan.LoanID("loan-b"), loans[1].LoanID())
}

func TestSQLiteStore_ListActiveLoans_ExcludesClosed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	open := newLoan(t, "loan-open")
	closed := newLoan(t, "loan-closed")
	_, err := closed.MakeEarlyRepayment(loan.RepayAll, due(5))
	require.NoError(t, err)

	require.NoError(t, store.SaveLoan(ctx, open))
	require.NoError(t, store.SaveLoan(ctx, closed))

	active, err := store.ListActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, loan.LoanID("loan-open"), active[0].LoanID())
}

// =============================================================================
// PRECISION
// =============================================================================

func TestSQLiteStore_DecimalPrecisionPreserved(t *testing.T) {
	// Amounts persist as TEXT; a fractional cent must not drift.
	store := newTestStore(t)
	ctx := context.Background()

	principal, err := money.FromString("1000.005", money.USD)
	require.NoError(t, err)
	interest, err := money.FromString("50.125", money.USD)
	require.NoError(t, err)

	s, err := loan.NewSchedule("loan-1", money.USD, []loan.ScheduleEntry{
		{InstallmentID: 1, DueDate: due(10), Principal: principal, Interest: interest},
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveLoan(ctx, s))

	got, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	first, err := got.Installment(1)
	require.NoError(t, err)
	assert.True(t, first.Principal().Equal(principal))
	assert.True(t, first.Interest().Equal(interest))
}
