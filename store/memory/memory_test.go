package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/money"
	"github.com/warp/loan-engine/store/memory"
)

func newLoan(t *testing.T, id loan.LoanID) *loan.Schedule {
	entries := []loan.ScheduleEntry{
		{
			InstallmentID: 1,
			DueDate:       time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
			Principal:     money.FromFloat(1000, money.USD),
			Interest:      money.FromFloat(50, money.USD),
		},
	}
	s, err := loan.NewSchedule(id, money.USD, entries)
	require.NoError(t, err)
	return s
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.SaveLoan(ctx, newLoan(t, "loan-1")))

	got, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, loan.LoanID("loan-1"), got.LoanID())
	assert.True(t, got.TotalDueWithFees().Equal(money.FromFloat(1050, money.USD)))
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := memory.New()
	_, err := store.GetLoan(context.Background(), "nope")
	assert.ErrorIs(t, err, loan.ErrLoanNotFound)
}

func TestMemoryStore_GetReturnsIsolatedCopy(t *testing.T) {
	// Mutating a loaded schedule must not leak into the store until SaveLoan.
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveLoan(ctx, newLoan(t, "loan-1")))

	loaded, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	_, err = loaded.ApplyPayment(money.FromFloat(1050, money.USD), time.Now(), loan.PaymentCash)
	require.NoError(t, err)

	fresh, err := store.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, loan.LoanActive, fresh.Status())
	assert.Empty(t, fresh.Payments())
}

func TestMemoryStore_ListLoans_SortedByID(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveLoan(ctx, newLoan(t, "loan-b")))
	require.NoError(t, store.SaveLoan(ctx, newLoan(t, "loan-a")))

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, loan.LoanID("loan-a"), loans[0].LoanID())
	assert.Equal(t, loan.LoanID("loan-b"), loans[1].LoanID())
}

func TestMemoryStore_ListActiveLoans_ExcludesClosed(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	open := newLoan(t, "loan-open")
	closed := newLoan(t, "loan-closed")
	_, err := closed.MakeEarlyRepayment(loan.RepayAll, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.SaveLoan(ctx, open))
	require.NoError(t, store.SaveLoan(ctx, closed))

	active, err := store.ListActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, loan.LoanID("loan-open"), active[0].LoanID())
}
