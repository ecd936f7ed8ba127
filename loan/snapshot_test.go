package loan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestSnapshot_RoundTrip_PreservesFullState(t *testing.T) {
	// GIVEN: A loan with fees, a misc penalty, and two posted payments
	// WHEN: Snapshotting and restoring
	// THEN: Every due amount, status, and payment record survives

	s := newTestSchedule(t)
	require.NoError(t, s.AttachFeeToUnpaid("fee-1", "processing", usd(10)))
	require.NoError(t, s.ApplyMiscCharge(1, loan.ChargeMiscPenalty, usd(5)))

	_, err := s.ApplyPayment(usd(1065), due(10), loan.PaymentCash)
	require.NoError(t, err)
	_, err = s.ApplyPayment(usd(300), due(11), loan.PaymentTransfer)
	require.NoError(t, err)

	restored, err := loan.RestoreSchedule(s.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, s.LoanID(), restored.LoanID())
	assert.Equal(t, s.Currency(), restored.Currency())
	assert.Equal(t, s.Status(), restored.Status())
	assert.True(t, restored.TotalDueWithFees().Equal(s.TotalDueWithFees()))

	origInsts := s.Installments()
	restInsts := restored.Installments()
	require.Len(t, restInsts, len(origInsts))
	for i := range origInsts {
		assert.Equal(t, origInsts[i].ID(), restInsts[i].ID())
		assert.Equal(t, origInsts[i].Status(), restInsts[i].Status())
		assert.True(t, restInsts[i].TotalDueWithFees().Equal(origInsts[i].TotalDueWithFees()))
		assert.True(t, restInsts[i].PrincipalPaid().Equal(origInsts[i].PrincipalPaid()))
		assert.True(t, restInsts[i].InterestPaid().Equal(origInsts[i].InterestPaid()))
	}

	origPayments := s.Payments()
	restPayments := restored.Payments()
	require.Len(t, restPayments, len(origPayments))
	for i := range origPayments {
		assert.Equal(t, origPayments[i].PaymentID, restPayments[i].PaymentID)
		assert.True(t, restPayments[i].Amount.Equal(origPayments[i].Amount))
		assert.Equal(t, origPayments[i].Type, restPayments[i].Type)
	}
}

func TestSnapshot_RoundTrip_AdjustmentWorksAfterRestore(t *testing.T) {
	// The sealed allocations must survive persistence so the adjustment
	// path can reverse a payment posted before a restart.

	s := newTestSchedule(t)
	_, err := s.ApplyPayment(usd(1080), due(10), loan.PaymentCash)
	require.NoError(t, err)

	restored, err := loan.RestoreSchedule(s.Snapshot())
	require.NoError(t, err)

	reversed, err := restored.AdjustLastPayment()
	require.NoError(t, err)
	assert.True(t, reversed.Amount.Equal(usd(1080)))
	assert.True(t, restored.TotalDueWithFees().Equal(usd(3150)))

	first, err := restored.Installment(1)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusUnpaid, first.Status())
	assert.False(t, first.IsPaymentApplied())
}

func TestSnapshot_RoundTrip_FeeAttachmentOrderPreserved(t *testing.T) {
	s := newTestSchedule(t)
	require.NoError(t, s.AttachFeeToUnpaid("fee-a", "processing", usd(10)))
	require.NoError(t, s.AttachFeeToUnpaid("fee-b", "insurance", usd(10)))

	restored, err := loan.RestoreSchedule(s.Snapshot())
	require.NoError(t, err)

	first, err := restored.Installment(1)
	require.NoError(t, err)
	fees := first.FeeCharges()
	require.Len(t, fees, 2)
	assert.Equal(t, loan.FeeID("fee-a"), fees[0].ID())
	assert.Equal(t, loan.FeeID("fee-b"), fees[1].ID())
}

func TestRestoreSchedule_Empty(t *testing.T) {
	_, err := loan.RestoreSchedule(loan.ScheduleState{LoanID: "loan-1"})
	assert.ErrorIs(t, err, loan.ErrEmptySchedule)
}
