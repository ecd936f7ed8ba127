/*
fee.go - Per-fee ledger entry attached to an installment

PURPOSE:
  One FeeCharge tracks a single scheduled fee or penalty charge on one
  installment: amount due vs. amount paid. The installment's waterfall pays
  fee charges in attachment order; waivers and removals forgive the
  outstanding due.

INVARIANT:
  Paid <= Scheduled at all times. payFee never applies more than is due.

REMOVAL SEMANTICS:
  An unpaid fee is deleted outright and its scheduled amount returned as a
  credit. A partially paid fee cannot be deleted: its scheduled amount is
  frozen at the paid amount (the remainder is forgiven) and the entry
  survives for audit. The freeze is permanent - the entry cannot be removed
  later. Preserved from the legacy system pending product-owner review.

SEE ALSO:
  - installment.go: Owns the ordered fee collection
*/
package loan

import "github.com/warp/loan-engine/money"

// =============================================================================
// FEE CHARGE
// =============================================================================

type FeeCharge struct {
	id        FeeID
	name      string
	scheduled money.Money
	paid      money.Money
}

// NewFeeCharge creates a fee charge with nothing paid. The fee definition
// (id, name, amount) comes from the external fee catalog.
func NewFeeCharge(id FeeID, name string, scheduled money.Money) *FeeCharge {
	return &FeeCharge{
		id:        id,
		name:      name,
		scheduled: scheduled,
		paid:      money.Zero(scheduled.Currency),
	}
}

func (f *FeeCharge) ID() FeeID               { return f.id }
func (f *FeeCharge) Name() string            { return f.name }
func (f *FeeCharge) Scheduled() money.Money  { return f.scheduled }
func (f *FeeCharge) Paid() money.Money       { return f.paid }

// Due returns the outstanding amount on this charge.
func (f *FeeCharge) Due() money.Money {
	return f.scheduled.Subtract(f.paid)
}

// =============================================================================
// MUTATIONS - Driven by the owning installment
// =============================================================================

// payFee applies as much of amount as this charge's due permits, records
// the applied portion into the allocation, and returns the unapplied
// remainder.
func (f *FeeCharge) payFee(amount money.Money, alloc *PaymentAllocation) money.Money {
	payable := amount.Min(f.Due())
	f.paid = f.paid.Add(payable)
	alloc.allocateForFee(f.id, payable)
	return amount.Subtract(payable)
}

// waiveCharges forgives the outstanding due by shrinking the scheduled
// amount down to what was already paid. Returns the amount forgiven.
// No cash moves.
func (f *FeeCharge) waiveCharges() money.Money {
	waived := f.Due()
	f.scheduled = f.paid
	return waived
}

// makeRepaymentEntries records an early-repayment settlement on this charge.
// Principal-only repayments leave fees untouched.
func (f *FeeCharge) makeRepaymentEntries(mode RepaymentMode) {
	switch mode {
	case RepayAll, RepayFeesAndPenalties:
		f.paid = f.scheduled
	case RepayPrincipalOnly:
		// fees untouched
	}
}

// reverse decrements the paid accumulator by a previously allocated amount.
func (f *FeeCharge) reverse(amount money.Money) {
	f.paid = f.paid.Subtract(amount)
}

// freeze shrinks the scheduled amount to the paid amount and returns the
// forgiven remainder. Used by fee removal when a partial payment exists.
func (f *FeeCharge) freeze() money.Money {
	forgiven := f.Due()
	f.scheduled = f.paid
	return forgiven
}
