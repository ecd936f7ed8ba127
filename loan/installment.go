/*
installment.go - One due date's obligation and the payment waterfall

PURPOSE:
  The Installment is the core entity of the engine: the scheduled
  principal, interest, extra interest, misc fee, and misc penalty for one
  due date, their paid counterparts, and the ordered set of attached fee
  charges. It owns the waterfall payment algorithm, the due/overdue
  computations, waiver logic, early-repayment settlement, and fee
  attach/remove.

THE WATERFALL (PayComponents):
  A payment is allocated in fixed priority order, each step consuming as
  much of the running balance as that component's outstanding due permits,
  never more:

    1. Misc penalty
    2. Penalty (non-misc remainder)
    3. Misc fee
    4. Each attached fee charge, in attachment order
    5. Interest, then extra interest
    6. Principal

  Penalties and fees are collected before interest and principal: fee
  revenue is protected ahead of principal recovery. This ordering is fixed
  business policy.

INVARIANTS:
  - paid <= scheduled for every component; the waterfall only ever
    subtracts what is already known to be due, so it cannot fail mid-way
  - Status is PAID iff the total due including fees is exactly zero
  - Due accessors are pure functions over live accumulators, never cached

SEE ALSO:
  - allocation.go: The breakdown each PayComponents call produces
  - schedule.go: Feeds payments through installments oldest-due-first
*/
package loan

import (
	"fmt"
	"time"

	"github.com/warp/loan-engine/money"
)

// =============================================================================
// INSTALLMENT
// =============================================================================

type Installment struct {
	id       InstallmentID
	dueDate  time.Time
	currency money.Currency

	principal     money.Money
	interest      money.Money
	extraInterest money.Money
	penalty       money.Money
	miscFee       money.Money
	miscPenalty   money.Money

	principalPaid     money.Money
	interestPaid      money.Money
	extraInterestPaid money.Money
	penaltyPaid       money.Money
	miscFeePaid       money.Money
	miscPenaltyPaid   money.Money

	// Attachment order is significant: it is the waterfall tie-break
	// order among fees.
	fees []*FeeCharge

	status      PaymentStatus
	paymentDate *time.Time

	latest *PaymentAllocation
}

// NewInstallment creates an unpaid installment from an amortization tuple.
// All other accumulators start at zero in the principal's currency.
func NewInstallment(id InstallmentID, dueDate time.Time, principal, interest money.Money) *Installment {
	if principal.Currency != interest.Currency {
		panic(fmt.Sprintf("loan: installment currency mismatch: %s vs %s",
			principal.Currency, interest.Currency))
	}
	zero := money.Zero(principal.Currency)
	return &Installment{
		id:                id,
		dueDate:           dueDate,
		currency:          principal.Currency,
		principal:         principal,
		interest:          interest,
		extraInterest:     zero,
		penalty:           zero,
		miscFee:           zero,
		miscPenalty:       zero,
		principalPaid:     zero,
		interestPaid:      zero,
		extraInterestPaid: zero,
		penaltyPaid:       zero,
		miscFeePaid:       zero,
		miscPenaltyPaid:   zero,
		status:            StatusUnpaid,
	}
}

// SetExtraInterest sets the scheduled extra interest. Always a concrete
// Money; there is no nil/unset state.
func (in *Installment) SetExtraInterest(amount money.Money) {
	in.extraInterest = in.zero().Add(amount) // currency check via Add
}

func (in *Installment) zero() money.Money { return money.Zero(in.currency) }

// =============================================================================
// BASIC ACCESSORS
// =============================================================================

func (in *Installment) ID() InstallmentID         { return in.id }
func (in *Installment) DueDate() time.Time        { return in.dueDate }
func (in *Installment) Currency() money.Currency  { return in.currency }
func (in *Installment) Status() PaymentStatus     { return in.status }

func (in *Installment) Principal() money.Money     { return in.principal }
func (in *Installment) Interest() money.Money      { return in.interest }
func (in *Installment) ExtraInterest() money.Money { return in.extraInterest }
func (in *Installment) MiscFee() money.Money       { return in.miscFee }
func (in *Installment) MiscPenalty() money.Money   { return in.miscPenalty }

func (in *Installment) PrincipalPaid() money.Money     { return in.principalPaid }
func (in *Installment) InterestPaid() money.Money      { return in.interestPaid }
func (in *Installment) ExtraInterestPaid() money.Money { return in.extraInterestPaid }
func (in *Installment) PenaltyPaid() money.Money       { return in.penaltyPaid }
func (in *Installment) MiscFeePaid() money.Money       { return in.miscFeePaid }
func (in *Installment) MiscPenaltyPaid() money.Money   { return in.miscPenaltyPaid }

// PaymentDate returns when the installment was last stamped paid, or nil.
func (in *Installment) PaymentDate() *time.Time {
	if in.paymentDate == nil {
		return nil
	}
	d := *in.paymentDate
	return &d
}

// LatestAllocation returns the breakdown of the most recent PayComponents
// call on this installment, or nil if none.
func (in *Installment) LatestAllocation() *PaymentAllocation { return in.latest }

// =============================================================================
// DUE ACCESSORS - Pure, recomputed from live accumulators
// =============================================================================

func (in *Installment) PrincipalDue() money.Money {
	return in.principal.Subtract(in.principalPaid)
}

func (in *Installment) InterestDue() money.Money {
	return in.interest.Subtract(in.interestPaid)
}

func (in *Installment) ExtraInterestDue() money.Money {
	return in.extraInterest.Subtract(in.extraInterestPaid)
}

// EffectiveInterestDue is base plus extra interest outstanding.
func (in *Installment) EffectiveInterestDue() money.Money {
	return in.InterestDue().Add(in.ExtraInterestDue())
}

func (in *Installment) EffectiveInterestPaid() money.Money {
	return in.interestPaid.Add(in.extraInterestPaid)
}

func (in *Installment) MiscFeeDue() money.Money {
	return in.miscFee.Subtract(in.miscFeePaid)
}

func (in *Installment) MiscPenaltyDue() money.Money {
	return in.miscPenalty.Subtract(in.miscPenaltyPaid)
}

// PenaltyDue spans both penalty buckets.
func (in *Installment) PenaltyDue() money.Money {
	return in.penalty.Add(in.miscPenalty).Subtract(in.penaltyPaid.Add(in.miscPenaltyPaid))
}

// TotalFeeDue sums the outstanding due across attached fee charges.
func (in *Installment) TotalFeeDue() money.Money {
	total := in.zero()
	for _, f := range in.fees {
		total = total.Add(f.Due())
	}
	return total
}

// TotalFeesDueWithMiscFee includes the misc-fee bucket.
func (in *Installment) TotalFeesDueWithMiscFee() money.Money {
	return in.MiscFeeDue().Add(in.TotalFeeDue())
}

// TotalFeesPaid sums payments across attached fee charges.
func (in *Installment) TotalFeesPaid() money.Money {
	total := in.zero()
	for _, f := range in.fees {
		total = total.Add(f.Paid())
	}
	return total
}

// TotalDue is everything outstanding except the named fee charges.
func (in *Installment) TotalDue() money.Money {
	return in.PrincipalDue().
		Add(in.EffectiveInterestDue()).
		Add(in.PenaltyDue()).
		Add(in.MiscFeeDue())
}

// TotalDueWithFees is the full outstanding obligation of this installment.
func (in *Installment) TotalDueWithFees() money.Money {
	return in.TotalDue().Add(in.TotalFeeDue())
}

// TotalScheduledWithFees is the original obligation regardless of payments.
func (in *Installment) TotalScheduledWithFees() money.Money {
	total := in.principal.
		Add(in.interest).
		Add(in.extraInterest).
		Add(in.penalty).
		Add(in.miscFee).
		Add(in.miscPenalty)
	for _, f := range in.fees {
		total = total.Add(f.Scheduled())
	}
	return total
}

func (in *Installment) IsPrincipalZero() bool { return in.principal.IsZero() }

// IsPaymentApplied reports whether any cash has touched this installment.
func (in *Installment) IsPaymentApplied() bool {
	return in.principalPaid.IsNonZero() ||
		in.interestPaid.IsNonZero() ||
		in.extraInterestPaid.IsNonZero() ||
		in.penaltyPaid.IsNonZero() ||
		in.miscFeePaid.IsNonZero() ||
		in.miscPenaltyPaid.IsNonZero() ||
		in.TotalFeesPaid().IsNonZero()
}

// OverdueSummary returns the per-component overdue view for dashboards.
func (in *Installment) OverdueSummary() OverdueSummary {
	return OverdueSummary{
		Principal:          in.PrincipalDue(),
		Interest:           in.EffectiveInterestDue(),
		Penalty:            in.PenaltyDue(),
		Fees:               in.TotalFeesDueWithMiscFee(),
		TotalPrincipalPaid: in.principalPaid,
	}
}

// =============================================================================
// FEE MANAGEMENT
// =============================================================================

// AddFeeCharge attaches a fee charge. Attachment order determines the
// waterfall order among fees.
func (in *Installment) AddFeeCharge(fee *FeeCharge) error {
	if fee.Scheduled().Currency != in.currency {
		panic(fmt.Sprintf("loan: fee currency mismatch: %s vs %s",
			fee.Scheduled().Currency, in.currency))
	}
	if in.IsFeeAttached(fee.ID()) {
		return fmt.Errorf("fee %s on installment %d: %w", fee.ID(), in.id, ErrFeeAlreadyAttached)
	}
	in.fees = append(in.fees, fee)
	in.updatePaymentStatus()
	return nil
}

// FeeCharge returns the attached charge for a fee id.
func (in *Installment) FeeCharge(feeID FeeID) (*FeeCharge, error) {
	for _, f := range in.fees {
		if f.ID() == feeID {
			return f, nil
		}
	}
	return nil, fmt.Errorf("fee %s on installment %d: %w", feeID, in.id, ErrFeeNotFound)
}

// FeeCharges returns the attached charges in attachment order.
func (in *Installment) FeeCharges() []*FeeCharge {
	out := make([]*FeeCharge, len(in.fees))
	copy(out, in.fees)
	return out
}

func (in *Installment) IsFeeAttached(feeID FeeID) bool {
	for _, f := range in.fees {
		if f.ID() == feeID {
			return true
		}
	}
	return false
}

// RemoveFee removes or freezes a fee charge and returns the credited or
// forgiven amount. An unpaid charge is deleted outright; a partially paid
// charge is frozen at its paid amount and kept for audit.
func (in *Installment) RemoveFee(feeID FeeID) (money.Money, error) {
	for i, f := range in.fees {
		if f.ID() != feeID {
			continue
		}
		if f.Paid().IsZero() {
			credit := f.Scheduled()
			in.fees = append(in.fees[:i], in.fees[i+1:]...)
			in.updatePaymentStatus()
			return credit, nil
		}
		forgiven := f.freeze()
		in.updatePaymentStatus()
		return forgiven, nil
	}
	return money.Money{}, fmt.Errorf("fee %s on installment %d: %w", feeID, in.id, ErrFeeNotFound)
}

// =============================================================================
// MISC CHARGES
// =============================================================================

// ApplyMiscCharge increases the scheduled misc-fee or misc-penalty bucket.
// Used for post-hoc charges assessed after schedule creation.
func (in *Installment) ApplyMiscCharge(kind MiscChargeKind, amount money.Money) {
	switch kind {
	case ChargeMiscFee:
		in.miscFee = in.miscFee.Add(amount)
	case ChargeMiscPenalty:
		in.miscPenalty = in.miscPenalty.Add(amount)
	default:
		panic(fmt.Sprintf("loan: unknown misc charge kind %q", kind))
	}
	in.updatePaymentStatus()
}

// =============================================================================
// THE WATERFALL
// =============================================================================

func (in *Installment) payMiscPenalty(amount money.Money, alloc *PaymentAllocation) money.Money {
	payable := amount.Min(in.MiscPenaltyDue())
	alloc.allocateForMiscPenalty(payable)
	in.miscPenaltyPaid = in.miscPenaltyPaid.Add(payable)
	return amount.Subtract(payable)
}

func (in *Installment) payPenalty(amount money.Money, alloc *PaymentAllocation) money.Money {
	// Misc penalty is handled in step 1; only the non-misc remainder here.
	payable := amount.Min(in.penalty.Subtract(in.penaltyPaid))
	alloc.allocateForPenalty(payable)
	in.penaltyPaid = in.penaltyPaid.Add(payable)
	return amount.Subtract(payable)
}

func (in *Installment) payMiscFees(amount money.Money, alloc *PaymentAllocation) money.Money {
	payable := amount.Min(in.MiscFeeDue())
	alloc.allocateForMiscFees(payable)
	in.miscFeePaid = in.miscFeePaid.Add(payable)
	return amount.Subtract(payable)
}

func (in *Installment) payFees(amount money.Money, alloc *PaymentAllocation) money.Money {
	balance := amount
	// Snapshot: payFee never mutates the collection, but the iteration
	// order must be the attachment order even if a callback reenters.
	for _, fee := range in.FeeCharges() {
		balance = fee.payFee(balance, alloc)
	}
	return balance
}

func (in *Installment) payInterest(amount money.Money, alloc *PaymentAllocation) money.Money {
	payable := amount.Min(in.InterestDue())
	alloc.allocateForInterest(payable)
	in.interestPaid = in.interestPaid.Add(payable)
	remaining := amount.Subtract(payable)

	extraPayable := remaining.Min(in.ExtraInterestDue())
	alloc.allocateForExtraInterest(extraPayable)
	in.extraInterestPaid = in.extraInterestPaid.Add(extraPayable)
	return remaining.Subtract(extraPayable)
}

func (in *Installment) payPrincipal(amount money.Money, alloc *PaymentAllocation) money.Money {
	payable := amount.Min(in.PrincipalDue())
	alloc.allocateForPrincipal(payable)
	in.principalPaid = in.principalPaid.Add(payable)
	return amount.Subtract(payable)
}

// PayComponents runs the waterfall: allocates the payment across this
// installment's components in fixed priority order and returns whatever
// balance is left unconsumed, to be applied to the next installment or
// rejected by the caller. A fresh allocation record is built per call and
// retained as LatestAllocation.
func (in *Installment) PayComponents(paymentAmount money.Money) money.Money {
	alloc := newPaymentAllocation(in.currency)
	balance := paymentAmount
	balance = in.payMiscPenalty(balance, alloc)
	balance = in.payPenalty(balance, alloc)
	balance = in.payMiscFees(balance, alloc)
	balance = in.payFees(balance, alloc)
	balance = in.payInterest(balance, alloc)
	balance = in.payPrincipal(balance, alloc)
	in.updatePaymentStatus()
	alloc.seal()
	in.latest = alloc
	return balance
}

func (in *Installment) updatePaymentStatus() {
	if in.TotalDueWithFees().IsGreaterThanZero() {
		in.status = StatusUnpaid
	} else {
		in.status = StatusPaid
	}
}

// setPaymentDate stamps the date of the payment that touched this
// installment. Driven by the schedule facade.
func (in *Installment) setPaymentDate(date time.Time) {
	d := date
	in.paymentDate = &d
}

// =============================================================================
// EARLY REPAYMENT
// =============================================================================

// MakeEarlyRepaymentEntries settles this installment outside the normal
// waterfall. Every mode marks the installment PAID and stamps today as the
// payment date; fee-level recording is delegated to each charge's own
// repayment-mode handler.
func (in *Installment) MakeEarlyRepaymentEntries(mode RepaymentMode, today time.Time) {
	switch mode {
	case RepayAll:
		in.principalPaid = in.principalPaid.Add(in.PrincipalDue())
		in.interestPaid = in.interestPaid.Add(in.InterestDue())
		in.extraInterestPaid = in.extraInterestPaid.Add(in.ExtraInterestDue())
		in.penaltyPaid = in.penaltyPaid.Add(in.penalty.Subtract(in.penaltyPaid))
		in.miscPenaltyPaid = in.miscPenaltyPaid.Add(in.MiscPenaltyDue())
		in.miscFeePaid = in.miscFeePaid.Add(in.MiscFeeDue())
	case RepayFeesAndPenalties:
		// Interest untouched: settling this way waives it.
		in.principalPaid = in.principalPaid.Add(in.PrincipalDue())
		in.penaltyPaid = in.penaltyPaid.Add(in.penalty.Subtract(in.penaltyPaid))
		in.miscPenaltyPaid = in.miscPenaltyPaid.Add(in.MiscPenaltyDue())
		in.miscFeePaid = in.miscFeePaid.Add(in.MiscFeeDue())
	case RepayPrincipalOnly:
		in.principalPaid = in.principalPaid.Add(in.PrincipalDue())
	default:
		panic(fmt.Sprintf("loan: unknown repayment mode %q", mode))
	}
	in.makeRepaymentEntries(mode, today)
}

func (in *Installment) makeRepaymentEntries(mode RepaymentMode, today time.Time) {
	in.status = StatusPaid
	in.setPaymentDate(today)
	for _, fee := range in.FeeCharges() {
		fee.makeRepaymentEntries(mode)
	}
}

// =============================================================================
// WAIVERS - Forgive outstanding due; no cash moves
// =============================================================================

// WaiveFeeCharges forgives the misc-fee due and cascades into every
// attached fee charge. Returns the total forgiven for caller-side ledger
// adjustment.
func (in *Installment) WaiveFeeCharges() money.Money {
	waived := in.MiscFeeDue()
	in.miscFee = in.miscFeePaid
	for _, fee := range in.FeeCharges() {
		waived = waived.Add(fee.waiveCharges())
	}
	in.updatePaymentStatus()
	return waived
}

// WaivePenaltyCharges forgives the misc-penalty due.
func (in *Installment) WaivePenaltyCharges() money.Money {
	waived := in.MiscPenaltyDue()
	in.miscPenalty = in.miscPenaltyPaid
	in.updatePaymentStatus()
	return waived
}

// =============================================================================
// REVERSAL
// =============================================================================

// reverse undoes a prior allocation by decrementing exactly the
// accumulators it incremented, then recomputes the payment status. Driven
// by the schedule facade's adjustment path.
func (in *Installment) reverse(alloc *PaymentAllocation) {
	in.miscPenaltyPaid = in.miscPenaltyPaid.Subtract(alloc.MiscPenalty())
	in.penaltyPaid = in.penaltyPaid.Subtract(alloc.Penalty())
	in.miscFeePaid = in.miscFeePaid.Subtract(alloc.MiscFee())
	for _, feeID := range alloc.FeeIDs() {
		amount, _ := alloc.FeeAllocation(feeID)
		if fee, err := in.FeeCharge(feeID); err == nil {
			fee.reverse(amount)
		}
	}
	in.interestPaid = in.interestPaid.Subtract(alloc.Interest())
	in.extraInterestPaid = in.extraInterestPaid.Subtract(alloc.ExtraInterest())
	in.principalPaid = in.principalPaid.Subtract(alloc.Principal())
	in.updatePaymentStatus()
	if in.status == StatusUnpaid {
		in.paymentDate = nil
	}
	in.latest = nil
}
