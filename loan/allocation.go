/*
allocation.go - Immutable payment allocation breakdown

PURPOSE:
  One PaymentAllocation is produced per installment per payment call. It
  records exactly how the payment waterfall split the cash: misc penalty,
  penalty, misc fee, each named fee, interest, extra interest, principal.
  Receipts and adjustment/reversal consume it; it is never re-derived.

INVARIANTS:
  1. Single currency throughout
  2. Additive while building (a component can be touched more than once
     across multiple installments in a multi-installment payment)
  3. Sealed before leaving the engine - allocating after seal() panics
  4. Fee allocations preserve attachment order

SEE ALSO:
  - installment.go: Fills the allocation during PayComponents
  - schedule.go: Stores sealed allocations on payment records for reversal
*/
package loan

import "github.com/warp/loan-engine/money"

// =============================================================================
// PAYMENT ALLOCATION
// =============================================================================

type PaymentAllocation struct {
	currency money.Currency

	miscPenalty   money.Money
	penalty       money.Money
	miscFee       money.Money
	interest      money.Money
	extraInterest money.Money
	principal     money.Money

	feeOrder []FeeID
	fees     map[FeeID]money.Money

	sealed bool
}

func newPaymentAllocation(currency money.Currency) *PaymentAllocation {
	zero := money.Zero(currency)
	return &PaymentAllocation{
		currency:      currency,
		miscPenalty:   zero,
		penalty:       zero,
		miscFee:       zero,
		interest:      zero,
		extraInterest: zero,
		principal:     zero,
		fees:          make(map[FeeID]money.Money),
	}
}

// =============================================================================
// BUILDERS - Called by the waterfall, additive, panic once sealed
// =============================================================================

func (a *PaymentAllocation) assertMutable() {
	if a.sealed {
		panic("loan: allocation mutated after seal")
	}
}

func (a *PaymentAllocation) allocateForMiscPenalty(amount money.Money) {
	a.assertMutable()
	a.miscPenalty = a.miscPenalty.Add(amount)
}

func (a *PaymentAllocation) allocateForPenalty(amount money.Money) {
	a.assertMutable()
	a.penalty = a.penalty.Add(amount)
}

func (a *PaymentAllocation) allocateForMiscFees(amount money.Money) {
	a.assertMutable()
	a.miscFee = a.miscFee.Add(amount)
}

func (a *PaymentAllocation) allocateForFee(feeID FeeID, amount money.Money) {
	a.assertMutable()
	existing, ok := a.fees[feeID]
	if !ok {
		a.feeOrder = append(a.feeOrder, feeID)
		existing = money.Zero(a.currency)
	}
	a.fees[feeID] = existing.Add(amount)
}

func (a *PaymentAllocation) allocateForInterest(amount money.Money) {
	a.assertMutable()
	a.interest = a.interest.Add(amount)
}

func (a *PaymentAllocation) allocateForExtraInterest(amount money.Money) {
	a.assertMutable()
	a.extraInterest = a.extraInterest.Add(amount)
}

func (a *PaymentAllocation) allocateForPrincipal(amount money.Money) {
	a.assertMutable()
	a.principal = a.principal.Add(amount)
}

// seal makes the allocation read-only. Called once the waterfall finishes.
func (a *PaymentAllocation) seal() { a.sealed = true }

// =============================================================================
// READ ACCESSORS
// =============================================================================

func (a *PaymentAllocation) Currency() money.Currency    { return a.currency }
func (a *PaymentAllocation) MiscPenalty() money.Money    { return a.miscPenalty }
func (a *PaymentAllocation) Penalty() money.Money        { return a.penalty }
func (a *PaymentAllocation) MiscFee() money.Money        { return a.miscFee }
func (a *PaymentAllocation) Interest() money.Money       { return a.interest }
func (a *PaymentAllocation) ExtraInterest() money.Money  { return a.extraInterest }
func (a *PaymentAllocation) Principal() money.Money      { return a.principal }

// FeeAllocation returns the amount allocated to a specific fee.
func (a *PaymentAllocation) FeeAllocation(feeID FeeID) (money.Money, bool) {
	m, ok := a.fees[feeID]
	return m, ok
}

// FeeIDs returns the touched fee ids in attachment order.
func (a *PaymentAllocation) FeeIDs() []FeeID {
	out := make([]FeeID, len(a.feeOrder))
	copy(out, a.feeOrder)
	return out
}

// TotalFees returns the sum allocated across named fees.
func (a *PaymentAllocation) TotalFees() money.Money {
	total := money.Zero(a.currency)
	for _, id := range a.feeOrder {
		total = total.Add(a.fees[id])
	}
	return total
}

// Total returns the full amount this allocation accounts for.
func (a *PaymentAllocation) Total() money.Money {
	return a.miscPenalty.
		Add(a.penalty).
		Add(a.miscFee).
		Add(a.TotalFees()).
		Add(a.interest).
		Add(a.extraInterest).
		Add(a.principal)
}

// IsZero reports whether nothing was allocated (the payment was exhausted
// before reaching this installment).
func (a *PaymentAllocation) IsZero() bool {
	return a.Total().IsZero()
}
