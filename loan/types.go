/*
Package loan provides the core loan servicing engine.

PURPOSE:
  This package contains the repayment allocation and schedule entities for
  a loan account: the installment (one due date's obligation), the fee
  charges attached to it, the payment allocation breakdown produced by each
  payment, and the schedule facade that drives the whole lifecycle.

KEY CONCEPTS IN THIS FILE (types.go):
  - InstallmentID / FeeID / LoanID / PaymentID: Type-safe identifiers
  - PaymentStatus: UNPAID or PAID, recomputed from component dues
  - RepaymentMode: Early-repayment variants (pay-all, fees-only, principal)
  - ScheduleEntry: The amortization tuple supplied by the external source
  - Clock: "Today" provider for payment-date stamping

DESIGN PRINCIPLES:
  1. Precision: money.Money (decimal) for every amount
  2. Purity: due amounts are always recomputed, never cached
  3. No I/O: the engine transforms an in-memory installment graph;
     persistence and locking belong to the caller

SEE ALSO:
  - installment.go: The payment waterfall (the core algorithm)
  - schedule.go: Multi-installment orchestration
  - store.go: Persistence interface consumed by store implementations
*/
package loan

import (
	"time"

	"github.com/warp/loan-engine/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// InstallmentID is the ordinal position of an installment within its loan.
// Ordering is significant: ascending ID is ascending due date.
type InstallmentID int

type FeeID string
type LoanID string
type PaymentID string

// =============================================================================
// PAYMENT STATUS
// =============================================================================

// PaymentStatus tracks whether an installment is fully settled.
// There is no explicit "partially paid" state: a partial payment leaves the
// installment UNPAID with non-zero paid accumulators.
type PaymentStatus string

const (
	StatusUnpaid PaymentStatus = "unpaid"
	StatusPaid   PaymentStatus = "paid"
)

// =============================================================================
// LOAN STATUS
// =============================================================================

type LoanStatus string

const (
	LoanActive LoanStatus = "active"

	// LoanClosedObligationsMet is terminal: every installment is PAID.
	LoanClosedObligationsMet LoanStatus = "closed_obligations_met"
)

// =============================================================================
// PAYMENT TYPE
// =============================================================================

// PaymentType identifies how a payment arrived. The engine treats all types
// identically; the type is carried for receipts and reporting.
type PaymentType string

const (
	PaymentCash     PaymentType = "cash"
	PaymentTransfer PaymentType = "transfer"
	PaymentCheque   PaymentType = "cheque"
)

// =============================================================================
// MISC CHARGES
// =============================================================================

// MiscChargeKind selects which ad-hoc accumulator a post-hoc charge hits.
// Misc charges are not tied to a fee catalog entry; they are tracked
// directly on the installment.
type MiscChargeKind string

const (
	ChargeMiscFee     MiscChargeKind = "misc_fee"
	ChargeMiscPenalty MiscChargeKind = "misc_penalty"
)

// =============================================================================
// EARLY REPAYMENT MODES
// =============================================================================

// RepaymentMode selects which components an early repayment settles.
// Every mode marks the installment PAID and stamps the payment date.
type RepaymentMode string

const (
	// RepayAll settles principal, interest, penalties, and all fees.
	RepayAll RepaymentMode = "pay_all"

	// RepayFeesAndPenalties settles principal, penalties, and fees but
	// leaves interest untouched - an interest waiver.
	RepayFeesAndPenalties RepaymentMode = "pay_fees_and_penalties"

	// RepayPrincipalOnly settles principal only. Used for pure principal
	// adjustment.
	RepayPrincipalOnly RepaymentMode = "pay_principal_only"
)

// =============================================================================
// SCHEDULE ENTRY - Amortization source tuple
// =============================================================================

// ScheduleEntry is one row of the amortization schedule supplied at loan
// setup. The engine does not compute amortization; it consumes these.
// ExtraInterest is optional: a zero-value Money (empty currency) is
// normalized to zero in the loan currency at construction.
type ScheduleEntry struct {
	InstallmentID InstallmentID
	DueDate       time.Time
	Principal     money.Money
	Interest      money.Money
	ExtraInterest money.Money
}

// =============================================================================
// OVERDUE SUMMARY - Per-component overdue view for dashboards
// =============================================================================

type OverdueSummary struct {
	Principal          money.Money
	Interest           money.Money
	Penalty            money.Money
	Fees               money.Money
	TotalPrincipalPaid money.Money
}

func newOverdueSummary(currency money.Currency) OverdueSummary {
	zero := money.Zero(currency)
	return OverdueSummary{
		Principal:          zero,
		Interest:           zero,
		Penalty:            zero,
		Fees:               zero,
		TotalPrincipalPaid: zero,
	}
}

// Total returns the overall overdue amount (principal paid excluded - it is
// informational, not owed).
func (o OverdueSummary) Total() money.Money {
	return o.Principal.Add(o.Interest).Add(o.Penalty).Add(o.Fees)
}

// =============================================================================
// CLOCK - "Today" provider
// =============================================================================

// Clock supplies today's date for stamping payment dates on the
// early-repayment and waiver paths. Tests inject a FixedClock.
type Clock interface {
	Today() time.Time
}

// SystemClock returns the wall-clock date, truncated to midnight UTC.
type SystemClock struct{}

func (SystemClock) Today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// FixedClock always returns the same date.
type FixedClock struct {
	Date time.Time
}

func (c FixedClock) Today() time.Time { return c.Date }
