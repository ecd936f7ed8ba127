/*
errors.go - Centralized error types for the loan engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Collaborators (HTTP layer, stores) classify errors with the helpers
  below instead of matching strings.

ERROR CATEGORIES:
  1. Payment errors - Invalid amounts, nothing to reverse
  2. Fee errors - Unknown or duplicate fee attachments
  3. Schedule errors - Malformed schedules, settled history mutations

NOTE:
  Currency mismatch is deliberately NOT an error here. Mixing currencies
  is a programming bug and panics inside the money package; a loan account
  carries exactly one currency for its whole life.

USAGE:
  if errors.Is(err, loan.ErrFeeNotFound) { ... }

SEE ALSO:
  - schedule.go: Validates preconditions before any accumulator mutation
*/
package loan

import (
	"errors"
	"fmt"

	"github.com/warp/loan-engine/money"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPaymentAmount is returned for non-positive payment amounts.
	// Rejected before any state is mutated.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrPaymentExceedsBalance is returned when a payment is larger than the
	// loan's total outstanding obligation. The engine never keeps an unused
	// remainder; excess must be rejected by the caller up front.
	ErrPaymentExceedsBalance = errors.New("payment exceeds outstanding balance")

	// ErrNoReversiblePayment is returned when an adjustment is requested but
	// no prior payment exists to reverse.
	ErrNoReversiblePayment = errors.New("no reversible payment")

	// ErrFeeNotFound is returned when removing or looking up a fee id that
	// is not attached.
	ErrFeeNotFound = errors.New("fee not found")

	// ErrFeeAlreadyAttached is returned when attaching a duplicate fee id
	// to the same installment.
	ErrFeeAlreadyAttached = errors.New("fee already attached")

	// ErrInstallmentNotFound is returned for an unknown installment id.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrInstallmentSettled is returned when mutating settled history
	// (charges and fees only apply to current/future unpaid installments).
	ErrInstallmentSettled = errors.New("installment already settled")

	// ErrLoanNotFound is returned by stores for an unknown loan id.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrLoanClosed is returned when paying or charging a terminally
	// closed loan.
	ErrLoanClosed = errors.New("loan is closed")

	// ErrEmptySchedule is returned when constructing a schedule with no
	// installments.
	ErrEmptySchedule = errors.New("schedule has no installments")

	// ErrScheduleOrder is returned when installment ids are not strictly
	// increasing or due dates regress.
	ErrScheduleOrder = errors.New("schedule entries out of order")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ExcessPaymentError reports how far a payment overshoots the outstanding
// obligation.
type ExcessPaymentError struct {
	LoanID     LoanID
	Requested  money.Money
	MaxPayable money.Money
}

func (e *ExcessPaymentError) Error() string {
	return fmt.Sprintf("payment of %v exceeds outstanding balance %v on loan %s",
		e.Requested.Value, e.MaxPayable.Value, e.LoanID)
}

func (e *ExcessPaymentError) Unwrap() error {
	return ErrPaymentExceedsBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPaymentAmount) ||
		errors.Is(err, ErrPaymentExceedsBalance) ||
		errors.Is(err, ErrNoReversiblePayment) ||
		errors.Is(err, ErrFeeAlreadyAttached) ||
		errors.Is(err, ErrInstallmentSettled) ||
		errors.Is(err, ErrLoanClosed) ||
		errors.Is(err, ErrEmptySchedule) ||
		errors.Is(err, ErrScheduleOrder)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFeeNotFound) ||
		errors.Is(err, ErrInstallmentNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}
