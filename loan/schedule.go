/*
schedule.go - Schedule facade: payment orchestration across installments

PURPOSE:
  The Schedule owns a loan's chronologically ordered installments and
  drives the full lifecycle: applying payments oldest-due-first through
  each installment's waterfall, adjusting (reversing) the most recent
  payment, early repayment, waivers, fee attachment/removal, post-hoc misc
  charges, and due-date regeneration when the meeting schedule changes.

CONCURRENCY:
  The engine performs no I/O and spawns nothing. The enclosing system must
  serialize payment application per loan (at most one in-flight mutation)
  and persist all mutated installments atomically; see store.go.

VALIDATION:
  All preconditions are checked before any accumulator mutation. The
  waterfall itself cannot fail mid-way - it only ever subtracts what is
  already known to be due - so no rollback logic exists inside the engine.

SEE ALSO:
  - installment.go: The per-installment waterfall
  - store.go: Atomic persistence contract
*/
package loan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// PAYMENT RECORD - One posted payment and its per-installment breakdown
// =============================================================================

// InstallmentAllocation pairs an installment with the sealed allocation a
// payment produced on it.
type InstallmentAllocation struct {
	InstallmentID InstallmentID
	Allocation    *PaymentAllocation
}

// PaymentRecord is the durable trace of one ApplyPayment call. Adjustment
// replays its allocations in reverse; receipts render them.
type PaymentRecord struct {
	PaymentID   PaymentID
	Amount      money.Money
	Date        time.Time
	Type        PaymentType
	Allocations []InstallmentAllocation
}

// =============================================================================
// SCHEDULE
// =============================================================================

type Schedule struct {
	loanID   LoanID
	currency money.Currency

	// Ascending installment id == ascending due date.
	installments []*Installment

	// Posted payments, oldest first. Acts as a stack for adjustment.
	payments []*PaymentRecord

	status LoanStatus
}

// NewSchedule builds a schedule from the amortization source's entries.
// Entries must arrive with strictly increasing installment ids and
// non-decreasing due dates.
func NewSchedule(loanID LoanID, currency money.Currency, entries []ScheduleEntry) (*Schedule, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("loan %s: %w", loanID, ErrEmptySchedule)
	}

	s := &Schedule{
		loanID:   loanID,
		currency: currency,
		status:   LoanActive,
	}

	for i, e := range entries {
		if i > 0 {
			prev := entries[i-1]
			if e.InstallmentID <= prev.InstallmentID || e.DueDate.Before(prev.DueDate) {
				return nil, fmt.Errorf("loan %s: entry %d: %w", loanID, e.InstallmentID, ErrScheduleOrder)
			}
		}
		inst := NewInstallment(e.InstallmentID, e.DueDate, e.Principal, e.Interest)
		if inst.Currency() != currency {
			panic(fmt.Sprintf("loan: schedule currency mismatch: %s vs %s", inst.Currency(), currency))
		}
		// ExtraInterest is optional in the source tuple; an unset Money
		// (empty currency) defaults to zero.
		if e.ExtraInterest.Currency != "" {
			inst.SetExtraInterest(e.ExtraInterest)
		}
		s.installments = append(s.installments, inst)
	}
	return s, nil
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

func (s *Schedule) LoanID() LoanID            { return s.loanID }
func (s *Schedule) Currency() money.Currency  { return s.currency }
func (s *Schedule) Status() LoanStatus        { return s.status }

// Installments returns the installments in due-date order. The slice is a
// copy; the installments themselves are the live entities.
func (s *Schedule) Installments() []*Installment {
	out := make([]*Installment, len(s.installments))
	copy(out, s.installments)
	return out
}

func (s *Schedule) Installment(id InstallmentID) (*Installment, error) {
	for _, inst := range s.installments {
		if inst.ID() == id {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("loan %s: installment %d: %w", s.loanID, id, ErrInstallmentNotFound)
}

// NextUnpaidInstallment returns the earliest not-fully-paid installment,
// or nil when everything is settled.
func (s *Schedule) NextUnpaidInstallment() *Installment {
	for _, inst := range s.installments {
		if inst.Status() == StatusUnpaid {
			return inst
		}
	}
	return nil
}

// TotalDueWithFees is the loan's full outstanding obligation.
func (s *Schedule) TotalDueWithFees() money.Money {
	total := money.Zero(s.currency)
	for _, inst := range s.installments {
		total = total.Add(inst.TotalDueWithFees())
	}
	return total
}

// OverdueSummary aggregates per-component overdue amounts across
// installments whose due date has passed as of the given date.
func (s *Schedule) OverdueSummary(asOf time.Time) OverdueSummary {
	summary := newOverdueSummary(s.currency)
	for _, inst := range s.installments {
		if !inst.DueDate().Before(asOf) {
			continue
		}
		o := inst.OverdueSummary()
		summary.Principal = summary.Principal.Add(o.Principal)
		summary.Interest = summary.Interest.Add(o.Interest)
		summary.Penalty = summary.Penalty.Add(o.Penalty)
		summary.Fees = summary.Fees.Add(o.Fees)
		summary.TotalPrincipalPaid = summary.TotalPrincipalPaid.Add(o.TotalPrincipalPaid)
	}
	return summary
}

// Payments returns posted payments, oldest first.
func (s *Schedule) Payments() []*PaymentRecord {
	out := make([]*PaymentRecord, len(s.payments))
	copy(out, s.payments)
	return out
}

func (s *Schedule) LastPayment() *PaymentRecord {
	if len(s.payments) == 0 {
		return nil
	}
	return s.payments[len(s.payments)-1]
}

// =============================================================================
// PAYMENT APPLICATION
// =============================================================================

// ApplyPayment feeds a payment through the installments oldest-due-first,
// carrying the unused remainder forward, and records the breakdown.
// Validation happens before any mutation: non-positive amounts and amounts
// exceeding the total outstanding obligation are rejected outright.
func (s *Schedule) ApplyPayment(amount money.Money, date time.Time, paymentType PaymentType) (*PaymentRecord, error) {
	if s.status == LoanClosedObligationsMet {
		return nil, fmt.Errorf("loan %s: %w", s.loanID, ErrLoanClosed)
	}
	if !amount.IsGreaterThanZero() {
		return nil, fmt.Errorf("loan %s: amount %v: %w", s.loanID, amount.Value, ErrInvalidPaymentAmount)
	}
	maxPayable := s.TotalDueWithFees()
	if amount.GreaterThan(maxPayable) {
		return nil, &ExcessPaymentError{LoanID: s.loanID, Requested: amount, MaxPayable: maxPayable}
	}

	record := &PaymentRecord{
		PaymentID: PaymentID(uuid.NewString()),
		Amount:    amount,
		Date:      date,
		Type:      paymentType,
	}

	balance := amount
	for _, inst := range s.installments {
		if balance.IsZero() {
			break
		}
		if inst.Status() != StatusUnpaid {
			continue
		}
		balance = inst.PayComponents(balance)
		alloc := inst.LatestAllocation()
		if alloc.IsZero() {
			continue
		}
		inst.setPaymentDate(date)
		record.Allocations = append(record.Allocations, InstallmentAllocation{
			InstallmentID: inst.ID(),
			Allocation:    alloc,
		})
	}

	s.payments = append(s.payments, record)
	s.updateLoanStatus()
	return record, nil
}

// =============================================================================
// ADJUSTMENT / REVERSAL
// =============================================================================

// AdjustLastPayment reverses the most recently posted payment: every
// accumulator the payment incremented is decremented by the same amount,
// restoring the pre-payment state exactly. Returns the reversed record.
func (s *Schedule) AdjustLastPayment() (*PaymentRecord, error) {
	if len(s.payments) == 0 {
		return nil, fmt.Errorf("loan %s: %w", s.loanID, ErrNoReversiblePayment)
	}

	record := s.payments[len(s.payments)-1]
	s.payments = s.payments[:len(s.payments)-1]

	// Reverse in the opposite order the waterfall touched installments.
	for i := len(record.Allocations) - 1; i >= 0; i-- {
		ia := record.Allocations[i]
		inst, err := s.Installment(ia.InstallmentID)
		if err != nil {
			return nil, err
		}
		inst.reverse(ia.Allocation)
	}

	s.updateLoanStatus()
	return record, nil
}

// =============================================================================
// EARLY REPAYMENT
// =============================================================================

// MakeEarlyRepayment settles every unpaid installment in the given mode
// and returns the cash amount the settlement represents (zero cash for the
// components a mode waives). Closes the loan.
func (s *Schedule) MakeEarlyRepayment(mode RepaymentMode, today time.Time) (money.Money, error) {
	if s.status == LoanClosedObligationsMet {
		return money.Money{}, fmt.Errorf("loan %s: %w", s.loanID, ErrLoanClosed)
	}

	collected := money.Zero(s.currency)
	for _, inst := range s.installments {
		if inst.Status() != StatusUnpaid {
			continue
		}
		switch mode {
		case RepayAll:
			collected = collected.Add(inst.TotalDueWithFees())
		case RepayFeesAndPenalties:
			collected = collected.Add(inst.TotalDueWithFees().Subtract(inst.EffectiveInterestDue()))
		case RepayPrincipalOnly:
			collected = collected.Add(inst.PrincipalDue())
		default:
			panic(fmt.Sprintf("loan: unknown repayment mode %q", mode))
		}
		inst.MakeEarlyRepaymentEntries(mode, today)
	}

	s.updateLoanStatus()
	return collected, nil
}

// =============================================================================
// WAIVERS
// =============================================================================

// WaiveFeeCharges forgives all outstanding fee due on the next unpaid
// installment. Returns the forgiven amount; zero when nothing is unpaid.
func (s *Schedule) WaiveFeeCharges() money.Money {
	inst := s.NextUnpaidInstallment()
	if inst == nil {
		return money.Zero(s.currency)
	}
	waived := inst.WaiveFeeCharges()
	s.updateLoanStatus()
	return waived
}

// WaivePenaltyCharges forgives the outstanding misc-penalty due on the
// next unpaid installment.
func (s *Schedule) WaivePenaltyCharges() money.Money {
	inst := s.NextUnpaidInstallment()
	if inst == nil {
		return money.Zero(s.currency)
	}
	waived := inst.WaivePenaltyCharges()
	s.updateLoanStatus()
	return waived
}

// =============================================================================
// CHARGES AND FEES
// =============================================================================

// ApplyMiscCharge assesses a post-hoc charge against one installment.
// Settled history is immutable.
func (s *Schedule) ApplyMiscCharge(id InstallmentID, kind MiscChargeKind, amount money.Money) error {
	inst, err := s.Installment(id)
	if err != nil {
		return err
	}
	if inst.Status() == StatusPaid {
		return fmt.Errorf("loan %s: installment %d: %w", s.loanID, id, ErrInstallmentSettled)
	}
	inst.ApplyMiscCharge(kind, amount)
	return nil
}

// AttachFeeToUnpaid attaches a fee charge of the given per-installment
// amount to every unpaid installment. Settled history is never touched.
func (s *Schedule) AttachFeeToUnpaid(feeID FeeID, name string, amount money.Money) error {
	if s.status == LoanClosedObligationsMet {
		return fmt.Errorf("loan %s: %w", s.loanID, ErrLoanClosed)
	}
	for _, inst := range s.installments {
		if inst.Status() != StatusUnpaid {
			continue
		}
		if err := inst.AddFeeCharge(NewFeeCharge(feeID, name, amount)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFee removes (or freezes, if partially paid) the fee from every
// unpaid installment carrying it and returns the total credited/forgiven
// amount. ErrFeeNotFound when no unpaid installment carries the fee.
func (s *Schedule) RemoveFee(feeID FeeID) (money.Money, error) {
	credit := money.Zero(s.currency)
	found := false
	for _, inst := range s.installments {
		if inst.Status() != StatusUnpaid {
			continue
		}
		if !inst.IsFeeAttached(feeID) {
			continue
		}
		amount, err := inst.RemoveFee(feeID)
		if err != nil {
			return money.Money{}, err
		}
		credit = credit.Add(amount)
		found = true
	}
	if !found {
		return money.Money{}, fmt.Errorf("loan %s: fee %s: %w", s.loanID, feeID, ErrFeeNotFound)
	}
	return credit, nil
}

// =============================================================================
// RESCHEDULING
// =============================================================================

// HandleMeetingScheduleChange regenerates due dates for future untouched
// installments from a new meeting recurrence. An installment keeps its
// date if it is paid, has any payment applied, or is already past due as
// of the change date.
func (s *Schedule) HandleMeetingScheduleChange(rec MeetingRecurrence, asOf time.Time) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var movable []*Installment
	anchor := asOf
	for _, inst := range s.installments {
		if inst.Status() == StatusPaid || inst.IsPaymentApplied() || inst.DueDate().Before(asOf) {
			if inst.DueDate().After(anchor) {
				anchor = inst.DueDate()
			}
			continue
		}
		movable = append(movable, inst)
	}
	if len(movable) == 0 {
		return nil
	}

	dates := rec.DatesFrom(anchor, len(movable))
	for i, inst := range movable {
		inst.dueDate = dates[i]
	}
	return nil
}

// PruneFutureInstallments drops unpaid, untouched installments due after
// the given date. Used when a loan closes early or is rescheduled onto a
// shorter term.
func (s *Schedule) PruneFutureInstallments(after time.Time) int {
	kept := s.installments[:0]
	pruned := 0
	for _, inst := range s.installments {
		if inst.Status() == StatusUnpaid && !inst.IsPaymentApplied() && inst.DueDate().After(after) {
			pruned++
			continue
		}
		kept = append(kept, inst)
	}
	s.installments = kept
	s.updateLoanStatus()
	return pruned
}

// =============================================================================
// STATUS
// =============================================================================

func (s *Schedule) updateLoanStatus() {
	if s.NextUnpaidInstallment() == nil {
		s.status = LoanClosedObligationsMet
	} else {
		s.status = LoanActive
	}
}
