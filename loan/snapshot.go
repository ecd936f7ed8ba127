/*
snapshot.go - Serializable state of a schedule for persistence

PURPOSE:
  The engine's entities keep their accumulators unexported so all mutation
  flows through the waterfall and its invariants. Stores need the raw
  state, so a Schedule can be flattened into a ScheduleState (plain
  exported fields, one struct per table row) and rebuilt from one.

CONTRACT:
  RestoreSchedule(Snapshot()) reproduces the schedule exactly, including
  payment history and sealed allocations, so adjustment keeps working
  across a save/load round trip.

SEE ALSO:
  - store.go: The persistence interface exchanging these states
  - store/sqlite: Maps states onto tables
*/
package loan

import (
	"fmt"
	"time"

	"github.com/warp/loan-engine/money"
)

// =============================================================================
// STATE STRUCTS - One per persisted row
// =============================================================================

type ScheduleState struct {
	LoanID       LoanID
	Currency     money.Currency
	Status       LoanStatus
	Installments []InstallmentState
	Payments     []PaymentState
}

type InstallmentState struct {
	ID      InstallmentID
	DueDate time.Time

	Principal     money.Money
	Interest      money.Money
	ExtraInterest money.Money
	Penalty       money.Money
	MiscFee       money.Money
	MiscPenalty   money.Money

	PrincipalPaid     money.Money
	InterestPaid      money.Money
	ExtraInterestPaid money.Money
	PenaltyPaid       money.Money
	MiscFeePaid       money.Money
	MiscPenaltyPaid   money.Money

	Fees []FeeState

	Status      PaymentStatus
	PaymentDate *time.Time
}

type FeeState struct {
	FeeID     FeeID
	Name      string
	Scheduled money.Money
	Paid      money.Money
}

type PaymentState struct {
	PaymentID   PaymentID
	Amount      money.Money
	Date        time.Time
	Type        PaymentType
	Allocations []AllocationState
}

// AllocationState flattens one sealed PaymentAllocation. FeeIDs/FeeAmounts
// are parallel slices preserving attachment order.
type AllocationState struct {
	InstallmentID InstallmentID
	MiscPenalty   money.Money
	Penalty       money.Money
	MiscFee       money.Money
	Interest      money.Money
	ExtraInterest money.Money
	Principal     money.Money
	FeeIDs        []FeeID
	FeeAmounts    []money.Money
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot flattens the schedule into plain state for persistence.
func (s *Schedule) Snapshot() ScheduleState {
	state := ScheduleState{
		LoanID:   s.loanID,
		Currency: s.currency,
		Status:   s.status,
	}

	for _, inst := range s.installments {
		is := InstallmentState{
			ID:                inst.id,
			DueDate:           inst.dueDate,
			Principal:         inst.principal,
			Interest:          inst.interest,
			ExtraInterest:     inst.extraInterest,
			Penalty:           inst.penalty,
			MiscFee:           inst.miscFee,
			MiscPenalty:       inst.miscPenalty,
			PrincipalPaid:     inst.principalPaid,
			InterestPaid:      inst.interestPaid,
			ExtraInterestPaid: inst.extraInterestPaid,
			PenaltyPaid:       inst.penaltyPaid,
			MiscFeePaid:       inst.miscFeePaid,
			MiscPenaltyPaid:   inst.miscPenaltyPaid,
			Status:            inst.status,
			PaymentDate:       inst.PaymentDate(),
		}
		for _, fee := range inst.fees {
			is.Fees = append(is.Fees, FeeState{
				FeeID:     fee.id,
				Name:      fee.name,
				Scheduled: fee.scheduled,
				Paid:      fee.paid,
			})
		}
		state.Installments = append(state.Installments, is)
	}

	for _, p := range s.payments {
		ps := PaymentState{
			PaymentID: p.PaymentID,
			Amount:    p.Amount,
			Date:      p.Date,
			Type:      p.Type,
		}
		for _, ia := range p.Allocations {
			as := AllocationState{
				InstallmentID: ia.InstallmentID,
				MiscPenalty:   ia.Allocation.miscPenalty,
				Penalty:       ia.Allocation.penalty,
				MiscFee:       ia.Allocation.miscFee,
				Interest:      ia.Allocation.interest,
				ExtraInterest: ia.Allocation.extraInterest,
				Principal:     ia.Allocation.principal,
			}
			for _, feeID := range ia.Allocation.feeOrder {
				as.FeeIDs = append(as.FeeIDs, feeID)
				as.FeeAmounts = append(as.FeeAmounts, ia.Allocation.fees[feeID])
			}
			ps.Allocations = append(ps.Allocations, as)
		}
		state.Payments = append(state.Payments, ps)
	}

	return state
}

// =============================================================================
// RESTORE
// =============================================================================

// RestoreSchedule rebuilds a schedule from persisted state.
func RestoreSchedule(state ScheduleState) (*Schedule, error) {
	if len(state.Installments) == 0 {
		return nil, fmt.Errorf("loan %s: %w", state.LoanID, ErrEmptySchedule)
	}

	s := &Schedule{
		loanID:   state.LoanID,
		currency: state.Currency,
		status:   state.Status,
	}

	for _, is := range state.Installments {
		inst := &Installment{
			id:                is.ID,
			dueDate:           is.DueDate,
			currency:          state.Currency,
			principal:         is.Principal,
			interest:          is.Interest,
			extraInterest:     is.ExtraInterest,
			penalty:           is.Penalty,
			miscFee:           is.MiscFee,
			miscPenalty:       is.MiscPenalty,
			principalPaid:     is.PrincipalPaid,
			interestPaid:      is.InterestPaid,
			extraInterestPaid: is.ExtraInterestPaid,
			penaltyPaid:       is.PenaltyPaid,
			miscFeePaid:       is.MiscFeePaid,
			miscPenaltyPaid:   is.MiscPenaltyPaid,
			status:            is.Status,
		}
		if is.PaymentDate != nil {
			d := *is.PaymentDate
			inst.paymentDate = &d
		}
		for _, fs := range is.Fees {
			inst.fees = append(inst.fees, &FeeCharge{
				id:        fs.FeeID,
				name:      fs.Name,
				scheduled: fs.Scheduled,
				paid:      fs.Paid,
			})
		}
		s.installments = append(s.installments, inst)
	}

	for _, ps := range state.Payments {
		record := &PaymentRecord{
			PaymentID: ps.PaymentID,
			Amount:    ps.Amount,
			Date:      ps.Date,
			Type:      ps.Type,
		}
		for _, as := range ps.Allocations {
			if len(as.FeeIDs) != len(as.FeeAmounts) {
				return nil, fmt.Errorf("loan %s: payment %s: fee allocation shape mismatch",
					state.LoanID, ps.PaymentID)
			}
			alloc := newPaymentAllocation(state.Currency)
			alloc.miscPenalty = as.MiscPenalty
			alloc.penalty = as.Penalty
			alloc.miscFee = as.MiscFee
			alloc.interest = as.Interest
			alloc.extraInterest = as.ExtraInterest
			alloc.principal = as.Principal
			for i, feeID := range as.FeeIDs {
				alloc.feeOrder = append(alloc.feeOrder, feeID)
				alloc.fees[feeID] = as.FeeAmounts[i]
			}
			alloc.seal()
			record.Allocations = append(record.Allocations, InstallmentAllocation{
				InstallmentID: as.InstallmentID,
				Allocation:    alloc,
			})
		}
		s.payments = append(s.payments, record)
	}

	return s, nil
}
