/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  All monetary amounts cross the wire as decimal strings ("125.50"),
  never as JSON numbers - float parsing would destroy precision.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// LOAN SETUP
// =============================================================================

// ScheduleEntryRequest is one amortization tuple from the schedule source.
type ScheduleEntryRequest struct {
	InstallmentID int    `json:"installment_id"`
	DueDate       string `json:"due_date"` // YYYY-MM-DD
	Principal     string `json:"principal"`
	Interest      string `json:"interest"`
	ExtraInterest string `json:"extra_interest,omitempty"`
}

// CreateLoanRequest sets up a loan from a pre-computed amortization
// schedule.
type CreateLoanRequest struct {
	LoanID   string                 `json:"loan_id"`
	Currency string                 `json:"currency"`
	Entries  []ScheduleEntryRequest `json:"entries"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	Type   string `json:"type,omitempty"` // cash | transfer | cheque
}

type EarlyRepaymentRequest struct {
	Mode string `json:"mode"` // pay_all | pay_fees_and_penalties | pay_principal_only
}

// ReceiptDTO renders one posted payment and its allocation breakdown.
type ReceiptDTO struct {
	PaymentID string              `json:"payment_id"`
	LoanID    string              `json:"loan_id"`
	Amount    string              `json:"amount"`
	Currency  string              `json:"currency"`
	Date      string              `json:"date"`
	Type      string              `json:"type"`
	Lines     []ReceiptLineDTO    `json:"lines"`
}

// ReceiptLineDTO is the per-installment slice of a payment.
type ReceiptLineDTO struct {
	InstallmentID int                `json:"installment_id"`
	MiscPenalty   string             `json:"misc_penalty"`
	Penalty       string             `json:"penalty"`
	MiscFee       string             `json:"misc_fee"`
	Fees          []FeeAllocationDTO `json:"fees,omitempty"`
	Interest      string             `json:"interest"`
	ExtraInterest string             `json:"extra_interest"`
	Principal     string             `json:"principal"`
	Total         string             `json:"total"`
}

type FeeAllocationDTO struct {
	FeeID  string `json:"fee_id"`
	Amount string `json:"amount"`
}

// =============================================================================
// FEES, CHARGES, WAIVERS
// =============================================================================

type AttachFeeRequest struct {
	FeeID  string `json:"fee_id"`
	Name   string `json:"name"`
	Amount string `json:"amount"` // per installment
}

type MiscChargeRequest struct {
	InstallmentID int    `json:"installment_id"`
	Kind          string `json:"kind"` // misc_fee | misc_penalty
	Amount        string `json:"amount"`
}

type WaiverRequest struct {
	Kind string `json:"kind"` // fee | penalty
}

type WaiverResponse struct {
	Waived string `json:"waived"`
}

type RemoveFeeResponse struct {
	Credited string `json:"credited"`
}

// =============================================================================
// RESCHEDULING
// =============================================================================

type RescheduleRequest struct {
	Frequency  string `json:"frequency"` // weekly | monthly
	Every      int    `json:"every"`
	Weekday    int    `json:"weekday,omitempty"`      // 0=Sunday, weekly only
	DayOfMonth int    `json:"day_of_month,omitempty"` // 1-28, monthly only
	AsOf       string `json:"as_of,omitempty"`        // YYYY-MM-DD
}

// =============================================================================
// VIEWS
// =============================================================================

type LoanDTO struct {
	LoanID         string `json:"loan_id"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	TotalDue       string `json:"total_due"`
	Installments   int    `json:"installments"`
	PaymentsPosted int    `json:"payments_posted"`
}

type FeeChargeDTO struct {
	FeeID     string `json:"fee_id"`
	Name      string `json:"name"`
	Scheduled string `json:"scheduled"`
	Paid      string `json:"paid"`
	Due       string `json:"due"`
}

type InstallmentDTO struct {
	InstallmentID int            `json:"installment_id"`
	DueDate       string         `json:"due_date"`
	Status        string         `json:"status"`
	PaymentDate   string         `json:"payment_date,omitempty"`
	Principal     string         `json:"principal"`
	PrincipalDue  string         `json:"principal_due"`
	Interest      string         `json:"interest"`
	InterestDue   string         `json:"interest_due"`
	ExtraInterest string         `json:"extra_interest"`
	MiscFee       string         `json:"misc_fee"`
	MiscFeeDue    string         `json:"misc_fee_due"`
	MiscPenalty   string         `json:"misc_penalty"`
	PenaltyDue    string         `json:"penalty_due"`
	Fees          []FeeChargeDTO `json:"fees,omitempty"`
	TotalDue      string         `json:"total_due"`
}

type OverdueSummaryDTO struct {
	AsOf               string `json:"as_of"`
	Principal          string `json:"principal"`
	Interest           string `json:"interest"`
	Penalty            string `json:"penalty"`
	Fees               string `json:"fees"`
	Total              string `json:"total"`
	TotalPrincipalPaid string `json:"total_principal_paid"`
}

// =============================================================================
// MAPPERS
// =============================================================================

const dateLayout = "2006-01-02"

func loanToDTO(s *loan.Schedule) LoanDTO {
	return LoanDTO{
		LoanID:         string(s.LoanID()),
		Currency:       string(s.Currency()),
		Status:         string(s.Status()),
		TotalDue:       s.TotalDueWithFees().Value.String(),
		Installments:   len(s.Installments()),
		PaymentsPosted: len(s.Payments()),
	}
}

func installmentToDTO(in *loan.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		InstallmentID: int(in.ID()),
		DueDate:       in.DueDate().Format(dateLayout),
		Status:        string(in.Status()),
		Principal:     in.Principal().Value.String(),
		PrincipalDue:  in.PrincipalDue().Value.String(),
		Interest:      in.Interest().Value.String(),
		InterestDue:   in.InterestDue().Value.String(),
		ExtraInterest: in.ExtraInterest().Value.String(),
		MiscFee:       in.MiscFee().Value.String(),
		MiscFeeDue:    in.MiscFeeDue().Value.String(),
		MiscPenalty:   in.MiscPenalty().Value.String(),
		PenaltyDue:    in.PenaltyDue().Value.String(),
		TotalDue:      in.TotalDueWithFees().Value.String(),
	}
	if d := in.PaymentDate(); d != nil {
		dto.PaymentDate = d.Format(dateLayout)
	}
	for _, fee := range in.FeeCharges() {
		dto.Fees = append(dto.Fees, FeeChargeDTO{
			FeeID:     string(fee.ID()),
			Name:      fee.Name(),
			Scheduled: fee.Scheduled().Value.String(),
			Paid:      fee.Paid().Value.String(),
			Due:       fee.Due().Value.String(),
		})
	}
	return dto
}

func receiptToDTO(loanID loan.LoanID, currency money.Currency, record *loan.PaymentRecord) ReceiptDTO {
	dto := ReceiptDTO{
		PaymentID: string(record.PaymentID),
		LoanID:    string(loanID),
		Amount:    record.Amount.Value.String(),
		Currency:  string(currency),
		Date:      record.Date.Format(dateLayout),
		Type:      string(record.Type),
	}
	for _, ia := range record.Allocations {
		alloc := ia.Allocation
		line := ReceiptLineDTO{
			InstallmentID: int(ia.InstallmentID),
			MiscPenalty:   alloc.MiscPenalty().Value.String(),
			Penalty:       alloc.Penalty().Value.String(),
			MiscFee:       alloc.MiscFee().Value.String(),
			Interest:      alloc.Interest().Value.String(),
			ExtraInterest: alloc.ExtraInterest().Value.String(),
			Principal:     alloc.Principal().Value.String(),
			Total:         alloc.Total().Value.String(),
		}
		for _, feeID := range alloc.FeeIDs() {
			amount, _ := alloc.FeeAllocation(feeID)
			line.Fees = append(line.Fees, FeeAllocationDTO{
				FeeID:  string(feeID),
				Amount: amount.Value.String(),
			})
		}
		dto.Lines = append(dto.Lines, line)
	}
	return dto
}

func overdueToDTO(asOf time.Time, o loan.OverdueSummary) OverdueSummaryDTO {
	return OverdueSummaryDTO{
		AsOf:               asOf.Format(dateLayout),
		Principal:          o.Principal.Value.String(),
		Interest:           o.Interest.Value.String(),
		Penalty:            o.Penalty.Value.String(),
		Fees:               o.Fees.Value.String(),
		Total:              o.Total().Value.String(),
		TotalPrincipalPaid: o.TotalPrincipalPaid.Value.String(),
	}
}
