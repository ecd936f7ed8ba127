/*
handlers.go - HTTP API handlers for the loan servicing engine

PURPOSE:
  Exposes the loan engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain logic.

ENDPOINTS:
  Loans:
    POST   /api/loans                      Create loan from amortization schedule
    GET    /api/loans                      List loans
    GET    /api/loans/{id}                 Loan summary
    GET    /api/loans/{id}/schedule        Installment detail

  Payments:
    POST   /api/loans/{id}/payments        Apply a payment
    POST   /api/loans/{id}/payments/adjust Reverse the most recent payment
    POST   /api/loans/{id}/repay           Early repayment (mode param)
    GET    /api/loans/{id}/receipts        Posted payment receipts

  Fees and charges:
    POST   /api/loans/{id}/fees            Attach fee to unpaid installments
    DELETE /api/loans/{id}/fees/{feeId}    Remove fee
    POST   /api/loans/{id}/charges         Post-hoc misc charge
    POST   /api/loans/{id}/waivers         Waive fee or penalty due

  Views:
    GET    /api/loans/{id}/overdue         Overdue summary
    POST   /api/loans/{id}/reschedule      Meeting schedule change

REQUEST FLOW:
  Every mutation is load -> mutate in memory -> SaveLoan. The store's
  SaveLoan is atomic, so a failed mutation never leaves a half-updated
  schedule behind.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (loan.IsClientError)
  - 404: Resource not found (loan.IsNotFound)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store loan.Store
	Clock loan.Clock
	Log   *logrus.Logger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store loan.Store, clock loan.Clock, log *logrus.Logger) *Handler {
	return &Handler{Store: store, Clock: clock, Log: log}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case loan.IsClientError(err):
		status = http.StatusBadRequest
	case loan.IsNotFound(err):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse(dateLayout, s)
}

// mutate runs the load -> fn -> save cycle for one loan.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*loan.Schedule) (any, error)) {
	id := loan.LoanID(chi.URLParam(r, "id"))

	sched, err := h.Store.GetLoan(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := fn(sched)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.Store.SaveLoan(r.Context(), sched); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// LOAN SETUP
// =============================================================================

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.LoanID == "" || req.Currency == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "loan_id and currency are required"})
		return
	}

	currency := money.Currency(req.Currency)
	var entries []loan.ScheduleEntry
	for _, e := range req.Entries {
		dueDate, err := time.Parse(dateLayout, e.DueDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("entry %d: bad due_date", e.InstallmentID)})
			return
		}
		principal, err := money.FromString(e.Principal, currency)
		if err != nil {
			h.writeError(w, err)
			return
		}
		interest, err := money.FromString(e.Interest, currency)
		if err != nil {
			h.writeError(w, err)
			return
		}
		entry := loan.ScheduleEntry{
			InstallmentID: loan.InstallmentID(e.InstallmentID),
			DueDate:       dueDate,
			Principal:     principal,
			Interest:      interest,
		}
		if e.ExtraInterest != "" {
			extra, err := money.FromString(e.ExtraInterest, currency)
			if err != nil {
				h.writeError(w, err)
				return
			}
			entry.ExtraInterest = extra
		}
		entries = append(entries, entry)
	}

	sched, err := loan.NewSchedule(loan.LoanID(req.LoanID), currency, entries)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.SaveLoan(r.Context(), sched); err != nil {
		h.writeError(w, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"loan_id":      req.LoanID,
		"installments": len(entries),
	}).Info("loan created")

	writeJSON(w, http.StatusCreated, loanToDTO(sched))
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Store.ListLoans(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]LoanDTO, 0, len(loans))
	for _, s := range loans {
		out = append(out, loanToDTO(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Store.GetLoan(r.Context(), loan.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loanToDTO(sched))
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Store.GetLoan(r.Context(), loan.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	installments := sched.Installments()
	out := make([]InstallmentDTO, 0, len(installments))
	for _, in := range installments {
		out = append(out, installmentToDTO(in))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		amount, err := money.FromString(req.Amount, sched.Currency())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", loan.ErrInvalidPaymentAmount, err)
		}
		date, err := parseDate(req.Date, h.Clock.Today())
		if err != nil {
			return nil, fmt.Errorf("%w: bad date", loan.ErrInvalidPaymentAmount)
		}
		paymentType := loan.PaymentType(req.Type)
		if paymentType == "" {
			paymentType = loan.PaymentCash
		}

		record, err := sched.ApplyPayment(amount, date, paymentType)
		if err != nil {
			return nil, err
		}

		h.Log.WithFields(logrus.Fields{
			"loan_id":    sched.LoanID(),
			"payment_id": record.PaymentID,
			"amount":     amount.Value.String(),
		}).Info("payment applied")

		return receiptToDTO(sched.LoanID(), sched.Currency(), record), nil
	})
}

func (h *Handler) AdjustLastPayment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		record, err := sched.AdjustLastPayment()
		if err != nil {
			return nil, err
		}

		h.Log.WithFields(logrus.Fields{
			"loan_id":    sched.LoanID(),
			"payment_id": record.PaymentID,
		}).Info("payment adjusted")

		return receiptToDTO(sched.LoanID(), sched.Currency(), record), nil
	})
}

func (h *Handler) EarlyRepay(w http.ResponseWriter, r *http.Request) {
	var req EarlyRepaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	mode := loan.RepaymentMode(req.Mode)
	switch mode {
	case loan.RepayAll, loan.RepayFeesAndPenalties, loan.RepayPrincipalOnly:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown repayment mode"})
		return
	}

	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		collected, err := sched.MakeEarlyRepayment(mode, h.Clock.Today())
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"collected": collected.Value.String(),
			"status":    string(sched.Status()),
		}, nil
	})
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Store.GetLoan(r.Context(), loan.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	payments := sched.Payments()
	out := make([]ReceiptDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, receiptToDTO(sched.LoanID(), sched.Currency(), p))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// FEES, CHARGES, WAIVERS
// =============================================================================

func (h *Handler) AttachFee(w http.ResponseWriter, r *http.Request) {
	var req AttachFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		amount, err := money.FromString(req.Amount, sched.Currency())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", loan.ErrInvalidPaymentAmount, err)
		}
		if err := sched.AttachFeeToUnpaid(loan.FeeID(req.FeeID), req.Name, amount); err != nil {
			return nil, err
		}
		return loanToDTO(sched), nil
	})
}

func (h *Handler) RemoveFee(w http.ResponseWriter, r *http.Request) {
	feeID := loan.FeeID(chi.URLParam(r, "feeId"))
	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		credited, err := sched.RemoveFee(feeID)
		if err != nil {
			return nil, err
		}
		return RemoveFeeResponse{Credited: credited.Value.String()}, nil
	})
}

func (h *Handler) ApplyMiscCharge(w http.ResponseWriter, r *http.Request) {
	var req MiscChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	kind := loan.MiscChargeKind(req.Kind)
	if kind != loan.ChargeMiscFee && kind != loan.ChargeMiscPenalty {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be misc_fee or misc_penalty"})
		return
	}

	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		amount, err := money.FromString(req.Amount, sched.Currency())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", loan.ErrInvalidPaymentAmount, err)
		}
		if err := sched.ApplyMiscCharge(loan.InstallmentID(req.InstallmentID), kind, amount); err != nil {
			return nil, err
		}
		return loanToDTO(sched), nil
	})
}

func (h *Handler) Waive(w http.ResponseWriter, r *http.Request) {
	var req WaiverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Kind != "fee" && req.Kind != "penalty" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be fee or penalty"})
		return
	}

	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		var waived money.Money
		if req.Kind == "fee" {
			waived = sched.WaiveFeeCharges()
		} else {
			waived = sched.WaivePenaltyCharges()
		}

		h.Log.WithFields(logrus.Fields{
			"loan_id": sched.LoanID(),
			"kind":    req.Kind,
			"waived":  waived.Value.String(),
		}).Info("charges waived")

		return WaiverResponse{Waived: waived.Value.String()}, nil
	})
}

// =============================================================================
// VIEWS AND RESCHEDULING
// =============================================================================

func (h *Handler) GetOverdue(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Store.GetLoan(r.Context(), loan.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	asOf := h.Clock.Today()
	writeJSON(w, http.StatusOK, overdueToDTO(asOf, sched.OverdueSummary(asOf)))
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	rec := loan.MeetingRecurrence{
		Frequency:  loan.MeetingFrequency(req.Frequency),
		Every:      req.Every,
		Weekday:    time.Weekday(req.Weekday),
		DayOfMonth: req.DayOfMonth,
	}
	if err := rec.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	h.mutate(w, r, func(sched *loan.Schedule) (any, error) {
		asOf, err := parseDate(req.AsOf, h.Clock.Today())
		if err != nil {
			return nil, fmt.Errorf("%w: bad as_of", loan.ErrInvalidPaymentAmount)
		}
		if err := sched.HandleMeetingScheduleChange(rec, asOf); err != nil {
			return nil, err
		}
		installments := sched.Installments()
		out := make([]InstallmentDTO, 0, len(installments))
		for _, in := range installments {
			out = append(out, installmentToDTO(in))
		}
		return out, nil
	})
}
