package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)

	clock := loan.FixedClock{Date: time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)}
	handler := api.NewHandler(memory.New(), clock, log)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func createTestLoan(t *testing.T, srv *httptest.Server, id string) {
	body := map[string]any{
		"loan_id":  id,
		"currency": "USD",
		"entries": []map[string]any{
			{"installment_id": 1, "due_date": "2026-03-10", "principal": "1000", "interest": "50"},
			{"installment_id": 2, "due_date": "2026-03-17", "principal": "1000", "interest": "50"},
		},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// LOAN SETUP
// =============================================================================

func TestAPI_CreateAndGetLoan(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/loans/loan-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto struct {
		LoanID   string `json:"loan_id"`
		Status   string `json:"status"`
		TotalDue string `json:"total_due"`
	}
	decode(t, resp, &dto)
	assert.Equal(t, "loan-1", dto.LoanID)
	assert.Equal(t, "active", dto.Status)
	assert.Equal(t, "2100", dto.TotalDue)
}

func TestAPI_CreateLoan_BadSchedule(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{
		"loan_id":  "loan-1",
		"currency": "USD",
		"entries":  []map[string]any{},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetLoan_NotFound(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/loans/nope", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestAPI_ApplyPayment_ReturnsReceipt(t *testing.T) {
	// GIVEN: A fresh loan
	// WHEN: Posting a 1080 payment
	// THEN: The receipt shows the split across both installments

	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/payments",
		map[string]any{"amount": "1080", "date": "2026-03-10", "type": "cash"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var receipt struct {
		PaymentID string `json:"payment_id"`
		Amount    string `json:"amount"`
		Lines     []struct {
			InstallmentID int    `json:"installment_id"`
			Interest      string `json:"interest"`
			Principal     string `json:"principal"`
		} `json:"lines"`
	}
	decode(t, resp, &receipt)
	assert.NotEmpty(t, receipt.PaymentID)
	assert.Equal(t, "1080", receipt.Amount)
	require.Len(t, receipt.Lines, 2)
	assert.Equal(t, "50", receipt.Lines[0].Interest)
	assert.Equal(t, "1000", receipt.Lines[0].Principal)
	assert.Equal(t, "30", receipt.Lines[1].Interest)
	assert.Equal(t, "0", receipt.Lines[1].Principal)
}

func TestAPI_ApplyPayment_ExcessRejected(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/payments",
		map[string]any{"amount": "99999"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Nothing was persisted.
	get := doJSON(t, http.MethodGet, srv.URL+"/api/loans/loan-1", nil)
	var dto struct {
		TotalDue       string `json:"total_due"`
		PaymentsPosted int    `json:"payments_posted"`
	}
	decode(t, get, &dto)
	assert.Equal(t, "2100", dto.TotalDue)
	assert.Equal(t, 0, dto.PaymentsPosted)
}

func TestAPI_AdjustLastPayment(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/payments",
		map[string]any{"amount": "500"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/payments/adjust", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	get := doJSON(t, http.MethodGet, srv.URL+"/api/loans/loan-1", nil)
	var dto struct {
		TotalDue       string `json:"total_due"`
		PaymentsPosted int    `json:"payments_posted"`
	}
	decode(t, get, &dto)
	assert.Equal(t, "2100", dto.TotalDue)
	assert.Equal(t, 0, dto.PaymentsPosted)
}

func TestAPI_AdjustLastPayment_NothingPosted(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/payments/adjust", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_EarlyRepay_ClosesLoan(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/repay",
		map[string]any{"mode": "pay_all"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Collected string `json:"collected"`
		Status    string `json:"status"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "2100", out.Collected)
	assert.Equal(t, "closed_obligations_met", out.Status)
}

func TestAPI_EarlyRepay_UnknownMode(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/repay",
		map[string]any{"mode": "pay_whatever"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// FEES, CHARGES, WAIVERS
// =============================================================================

func TestAPI_AttachAndRemoveFee(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/fees",
		map[string]any{"fee_id": "fee-1", "name": "processing", "amount": "10"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto struct {
		TotalDue string `json:"total_due"`
	}
	decode(t, resp, &dto)
	assert.Equal(t, "2120", dto.TotalDue)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/loans/loan-1/fees/fee-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var removed struct {
		Credited string `json:"credited"`
	}
	decode(t, resp, &removed)
	assert.Equal(t, "20", removed.Credited)
}

func TestAPI_RemoveFee_Unknown(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/loans/loan-1/fees/nope", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_MiscChargeAndWaiver(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/charges",
		map[string]any{"installment_id": 1, "kind": "misc_penalty", "amount": "15"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/waivers",
		map[string]any{"kind": "penalty"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Waived string `json:"waived"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "15", out.Waived)
}

func TestAPI_MiscCharge_BadKind(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/charges",
		map[string]any{"installment_id": 1, "kind": "surcharge", "amount": "15"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestAPI_Schedule_And_Overdue(t *testing.T) {
	// Clock is fixed at 2026-03-20, so both installments (due 10th and
	// 17th) are past due.

	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/loans/loan-1/schedule", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var installments []struct {
		InstallmentID int    `json:"installment_id"`
		DueDate       string `json:"due_date"`
		Status        string `json:"status"`
	}
	decode(t, resp, &installments)
	require.Len(t, installments, 2)
	assert.Equal(t, "2026-03-10", installments[0].DueDate)
	assert.Equal(t, "unpaid", installments[0].Status)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/loans/loan-1/overdue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var overdue struct {
		AsOf      string `json:"as_of"`
		Principal string `json:"principal"`
		Interest  string `json:"interest"`
		Total     string `json:"total"`
	}
	decode(t, resp, &overdue)
	assert.Equal(t, "2026-03-20", overdue.AsOf)
	assert.Equal(t, "2000", overdue.Principal)
	assert.Equal(t, "100", overdue.Interest)
	assert.Equal(t, "2100", overdue.Total)
}

func TestAPI_Receipts_ListPostedPayments(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/payments",
			map[string]any{"amount": fmt.Sprintf("%d", 100*(i+1))})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/loans/loan-1/receipts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var receipts []struct {
		Amount string `json:"amount"`
	}
	decode(t, resp, &receipts)
	require.Len(t, receipts, 2)
	assert.Equal(t, "100", receipts[0].Amount)
	assert.Equal(t, "200", receipts[1].Amount)
}

func TestAPI_Reschedule(t *testing.T) {
	srv := newTestServer(t)
	createTestLoan(t, srv, "loan-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/loans/loan-1/reschedule",
		map[string]any{"frequency": "weekly", "every": 1, "weekday": 4, "as_of": "2026-03-05"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var installments []struct {
		DueDate string `json:"due_date"`
	}
	decode(t, resp, &installments)
	require.Len(t, installments, 2)
	// Thursdays after March 5, 2026.
	assert.Equal(t, "2026-03-12", installments[0].DueDate)
	assert.Equal(t, "2026-03-19", installments[1].DueDate)
}
