/*
Package sqlite provides a SQLite-backed implementation of loan.Store.

PURPOSE:
  Persists the full loan schedule graph - loans, installments, attached
  fee charges, payment records with their allocation breakdowns. The same
  patterns apply to PostgreSQL; only minor SQL dialect differences.

ATOMICITY:
  SaveLoan runs inside a single database transaction: the previous graph
  for the loan is deleted and the new one inserted, so a reader never sees
  a half-updated schedule. This is the all-or-nothing commit the engine's
  due-amount invariant requires.

DECIMALS:
  All monetary amounts are stored as TEXT and reparsed through the money
  package, preserving arbitrary precision. Never store money as REAL.

KEY TABLES:
  loans:             One row per loan (currency, status)
  installments:      One row per installment, all accumulators
  installment_fees:  Fee charges; position column preserves attachment order
  payments:          Posted payments, allocation breakdown as JSON

WAL MODE:
  SQLite is opened with WAL for better read concurrency; a sync.RWMutex
  additionally serializes writes from this process.

USAGE:
  store, err := sqlite.New("./data/loans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - loan/store.go: Interface definition and atomicity contract
  - loan/snapshot.go: The state mapped onto these tables
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/money"
)

// Store implements loan.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		currency TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS installments (
		loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		id INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest TEXT NOT NULL,
		extra_interest TEXT NOT NULL,
		penalty TEXT NOT NULL,
		misc_fee TEXT NOT NULL,
		misc_penalty TEXT NOT NULL,
		principal_paid TEXT NOT NULL,
		interest_paid TEXT NOT NULL,
		extra_interest_paid TEXT NOT NULL,
		penalty_paid TEXT NOT NULL,
		misc_fee_paid TEXT NOT NULL,
		misc_penalty_paid TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_date TEXT,
		PRIMARY KEY (loan_id, id)
	);

	-- position preserves fee attachment order: it is the waterfall
	-- tie-break order among fees.
	CREATE TABLE IF NOT EXISTS installment_fees (
		loan_id TEXT NOT NULL,
		installment_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		fee_id TEXT NOT NULL,
		name TEXT NOT NULL,
		scheduled TEXT NOT NULL,
		paid TEXT NOT NULL,
		PRIMARY KEY (loan_id, installment_id, position),
		FOREIGN KEY (loan_id, installment_id)
			REFERENCES installments(loan_id, id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS payments (
		loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		payment_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		allocations_json TEXT NOT NULL,
		PRIMARY KEY (loan_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_due_date
		ON installments(loan_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_loans_status
		ON loans(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ALLOCATION JSON - Per-payment breakdown, stored as a document
// =============================================================================

type allocationDoc struct {
	InstallmentID int      `json:"installment_id"`
	MiscPenalty   string   `json:"misc_penalty"`
	Penalty       string   `json:"penalty"`
	MiscFee       string   `json:"misc_fee"`
	Interest      string   `json:"interest"`
	ExtraInterest string   `json:"extra_interest"`
	Principal     string   `json:"principal"`
	FeeIDs        []string `json:"fee_ids,omitempty"`
	FeeAmounts    []string `json:"fee_amounts,omitempty"`
}

func encodeAllocations(allocations []loan.AllocationState) (string, error) {
	docs := make([]allocationDoc, 0, len(allocations))
	for _, a := range allocations {
		doc := allocationDoc{
			InstallmentID: int(a.InstallmentID),
			MiscPenalty:   a.MiscPenalty.Value.String(),
			Penalty:       a.Penalty.Value.String(),
			MiscFee:       a.MiscFee.Value.String(),
			Interest:      a.Interest.Value.String(),
			ExtraInterest: a.ExtraInterest.Value.String(),
			Principal:     a.Principal.Value.String(),
		}
		for i, feeID := range a.FeeIDs {
			doc.FeeIDs = append(doc.FeeIDs, string(feeID))
			doc.FeeAmounts = append(doc.FeeAmounts, a.FeeAmounts[i].Value.String())
		}
		docs = append(docs, doc)
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeAllocations(raw string, currency money.Currency) ([]loan.AllocationState, error) {
	var docs []allocationDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, err
	}

	var out []loan.AllocationState
	for _, doc := range docs {
		a := loan.AllocationState{InstallmentID: loan.InstallmentID(doc.InstallmentID)}
		var err error
		if a.MiscPenalty, err = money.FromString(doc.MiscPenalty, currency); err != nil {
			return nil, err
		}
		if a.Penalty, err = money.FromString(doc.Penalty, currency); err != nil {
			return nil, err
		}
		if a.MiscFee, err = money.FromString(doc.MiscFee, currency); err != nil {
			return nil, err
		}
		if a.Interest, err = money.FromString(doc.Interest, currency); err != nil {
			return nil, err
		}
		if a.ExtraInterest, err = money.FromString(doc.ExtraInterest, currency); err != nil {
			return nil, err
		}
		if a.Principal, err = money.FromString(doc.Principal, currency); err != nil {
			return nil, err
		}
		for i, feeID := range doc.FeeIDs {
			amount, err := money.FromString(doc.FeeAmounts[i], currency)
			if err != nil {
				return nil, err
			}
			a.FeeIDs = append(a.FeeIDs, loan.FeeID(feeID))
			a.FeeAmounts = append(a.FeeAmounts, amount)
		}
		out = append(out, a)
	}
	return out, nil
}

// =============================================================================
// SAVE - Whole graph in one transaction
// =============================================================================

func (s *Store) SaveLoan(ctx context.Context, sched *loan.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := sched.Snapshot()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Replace the previous graph wholesale; child rows cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, string(state.LoanID)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO loans (id, currency, status) VALUES (?, ?, ?)`,
		string(state.LoanID), string(state.Currency), string(state.Status)); err != nil {
		return err
	}

	for _, inst := range state.Installments {
		var paymentDate any
		if inst.PaymentDate != nil {
			paymentDate = inst.PaymentDate.Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO installments (
				loan_id, id, due_date,
				principal, interest, extra_interest, penalty, misc_fee, misc_penalty,
				principal_paid, interest_paid, extra_interest_paid,
				penalty_paid, misc_fee_paid, misc_penalty_paid,
				status, payment_date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(state.LoanID), int(inst.ID), inst.DueDate.Format(time.RFC3339),
			inst.Principal.Value.String(), inst.Interest.Value.String(),
			inst.ExtraInterest.Value.String(), inst.Penalty.Value.String(),
			inst.MiscFee.Value.String(), inst.MiscPenalty.Value.String(),
			inst.PrincipalPaid.Value.String(), inst.InterestPaid.Value.String(),
			inst.ExtraInterestPaid.Value.String(), inst.PenaltyPaid.Value.String(),
			inst.MiscFeePaid.Value.String(), inst.MiscPenaltyPaid.Value.String(),
			string(inst.Status), paymentDate); err != nil {
			return err
		}

		for pos, fee := range inst.Fees {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO installment_fees (
					loan_id, installment_id, position, fee_id, name, scheduled, paid
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				string(state.LoanID), int(inst.ID), pos,
				string(fee.FeeID), fee.Name,
				fee.Scheduled.Value.String(), fee.Paid.Value.String()); err != nil {
				return err
			}
		}
	}

	for pos, p := range state.Payments {
		allocJSON, err := encodeAllocations(p.Allocations)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (
				loan_id, position, payment_id, amount, paid_at, payment_type, allocations_json
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(state.LoanID), pos, string(p.PaymentID),
			p.Amount.Value.String(), p.Date.Format(time.RFC3339),
			string(p.Type), allocJSON); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// =============================================================================
// LOAD
// =============================================================================

func (s *Store) GetLoan(ctx context.Context, id loan.LoanID) (*loan.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLoan(ctx, id)
}

func (s *Store) loadLoan(ctx context.Context, id loan.LoanID) (*loan.Schedule, error) {
	var currency, status string
	err := s.db.QueryRowContext(ctx,
		`SELECT currency, status FROM loans WHERE id = ?`, string(id)).
		Scan(&currency, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan %s: %w", id, loan.ErrLoanNotFound)
	}
	if err != nil {
		return nil, err
	}

	state := loan.ScheduleState{
		LoanID:   id,
		Currency: money.Currency(currency),
		Status:   loan.LoanStatus(status),
	}

	if state.Installments, err = s.loadInstallments(ctx, id, state.Currency); err != nil {
		return nil, err
	}
	if state.Payments, err = s.loadPayments(ctx, id, state.Currency); err != nil {
		return nil, err
	}

	return loan.RestoreSchedule(state)
}

func (s *Store) loadInstallments(ctx context.Context, id loan.LoanID, currency money.Currency) ([]loan.InstallmentState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, due_date,
			principal, interest, extra_interest, penalty, misc_fee, misc_penalty,
			principal_paid, interest_paid, extra_interest_paid,
			penalty_paid, misc_fee_paid, misc_penalty_paid,
			status, payment_date
		FROM installments WHERE loan_id = ? ORDER BY id ASC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []loan.InstallmentState
	for rows.Next() {
		var (
			instID          int
			dueDate, status string
			paymentDate     sql.NullString
			amounts         [12]string
		)
		if err := rows.Scan(&instID, &dueDate,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5],
			&amounts[6], &amounts[7], &amounts[8], &amounts[9], &amounts[10], &amounts[11],
			&status, &paymentDate); err != nil {
			return nil, err
		}

		is := loan.InstallmentState{
			ID:     loan.InstallmentID(instID),
			Status: loan.PaymentStatus(status),
		}
		if is.DueDate, err = time.Parse(time.RFC3339, dueDate); err != nil {
			return nil, err
		}
		if paymentDate.Valid {
			d, err := time.Parse(time.RFC3339, paymentDate.String)
			if err != nil {
				return nil, err
			}
			is.PaymentDate = &d
		}

		dst := []*money.Money{
			&is.Principal, &is.Interest, &is.ExtraInterest, &is.Penalty,
			&is.MiscFee, &is.MiscPenalty,
			&is.PrincipalPaid, &is.InterestPaid, &is.ExtraInterestPaid,
			&is.PenaltyPaid, &is.MiscFeePaid, &is.MiscPenaltyPaid,
		}
		for i, d := range dst {
			if *d, err = money.FromString(amounts[i], currency); err != nil {
				return nil, err
			}
		}

		if is.Fees, err = s.loadFees(ctx, id, is.ID, currency); err != nil {
			return nil, err
		}
		out = append(out, is)
	}
	return out, rows.Err()
}

func (s *Store) loadFees(ctx context.Context, id loan.LoanID, instID loan.InstallmentID, currency money.Currency) ([]loan.FeeState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fee_id, name, scheduled, paid
		FROM installment_fees
		WHERE loan_id = ? AND installment_id = ?
		ORDER BY position ASC`, string(id), int(instID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []loan.FeeState
	for rows.Next() {
		var feeID, name, scheduled, paid string
		if err := rows.Scan(&feeID, &name, &scheduled, &paid); err != nil {
			return nil, err
		}
		fs := loan.FeeState{FeeID: loan.FeeID(feeID), Name: name}
		if fs.Scheduled, err = money.FromString(scheduled, currency); err != nil {
			return nil, err
		}
		if fs.Paid, err = money.FromString(paid, currency); err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func (s *Store) loadPayments(ctx context.Context, id loan.LoanID, currency money.Currency) ([]loan.PaymentState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, amount, paid_at, payment_type, allocations_json
		FROM payments WHERE loan_id = ? ORDER BY position ASC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []loan.PaymentState
	for rows.Next() {
		var paymentID, amount, paidAt, paymentType, allocJSON string
		if err := rows.Scan(&paymentID, &amount, &paidAt, &paymentType, &allocJSON); err != nil {
			return nil, err
		}
		ps := loan.PaymentState{
			PaymentID: loan.PaymentID(paymentID),
			Type:      loan.PaymentType(paymentType),
		}
		if ps.Amount, err = money.FromString(amount, currency); err != nil {
			return nil, err
		}
		if ps.Date, err = time.Parse(time.RFC3339, paidAt); err != nil {
			return nil, err
		}
		if ps.Allocations, err = decodeAllocations(allocJSON, currency); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// =============================================================================
// LISTS
// =============================================================================

func (s *Store) ListLoans(ctx context.Context) ([]*loan.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(ctx, `SELECT id FROM loans ORDER BY id ASC`)
}

func (s *Store) ListActiveLoans(ctx context.Context) ([]*loan.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(ctx, `SELECT id FROM loans WHERE status = 'active' ORDER BY id ASC`)
}

func (s *Store) list(ctx context.Context, query string) ([]*loan.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []loan.LoanID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, loan.LoanID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*loan.Schedule
	for _, id := range ids {
		sched, err := s.loadLoan(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, nil
}
