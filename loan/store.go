/*
store.go - Persistence interface for loan schedules

PURPOSE:
  Defines the contract between the engine and the database. The engine
  mutates an in-memory schedule; the store persists the whole mutated
  graph - installments, fee charges, payment records - as one unit.

ATOMICITY CONTRACT:
  SaveLoan is all-or-nothing. A partial write (principal updated but
  interest not) would violate the due-amount invariant, so implementations
  must commit the full graph in a single transaction.

SERIALIZATION CONTRACT:
  The enclosing system must serialize payment application per loan: at
  most one in-flight mutation per account. The engine itself is not safe
  to run concurrently on the same schedule.

IMPLEMENTATIONS:
  - store/memory: In-memory, for tests and development
  - store/sqlite: Production SQLite

SEE ALSO:
  - snapshot.go: The state exchanged with stores
*/
package loan

import "context"

// Store persists loan schedules.
type Store interface {
	// SaveLoan persists the full schedule graph atomically, replacing any
	// previously stored state for the same loan id.
	SaveLoan(ctx context.Context, s *Schedule) error

	// GetLoan loads a schedule. Returns ErrLoanNotFound for unknown ids.
	GetLoan(ctx context.Context, id LoanID) (*Schedule, error)

	// ListLoans returns every stored schedule, ordered by loan id.
	ListLoans(ctx context.Context) ([]*Schedule, error)

	// ListActiveLoans returns schedules that are not terminally closed.
	ListActiveLoans(ctx context.Context) ([]*Schedule, error)
}
