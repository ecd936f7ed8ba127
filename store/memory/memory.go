// Package memory provides an in-memory loan.Store (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps schedules as snapshots, so a stored loan cannot be mutated
// through a previously returned pointer. Every Get rebuilds a fresh graph.
type Store struct {
	mu    sync.RWMutex
	loans map[loan.LoanID]loan.ScheduleState
}

func New() *Store {
	return &Store{loans: make(map[loan.LoanID]loan.ScheduleState)}
}

// SaveLoan stores the full schedule graph. The snapshot is the atomic
// unit: the map entry is replaced wholesale.
func (m *Store) SaveLoan(_ context.Context, s *loan.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[s.LoanID()] = s.Snapshot()
	return nil
}

func (m *Store) GetLoan(_ context.Context, id loan.LoanID) (*loan.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, loan.ErrLoanNotFound)
	}
	return loan.RestoreSchedule(state)
}

func (m *Store) ListLoans(_ context.Context) ([]*loan.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(loan.ScheduleState) bool { return true })
}

func (m *Store) ListActiveLoans(_ context.Context) ([]*loan.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(state loan.ScheduleState) bool {
		return state.Status == loan.LoanActive
	})
}

func (m *Store) listLocked(keep func(loan.ScheduleState) bool) ([]*loan.Schedule, error) {
	ids := make([]loan.LoanID, 0, len(m.loans))
	for id := range m.loans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*loan.Schedule
	for _, id := range ids {
		state := m.loans[id]
		if !keep(state) {
			continue
		}
		s, err := loan.RestoreSchedule(state)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
