package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps ledger entries in insertion order.
type MemoryStore struct {
	mu       sync.Mutex
	expenses []ExpenseRecord
	advances []AdvanceLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ListExpenses(_ context.Context, staffID string) ([]ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ExpenseRecord
	for _, rec := range s.expenses {
		if staffID == "" || rec.StaffID == staffID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetExpense(_ context.Context, id string) (ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.expenses {
		if rec.ID == id {
			return rec, nil
		}
	}
	return ExpenseRecord{}, ErrExpenseNotFound
}

func (s *MemoryStore) SaveExpense(_ context.Context, rec ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.expenses {
		if s.expenses[i].ID == rec.ID {
			s.expenses[i] = rec
			return nil
		}
	}
	s.expenses = append(s.expenses, rec)
	return nil
}

func (s *MemoryStore) ListAdvances(_ context.Context, staffID string) ([]AdvanceLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AdvanceLogEntry
	for _, entry := range s.advances {
		if staffID == "" || entry.StaffID == staffID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetAdvance(_ context.Context, id string) (AdvanceLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.advances {
		if entry.ID == id {
			return entry, nil
		}
	}
	return AdvanceLogEntry{}, ErrAdvanceNotFound
}

func (s *MemoryStore) SaveAdvance(_ context.Context, entry AdvanceLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.advances {
		if s.advances[i].ID == entry.ID {
			s.advances[i] = entry
			return nil
		}
	}
	s.advances = append(s.advances, entry)
	return nil
}
