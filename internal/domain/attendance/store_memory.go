package attendance

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process. It backs STORE_BACKEND=memory and
// handler tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

func (s *MemoryStore) ListForDay(_ context.Context, day string) ([]Record, error) {
	return s.filter(func(r Record) bool { return r.Date == day }), nil
}

func (s *MemoryStore) ListForStaff(_ context.Context, staffID, from, to string) ([]Record, error) {
	return s.filter(func(r Record) bool {
		return r.StaffID == staffID && r.Date >= from && r.Date <= to
	}), nil
}

func (s *MemoryStore) ListRange(_ context.Context, from, to string) ([]Record, error) {
	return s.filter(func(r Record) bool { return r.Date >= from && r.Date <= to }), nil
}

func (s *MemoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := find(s.records, rec.StaffID, rec.Date); ok {
		return ErrAlreadyCheckedIn
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) CheckOut(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID != rec.ID {
			continue
		}
		if s.records[i].CheckedOut() {
			return ErrAlreadyCheckedOut
		}
		s.records[i] = rec
		return nil
	}
	return ErrRecordNotFound
}

func (s *MemoryStore) filter(keep func(Record) bool) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StaffName < out[j].StaffName
	})
	return out
}
