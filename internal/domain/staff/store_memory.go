package staff

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryStore(seed ...Profile) *MemoryStore {
	s := &MemoryStore{profiles: map[string]Profile{}}
	for _, p := range seed {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrStaffNotFound
	}
	return p, nil
}

func (s *MemoryStore) GetByUserID(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if userID != "" && p.UserID == userID {
			return p, nil
		}
	}
	return Profile{}, ErrStaffNotFound
}

func (s *MemoryStore) List(_ context.Context, activeOnly bool) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}
