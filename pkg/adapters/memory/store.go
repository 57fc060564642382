package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/ports"
)

// Store implements ports.MemoryStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[string]domain.Memory
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]domain.Memory),
	}
}

func clone(m domain.Memory) domain.Memory {
	if m.Tags != nil {
		m.Tags = append([]string(nil), m.Tags...)
	}
	return m
}

// Save stores a copy of m.
func (s *Store) Save(ctx context.Context, m domain.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data[m.UserID]
	if !ok {
		user = make(map[string]domain.Memory)
		s.data[m.UserID] = user
	}
	user[m.ID] = clone(m)
	return nil
}

// List returns copies so the caller cannot mutate the store.
func (s *Store) List(ctx context.Context, userID string) ([]domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := s.data[userID]
	out := make([]domain.Memory, 0, len(user))
	for _, m := range user {
		out = append(out, clone(m))
	}
	sortNewestFirst(out)
	return out, nil
}

// Delete removes one memory.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data[userID]
	if !ok {
		return ports.ErrMemoryNotFound
	}
	if _, ok := user[id]; !ok {
		return ports.ErrMemoryNotFound
	}
	delete(user, id)
	if len(user) == 0 {
		delete(s.data, userID)
	}
	return nil
}

func sortNewestFirst(ms []domain.Memory) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID > ms[j].ID
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}
