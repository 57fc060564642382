package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/toolbox/internal/fsutil"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/keylock"
	"github.com/aretw0/toolbox/pkg/ports"
	"github.com/aretw0/toolbox/pkg/sandbox"
)

// Store implements ports.MemoryStore using the local filesystem.
// Each user's memories live in one JSON file, rewritten atomically on every change.
type Store struct {
	BasePath string
	locks    *keylock.Map
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".toolbox/memory".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".toolbox", "memory")
	}
	return &Store{BasePath: basePath, locks: keylock.New()}
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.BasePath, sandbox.SanitizeName(userID)+".json")
}

func (s *Store) load(userID string) ([]domain.Memory, error) {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read memory file: %w", err)
	}

	var memories []domain.Memory
	if err := json.Unmarshal(data, &memories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memories: %w", err)
	}
	return memories, nil
}

func (s *Store) write(userID string, memories []domain.Memory) error {
	if len(memories) == 0 {
		err := os.Remove(s.path(userID))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete memory file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(memories, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memories: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path(userID), data, 0o600)
}

// Save persists m, replacing any memory with the same id.
func (s *Store) Save(ctx context.Context, m domain.Memory) error {
	if m.UserID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	return s.locks.WithLock(ctx, m.UserID, func(ctx context.Context) error {
		memories, err := s.load(m.UserID)
		if err != nil {
			return err
		}
		replaced := false
		for i := range memories {
			if memories[i].ID == m.ID {
				memories[i] = m
				replaced = true
			}
		}
		if !replaced {
			memories = append(memories, m)
		}
		return s.write(m.UserID, memories)
	})
}

// List returns the user's memories, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]domain.Memory, error) {
	var memories []domain.Memory
	err := s.locks.WithLock(ctx, userID, func(ctx context.Context) error {
		var err error
		memories, err = s.load(userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	return memories, nil
}

// Delete removes one memory.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	return s.locks.WithLock(ctx, userID, func(ctx context.Context) error {
		memories, err := s.load(userID)
		if err != nil {
			return err
		}
		for i := range memories {
			if memories[i].ID == id {
				return s.write(userID, append(memories[:i], memories[i+1:]...))
			}
		}
		return ports.ErrMemoryNotFound
	})
}
