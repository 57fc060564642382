package ports

import (
	"context"
	"errors"

	"github.com/aretw0/toolbox/pkg/domain"
)

// ErrMemoryNotFound is returned when a memory id does not exist for the user.
var ErrMemoryNotFound = errors.New("memory not found")

// MemoryStore persists notes on behalf of users.
// Implementations must keep users isolated from each other.
type MemoryStore interface {
	// Save stores m under m.UserID, replacing any memory with the same id.
	Save(ctx context.Context, m domain.Memory) error

	// List returns every memory of userID, newest first.
	List(ctx context.Context, userID string) ([]domain.Memory, error)

	// Delete removes one memory. Returns ErrMemoryNotFound if it does not exist.
	Delete(ctx context.Context, userID, id string) error
}
