package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.MemoryStore using Redis.
// Each user is one hash keyed by memory id, holding the JSON encoded memory.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL expires a user's memories after ttl of inactivity.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromURL creates a store from a redis:// or rediss:// URL.
func NewFromURL(url string, opts ...Option) (*Store, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(o), opts...), nil
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "toolbox:memory:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(userID string) string {
	return s.prefix + userID
}

// Save persists m in the user's hash.
func (s *Store) Save(ctx context.Context, m domain.Memory) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(m.UserID), m.ID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(m.UserID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// List returns the user's memories, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]domain.Memory, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}

	memories := make([]domain.Memory, 0, len(values))
	for id, raw := range values {
		var m domain.Memory
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory %s: %w", id, err)
		}
		memories = append(memories, m)
	}
	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].CreatedAt.Equal(memories[j].CreatedAt) {
			return memories[i].ID > memories[j].ID
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	return memories, nil
}

// Delete removes one memory.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	removed, err := s.client.HDel(ctx, s.key(userID), id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	if removed == 0 {
		return ports.ErrMemoryNotFound
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
