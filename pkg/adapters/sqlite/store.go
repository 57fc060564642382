package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/ports"

	_ "modernc.org/sqlite"
)

// Store implements ports.MemoryStore on a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.MemoryStore = (*Store)(nil)

// New opens (or creates) the database at path and ensures the schema exists.
// Parent directories are created if needed. Use ":memory:" for a throwaway database.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "memory_store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("SQLite memory store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_memories_user_created
			ON memories(user_id, created_at);
	`)
	return err
}

// Save upserts m.
func (s *Store) Save(ctx context.Context, m domain.Memory) error {
	var tags *string
	if len(m.Tags) > 0 {
		b, err := json.Marshal(m.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags: %w", err)
		}
		str := string(b)
		tags = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (user_id, id, content, tags, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			content = excluded.content,
			tags = excluded.tags,
			created_at = excluded.created_at
	`, m.UserID, m.ID, m.Content, tags, m.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	return nil
}

// List returns the user's memories, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]domain.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, tags, created_at FROM memories
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []domain.Memory
	for rows.Next() {
		var (
			m       domain.Memory
			tags    sql.NullString
			created int64
		)
		if err := rows.Scan(&m.ID, &m.Content, &tags, &created); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &m.Tags); err != nil {
				return nil, fmt.Errorf("unmarshaling tags: %w", err)
			}
		}
		m.UserID = userID
		m.CreatedAt = time.Unix(0, created).UTC()
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Delete removes one memory.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ports.ErrMemoryNotFound
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
