package capabilities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/ports"
	"github.com/google/uuid"
)

const (
	defaultRecallLimit = 10
	maxRecallLimit     = 50
)

func requireUser(tc domain.ToolContext) error {
	if tc.UserID == "" {
		return domain.PermissionDenied("memory requires a user id in the tool context")
	}
	return nil
}

type rememberParams struct {
	Content string   `json:"content" jsonschema_description:"The fact or note to remember"`
	Tags    []string `json:"tags,omitempty" jsonschema_description:"Optional labels used to find the note later"`
}

// Remember stores a note for the calling user.
type Remember struct {
	meta
	store ports.MemoryStore
	now   func() time.Time
}

func NewRemember(store ports.MemoryStore) *Remember {
	return &Remember{
		meta: meta{
			name:        "remember",
			description: "Save a note about the user for future conversations.",
			schema:      schemaOf(&rememberParams{}),
		},
		store: store,
		now:   time.Now,
	}
}

func (c *Remember) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p rememberParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("content", p.Content); err != nil {
		return domain.Result{}, err
	}
	if err := requireUser(tc); err != nil {
		return domain.Result{}, err
	}
	content, err := SanitizeText(strings.TrimSpace(p.Content))
	if err != nil {
		return domain.Result{}, domain.InvalidParams("content: %w", err)
	}

	m := domain.Memory{
		ID:        uuid.NewString(),
		UserID:    tc.UserID,
		Content:   content,
		Tags:      normalizeTags(p.Tags),
		CreatedAt: c.now().UTC(),
	}
	if err := c.store.Save(ctx, m); err != nil {
		return domain.Result{}, domain.ExecutionFailed("saving memory: %w", err)
	}
	return domain.Success(fmt.Sprintf("Remembered (id: %s)", m.ID)), nil
}

func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(t, "#")))
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

type recallParams struct {
	Query string `json:"query,omitempty" jsonschema_description:"Text to look for in notes and tags (empty returns the latest notes)"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of notes (default 10 and at most 50)"`
}

// Recall lists the calling user's notes, newest first.
type Recall struct {
	meta
	store ports.MemoryStore
}

func NewRecall(store ports.MemoryStore) *Recall {
	return &Recall{
		meta: meta{
			name:        "recall",
			description: "Look up notes previously saved with remember.",
			schema:      schemaOf(&recallParams{}),
		},
		store: store,
	}
}

func (c *Recall) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p recallParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := requireUser(tc); err != nil {
		return domain.Result{}, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultRecallLimit
	}
	limit = min(limit, maxRecallLimit)

	memories, err := c.store.List(ctx, tc.UserID)
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("listing memories: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(p.Query))
	var b strings.Builder
	found := 0
	for _, m := range memories {
		if query != "" && !matchesMemory(m, query) {
			continue
		}
		if found == limit {
			break
		}
		found++
		fmt.Fprintf(&b, "- [%s] %s (id: %s)", m.CreatedAt.Format(time.DateOnly), m.Content, m.ID)
		for _, tag := range m.Tags {
			b.WriteString(" #" + tag)
		}
		b.WriteString("\n")
	}

	if found == 0 {
		if query == "" {
			return domain.Failure("No memories saved yet"), nil
		}
		return domain.Failure("No memories match %q", p.Query), nil
	}
	return domain.Success(strings.TrimRight(b.String(), "\n")), nil
}

func matchesMemory(m domain.Memory, query string) bool {
	if strings.Contains(strings.ToLower(m.Content), query) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(tag, strings.TrimPrefix(query, "#")) {
			return true
		}
	}
	return false
}

type forgetParams struct {
	ID string `json:"id" jsonschema_description:"Id of the note to delete, as shown by recall"`
}

// Forget deletes one of the calling user's notes.
type Forget struct {
	meta
	store ports.MemoryStore
}

func NewForget(store ports.MemoryStore) *Forget {
	return &Forget{
		meta: meta{
			name:        "forget",
			description: "Delete a note previously saved with remember.",
			schema:      schemaOf(&forgetParams{}),
		},
		store: store,
	}
}

func (c *Forget) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p forgetParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("id", p.ID); err != nil {
		return domain.Result{}, err
	}
	if err := requireUser(tc); err != nil {
		return domain.Result{}, err
	}

	if err := c.store.Delete(ctx, tc.UserID, p.ID); err != nil {
		if errors.Is(err, ports.ErrMemoryNotFound) {
			return domain.Failure("No memory with id %s", p.ID), nil
		}
		return domain.Result{}, domain.ExecutionFailed("deleting memory: %w", err)
	}
	return domain.Success("Forgot " + p.ID), nil
}
