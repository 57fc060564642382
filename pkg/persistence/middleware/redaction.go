package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/ports"
)

// Mask replaces every redacted span.
const Mask = "***"

// DefaultSecretPatterns match credentials that should never be kept in memory.
var DefaultSecretPatterns = []string{
	`AKIA[0-9A-Z]{16}`,
	`\b(?:sk|pk|rk)-[A-Za-z0-9_-]{16,}`,
	`\bgh[pousr]_[A-Za-z0-9]{20,}`,
	`\bxox[abprs]-[A-Za-z0-9-]{10,}`,
	`(?i)\b(?:password|passwd|secret|api[_-]?key|token)\s*[:=]\s*\S+`,
}

type redactionMiddleware struct {
	next     ports.MemoryStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks text matching any pattern
// before a memory is stored. Tags are masked too.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.MemoryStore) ports.MemoryStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, mem domain.Memory) error {
	cloned := mem
	cloned.Content = m.mask(mem.Content)
	if mem.Tags != nil {
		cloned.Tags = make([]string, len(mem.Tags))
		for i, tag := range mem.Tags {
			cloned.Tags[i] = m.mask(tag)
		}
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactionMiddleware) List(ctx context.Context, userID string) ([]domain.Memory, error) {
	return m.next.List(ctx, userID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, userID, id string) error {
	return m.next.Delete(ctx, userID, id)
}

func (m *redactionMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
