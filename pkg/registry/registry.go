// Package registry holds the name-keyed table of capabilities and dispatches calls to them.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/google/uuid"
)

// Capability is a named, described, schema-declaring unit of work.
// Built-in capabilities and adapters for external servers both implement it.
type Capability interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the parameters object.
	Schema() map[string]any
	// Execute runs the capability. A returned error is a protocol error;
	// operational failures are reported through Result.IsError.
	Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error)
}

// Recorder observes completed dispatches.
type Recorder interface {
	ObserveDispatch(name, outcome string, elapsed time.Duration)
}

// Definition builds the model-facing definition of c.
func Definition(c Capability) domain.Definition {
	return domain.Definition{
		Name:        c.Name(),
		Description: c.Description(),
		Parameters:  c.Schema(),
	}
}

// Registry is a concurrency-safe table of capabilities.
// Registering a name that already exists replaces the previous capability.
type Registry struct {
	mu          sync.RWMutex
	caps        map[string]Capability
	interceptor Interceptor
	recorder    Recorder
	logger      *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for dispatch events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithInterceptor installs a gate that runs before every dispatch.
func WithInterceptor(i Interceptor) Option {
	return func(r *Registry) {
		r.interceptor = i
	}
}

// WithRecorder installs a dispatch observer (e.g. prometheus metrics).
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		caps:   make(map[string]Capability),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds c, overwriting any capability registered under the same name.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[c.Name()]; exists {
		r.logger.Debug("Capability replaced", "tool", c.Name())
	}
	r.caps[c.Name()] = c
}

// Unregister removes the named capabilities and reports how many were present.
func (r *Registry) Unregister(names ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for _, name := range names {
		if _, ok := r.caps[name]; ok {
			delete(r.caps, name)
			removed++
		}
	}
	return removed
}

// ReplacePrefix removes every capability whose name starts with prefix and registers caps,
// as one step. Readers never observe a mix of old and new entries.
func (r *Registry) ReplacePrefix(prefix string, caps []Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.caps {
		if strings.HasPrefix(name, prefix) {
			delete(r.caps, name)
		}
	}
	for _, c := range caps {
		r.caps[c.Name()] = c
	}
}

// Get looks up a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Definitions returns the definitions advertised to the model, sorted by name.
func (r *Registry) Definitions() []domain.Definition {
	r.mu.RLock()
	defs := make([]domain.Definition, 0, len(r.caps))
	for _, c := range r.caps {
		defs = append(defs, Definition(c))
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dispatch resolves name and executes it with params under tc.
// It fails with a not-found error for unknown names; any other error is the capability's own.
// Nothing is retried here.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	start := time.Now()
	if params == nil {
		params = map[string]any{}
	}

	c, ok := r.Get(name)
	if !ok {
		err := domain.NotFound(name)
		r.observe(name, start, domain.Result{}, err)
		return domain.Result{}, err
	}

	if r.interceptor != nil {
		call := Call{ID: uuid.NewString(), Name: name, Params: params, Context: tc}
		allowed, denied, err := r.interceptor(ctx, call)
		if err != nil {
			err = domain.ExecutionFailed("confirmation for %s: %w", name, err)
			r.observe(name, start, domain.Result{}, err)
			return domain.Result{}, err
		}
		if !allowed {
			r.logger.Info("Capability call denied", "tool", name, "user_id", tc.UserID)
			r.record(name, "denied", time.Since(start))
			return denied, nil
		}
	}

	res, err := c.Execute(ctx, params, tc)
	r.observe(name, start, res, err)
	return res, err
}

func (r *Registry) observe(name string, start time.Time, res domain.Result, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		if kind, ok := domain.KindOf(err); ok {
			outcome = kind.String()
		}
		r.logger.Warn("Capability call failed", "tool", name, "outcome", outcome, "duration", elapsed, "err", err)
	case res.IsError:
		outcome = "domain_error"
		r.logger.Debug("Capability reported failure", "tool", name, "duration", elapsed)
	default:
		r.logger.Debug("Capability call completed", "tool", name, "duration", elapsed)
	}
	r.record(name, outcome, elapsed)
}

func (r *Registry) record(name, outcome string, elapsed time.Duration) {
	if r.recorder != nil {
		r.recorder.ObserveDispatch(name, outcome, elapsed)
	}
}
