package capabilities

import (
	"log/slog"
	"net/http"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/ports"
	"github.com/aretw0/toolbox/pkg/registry"
)

type config struct {
	memory ports.MemoryStore
	client *http.Client
	logger *slog.Logger
}

// Option configures the built-in set.
type Option func(*config)

// WithMemoryStore enables remember, recall and forget on top of store.
func WithMemoryStore(store ports.MemoryStore) Option {
	return func(c *config) {
		c.memory = store
	}
}

// WithHTTPClient overrides the client used by web_fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.client = client
	}
}

// WithLogger sets the logger handed to capabilities that log.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Builtins constructs every built-in capability.
// Memory capabilities are only included when a store is configured.
func Builtins(opts ...Option) []registry.Capability {
	cfg := &config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	caps := []registry.Capability{
		NewShell(cfg.logger),
		NewFileRead(),
		NewFileWrite(),
		NewFileEdit(),
		NewFileDelete(),
		NewFileList(),
		NewGlobSearch(),
		NewGrepSearch(),
		NewWebFetch(cfg.client, cfg.logger),
	}
	if cfg.memory != nil {
		caps = append(caps, NewRemember(cfg.memory), NewRecall(cfg.memory), NewForget(cfg.memory))
	}
	return caps
}

// Register adds the built-in capabilities to reg.
func Register(reg *registry.Registry, opts ...Option) {
	for _, c := range Builtins(opts...) {
		reg.Register(c)
	}
}
