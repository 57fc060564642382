package toolbox

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/capabilities"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/mcpclient"
	"github.com/aretw0/toolbox/pkg/observability"
	"github.com/aretw0/toolbox/pkg/ports"
	"github.com/aretw0/toolbox/pkg/registry"
)

const (
	// EnvOutputRoot overrides the default output root.
	EnvOutputRoot = "TOOLBOX_OUTPUT_ROOT"

	// DefaultOutputRoot is used when neither an option nor EnvOutputRoot sets one.
	DefaultOutputRoot = "toolbox-output"
)

// ServerInfo summarizes one declared external server.
type ServerInfo struct {
	Name        string
	Description string
	Enabled     bool
	Connected   bool
	Tools       int
}

// Toolbox is the high-level entry point of the library. It owns the capability
// registry, the built-in capabilities and, when configured, the external server client.
type Toolbox struct {
	registry   *registry.Registry
	config     *mcpclient.Config
	client     *mcpclient.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
	outputRoot string

	memory      ports.MemoryStore
	extra       []registry.Capability
	httpClient  *http.Client
	dialer      mcpclient.Dialer
	interceptor registry.Interceptor
	watch       bool

	mu        sync.Mutex
	listeners []func()
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option defines a functional option for configuring the Toolbox.
type Option func(*Toolbox)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Toolbox) {
		t.logger = logger
	}
}

// WithOutputRoot sets the directory every sandboxed output tree lives under.
func WithOutputRoot(root string) Option {
	return func(t *Toolbox) {
		t.outputRoot = root
	}
}

// WithMemoryStore enables the remember, recall and forget capabilities.
func WithMemoryStore(store ports.MemoryStore) Option {
	return func(t *Toolbox) {
		t.memory = store
	}
}

// WithHTTPClient sets the client used by web_fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Toolbox) {
		t.httpClient = client
	}
}

// WithCapabilities registers additional capabilities next to the built-ins.
// A capability named like a built-in replaces it.
func WithCapabilities(caps ...registry.Capability) Option {
	return func(t *Toolbox) {
		t.extra = append(t.extra, caps...)
	}
}

// WithServerConfig enables external capabilities declared in config.
func WithServerConfig(config *mcpclient.Config) Option {
	return func(t *Toolbox) {
		t.config = config
	}
}

// WithDialer replaces the stdio dialer used to reach external servers.
func WithDialer(dial mcpclient.Dialer) Option {
	return func(t *Toolbox) {
		t.dialer = dial
	}
}

// WithMetrics records dispatches and pool state in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Toolbox) {
		t.metrics = m
	}
}

// WithInterceptor installs dispatch middleware, e.g. a confirmation gate.
func WithInterceptor(i registry.Interceptor) Option {
	return func(t *Toolbox) {
		t.interceptor = i
	}
}

// WithWatch makes Start follow changes of the server configuration file.
func WithWatch(enabled bool) Option {
	return func(t *Toolbox) {
		t.watch = enabled
	}
}

// New builds a Toolbox with every built-in capability registered.
// External capabilities appear after Start.
func New(opts ...Option) *Toolbox {
	t := &Toolbox{}
	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	if t.outputRoot == "" {
		t.outputRoot = os.Getenv(EnvOutputRoot)
	}
	if t.outputRoot == "" {
		t.outputRoot = DefaultOutputRoot
	}

	regOpts := []registry.Option{registry.WithLogger(t.logger)}
	if t.interceptor != nil {
		regOpts = append(regOpts, registry.WithInterceptor(t.interceptor))
	}
	if t.metrics != nil {
		regOpts = append(regOpts, registry.WithRecorder(t.metrics))
	}
	t.registry = registry.New(regOpts...)

	capOpts := []capabilities.Option{capabilities.WithLogger(t.logger)}
	if t.memory != nil {
		capOpts = append(capOpts, capabilities.WithMemoryStore(t.memory))
	}
	if t.httpClient != nil {
		capOpts = append(capOpts, capabilities.WithHTTPClient(t.httpClient))
	}
	capabilities.Register(t.registry, capOpts...)
	for _, c := range t.extra {
		t.registry.Register(c)
	}

	if t.config != nil {
		if t.dialer == nil {
			t.dialer = mcpclient.StdioDialer
		}
		pool := mcpclient.NewPoolFor(t.config, t.dialer, mcpclient.WithPoolLogger(t.logger))
		t.client = mcpclient.NewClient(t.config, pool, mcpclient.WithClientLogger(t.logger))
		if t.metrics != nil {
			t.metrics.TrackPool(pool)
		}
	}
	return t
}

// Start discovers the tools of every enabled external server and registers them.
// Servers that fail discovery are reported in the returned error but do not stop the
// others. Background work (idle eviction, config watching) runs until Close.
// Only the first call starts anything; later calls use Refresh semantics.
func (t *Toolbox) Start(ctx context.Context) error {
	if t.client == nil {
		return nil
	}

	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return t.Refresh(ctx)
	}
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.client.Pool().StartJanitor(bg, 0)

	err := t.client.RefreshAll(ctx)
	t.syncExternal()

	if t.watch && t.config.Path() != "" {
		go func() {
			defer close(t.done)
			if werr := mcpclient.Watch(bg, t.config, t.logger, t.apply); werr != nil {
				t.logger.Error("Config watcher stopped", "err", werr)
			}
		}()
	} else {
		close(t.done)
	}
	return err
}

// Reload re-reads the server configuration file and applies it.
func (t *Toolbox) Reload(ctx context.Context) error {
	if t.client == nil {
		return nil
	}
	if err := t.config.Reload(); err != nil {
		return err
	}
	return t.apply(ctx)
}

// Refresh re-discovers the tools of the enabled servers without re-reading the file.
func (t *Toolbox) Refresh(ctx context.Context) error {
	if t.client == nil {
		return nil
	}
	err := t.client.RefreshAll(ctx)
	t.syncExternal()
	return err
}

func (t *Toolbox) apply(ctx context.Context) error {
	err := t.client.Reload(ctx)
	t.syncExternal()
	return err
}

func (t *Toolbox) syncExternal() {
	t.registry.ReplacePrefix(mcpclient.Prefix, t.client.Capabilities())

	t.mu.Lock()
	listeners := append([]func(){}, t.listeners...)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// OnToolsChanged registers fn to run whenever the external tool set is re-registered.
func (t *Toolbox) OnToolsChanged(fn func()) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Dispatch runs the named capability. An empty OutputRoot in tc is filled with the
// toolbox output root.
func (t *Toolbox) Dispatch(ctx context.Context, name string, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	if tc.OutputRoot == "" {
		tc.OutputRoot = t.outputRoot
	}
	return t.registry.Dispatch(ctx, name, params, tc)
}

// Definitions lists every registered capability sorted by name.
func (t *Toolbox) Definitions() []domain.Definition {
	return t.registry.Definitions()
}

// Registry returns the underlying capability registry.
func (t *Toolbox) Registry() *registry.Registry { return t.registry }

// Client returns the external server client, or nil when no config was given.
func (t *Toolbox) Client() *mcpclient.Client { return t.client }

// OutputRoot returns the effective output root.
func (t *Toolbox) OutputRoot() string { return t.outputRoot }

// Servers reports every declared server with its pool and tool state.
func (t *Toolbox) Servers() []ServerInfo {
	if t.client == nil {
		return nil
	}
	counts := make(map[string]int)
	for _, tool := range t.client.Tools() {
		counts[tool.Server]++
	}
	pool := t.client.Pool()

	var out []ServerInfo
	for _, s := range t.config.Servers() {
		out = append(out, ServerInfo{
			Name:        s.Name,
			Description: s.Description,
			Enabled:     s.Enabled,
			Connected:   pool.Connected(s.Name),
			Tools:       counts[s.Name],
		})
	}
	return out
}

// Close stops background work and shuts every external connection down.
func (t *Toolbox) Close() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if t.client == nil {
		return nil
	}
	if err := t.client.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
