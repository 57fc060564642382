package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Prefix starts the name of every external capability.
const Prefix = "mcp_"

// NamespacedName returns the registry name of tool on server.
func NamespacedName(server, tool string) string {
	return Prefix + server + "_" + tool
}

// ParseNamespacedName splits mcp_<server>_<tool>. The tool part may itself contain '_'.
func ParseNamespacedName(name string) (server, tool string, err error) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 || parts[0]+"_" != Prefix || parts[1] == "" || parts[2] == "" {
		return "", "", domain.InvalidParams("malformed external capability name %q: want mcp_<server>_<tool>", name)
	}
	return parts[1], parts[2], nil
}

// CachedTool is a discovered tool together with the server it came from.
type CachedTool struct {
	Server string
	Name   string
	Tool   mcp.Tool
}

// Client discovers and invokes the tools of the configured servers.
type Client struct {
	config *Config
	pool   *Pool
	logger *slog.Logger

	mu    sync.RWMutex
	tools []CachedTool
	known map[string]ServerConfig

	limitMu sync.RWMutex
	limit   *semaphore.Weighted
}

type ClientOption func(*Client)

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient wires a client to its configuration and pool.
func NewClient(config *Config, pool *Pool, opts ...ClientOption) *Client {
	c := &Client{
		config: config,
		pool:   pool,
		logger: logging.NewNop(),
		known:  make(map[string]ServerConfig),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "mcp_client")
	c.applySettings()
	for _, s := range config.Servers() {
		c.known[s.Name] = s
	}
	return c
}

// NewPoolFor builds a pool using the timeouts declared in config.
func NewPoolFor(config *Config, dial Dialer, opts ...PoolOption) *Pool {
	base := []PoolOption{
		WithIdleTimeout(config.IdleTimeout()),
		WithConnectTimeout(config.Settings().ConnectionTimeout()),
	}
	return NewPool(dial, append(base, opts...)...)
}

func (c *Client) applySettings() {
	var limit *semaphore.Weighted
	if n := c.config.Settings().MaxConcurrentTools; n > 0 {
		limit = semaphore.NewWeighted(int64(n))
	}
	c.limitMu.Lock()
	c.limit = limit
	c.limitMu.Unlock()
}

// Config returns the configuration the client reads.
func (c *Client) Config() *Config { return c.config }

// Pool returns the connection pool.
func (c *Client) Pool() *Pool { return c.pool }

func (c *Client) server(name string) (ServerConfig, error) {
	s, ok := c.config.Server(name)
	if !ok {
		return ServerConfig{}, domain.NotFound(name)
	}
	if !s.Enabled {
		return ServerConfig{}, domain.ExecutionFailed("external server %q is disabled", name)
	}
	return s, nil
}

// RefreshTools fetches the live tool list of server and replaces every cached entry of
// that server in one step.
func (c *Client) RefreshTools(ctx context.Context, name string) ([]CachedTool, error) {
	s, err := c.server(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Settings().ToolExecutionTimeout())
	defer cancel()
	tools, err := c.pool.ListTools(ctx, s)
	if err != nil {
		return nil, toToolError(err, "listing tools of %q", name)
	}

	entries := make([]CachedTool, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, CachedTool{Server: name, Name: NamespacedName(name, t.Name), Tool: t})
	}

	c.mu.Lock()
	c.tools = append(withoutServer(c.tools, name), entries...)
	c.mu.Unlock()

	c.logger.Info("Refreshed tools", "server", name, "count", len(entries))
	return entries, nil
}

func withoutServer(tools []CachedTool, name string) []CachedTool {
	kept := tools[:0:0]
	for _, t := range tools {
		if t.Server != name {
			kept = append(kept, t)
		}
	}
	return kept
}

// RefreshAll refreshes every enabled server concurrently and drops cached tools of
// servers that are gone or disabled. A failing server does not stop the others; the
// failures are joined in the returned error.
func (c *Client) RefreshAll(ctx context.Context) error {
	enabled := make(map[string]bool)
	var g errgroup.Group
	var (
		errMu sync.Mutex
		errs  []error
	)
	for _, s := range c.config.Servers() {
		if !s.Enabled {
			continue
		}
		enabled[s.Name] = true
		g.Go(func() error {
			if _, err := c.RefreshTools(ctx, s.Name); err != nil {
				c.logger.Warn("Refreshing server failed", "server", s.Name, "err", err)
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	kept := c.tools[:0:0]
	for _, t := range c.tools {
		if enabled[t.Server] {
			kept = append(kept, t)
		}
	}
	c.tools = kept
	c.mu.Unlock()

	return errors.Join(errs...)
}

// Reload applies a changed configuration: settings are re-read, connections of servers
// whose declaration changed or vanished are evicted, and every tool list is refreshed.
func (c *Client) Reload(ctx context.Context) error {
	c.applySettings()

	current := make(map[string]ServerConfig)
	for _, s := range c.config.Servers() {
		current[s.Name] = s
	}

	c.mu.Lock()
	previous := c.known
	c.known = current
	c.mu.Unlock()

	for name, old := range previous {
		if now, ok := current[name]; !ok || !reflect.DeepEqual(old, now) {
			if c.pool.Evict(ctx, name) {
				c.logger.Info("Server declaration changed", "server", name)
			}
		}
	}
	return c.RefreshAll(ctx)
}

// Tools returns the cached tools sorted by namespaced name.
func (c *Client) Tools() []CachedTool {
	c.mu.RLock()
	out := make([]CachedTool, len(c.tools))
	copy(out, c.tools)
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke calls tool on server, bounded by the tool execution timeout and the
// max-concurrent-tools limit.
func (c *Client) Invoke(ctx context.Context, server, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	s, err := c.server(server)
	if err != nil {
		return nil, err
	}

	c.limitMu.RLock()
	limit := c.limit
	c.limitMu.RUnlock()
	if limit != nil {
		if err := limit.Acquire(ctx, 1); err != nil {
			return nil, domain.ExecutionFailed("waiting for a free external call slot: %w", err)
		}
		defer limit.Release(1)
	}

	timeout := c.config.Settings().ToolExecutionTimeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := c.pool.CallTool(callCtx, s, tool, args)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.ExecutionFailed("%s on %q timed out after %s", tool, server, timeout)
		}
		return nil, toToolError(err, "calling %s on %q", tool, server)
	}
	c.logger.Debug("External call finished", "server", server, "tool", tool, "duration", time.Since(start))
	return res, nil
}

// InvokeNamespaced resolves mcp_<server>_<tool> and calls it.
func (c *Client) InvokeNamespaced(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	server, tool, err := ParseNamespacedName(name)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, server, tool, args)
}

// Close shuts the pool down.
func (c *Client) Close() error {
	return c.pool.Shutdown()
}

func toToolError(err error, format string, args ...any) error {
	var te *domain.ToolError
	if errors.As(err, &te) {
		return err
	}
	return domain.ExecutionFailed(format+": %w", append(args, err)...)
}

// ToResult flattens a tool result into model-facing text.
func ToResult(res *mcp.CallToolResult) domain.Result {
	if res == nil {
		return domain.Success("(no output)")
	}
	var parts []string
	for _, content := range res.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
			continue
		}
		switch v := content.(type) {
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image: %s]", v.MIMEType))
		case mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio: %s]", v.MIMEType))
		case mcp.EmbeddedResource:
			if r, ok := v.Resource.(mcp.TextResourceContents); ok {
				parts = append(parts, r.Text)
			} else {
				parts = append(parts, "[resource]")
			}
		default:
			parts = append(parts, fmt.Sprintf("[%T]", content))
		}
	}
	out := strings.Join(parts, "\n")
	if strings.TrimSpace(out) == "" {
		out = "(no output)"
	}
	return domain.Result{Output: out, IsError: res.IsError}
}
