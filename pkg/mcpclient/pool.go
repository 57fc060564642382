package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/keylock"
	"github.com/mark3labs/mcp-go/mcp"
)

// Conn is a live session with one external server.
type Conn interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer spawns and initializes a connection to server.
type Dialer func(ctx context.Context, server ServerConfig) (Conn, error)

// PoolStats is a point-in-time snapshot of pool activity.
type PoolStats struct {
	Open      int
	Spawns    uint64
	Evictions uint64
}

type pooledConn struct {
	conn     Conn
	lastUsed atomic.Int64
	inflight atomic.Int32
	dropped  atomic.Bool
	closed   sync.Once
}

func (pc *pooledConn) touch(now time.Time) { pc.lastUsed.Store(now.UnixNano()) }

func (pc *pooledConn) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, pc.lastUsed.Load()))
}

func (pc *pooledConn) close() error {
	var err error
	pc.closed.Do(func() { err = pc.conn.Close() })
	return err
}

// Pool keeps at most one connection per server name. A connection is reused while it
// has been used within the idle window and respawned after that. The pool is the only
// owner of its connections: they are closed on eviction, cleanup or shutdown.
type Pool struct {
	mu    sync.RWMutex
	conns map[string]*pooledConn
	locks *keylock.Map

	dial           Dialer
	idleTimeout    time.Duration
	connectTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger

	spawns    atomic.Uint64
	evictions atomic.Uint64
}

type PoolOption func(*Pool)

// WithIdleTimeout sets how long an unused connection stays eligible for reuse.
func WithIdleTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// WithConnectTimeout bounds each dial.
func WithConnectTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.connectTimeout = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) PoolOption {
	return func(p *Pool) {
		p.now = now
	}
}

func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates an empty pool that opens connections with dial.
func NewPool(dial Dialer, opts ...PoolOption) *Pool {
	p := &Pool{
		conns:          make(map[string]*pooledConn),
		locks:          keylock.New(),
		dial:           dial,
		idleTimeout:    FallbackIdleTimeout,
		connectTimeout: DefaultConnectionTimeout,
		now:            time.Now,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "mcp_pool")
	return p
}

// IdleTimeout returns the reuse window.
func (p *Pool) IdleTimeout() time.Duration { return p.idleTimeout }

// ListTools returns the tools advertised by server.
func (p *Pool) ListTools(ctx context.Context, server ServerConfig) ([]mcp.Tool, error) {
	var tools []mcp.Tool
	err := p.with(ctx, server, func(conn Conn) error {
		var err error
		tools, err = conn.ListTools(ctx)
		return err
	})
	return tools, err
}

// CallTool invokes tool on server.
func (p *Pool) CallTool(ctx context.Context, server ServerConfig, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	var res *mcp.CallToolResult
	err := p.with(ctx, server, func(conn Conn) error {
		var err error
		res, err = conn.CallTool(ctx, tool, args)
		return err
	})
	return res, err
}

func (p *Pool) with(ctx context.Context, server ServerConfig, fn func(Conn) error) error {
	pc, err := p.acquire(ctx, server)
	if err != nil {
		return err
	}
	err = fn(pc.conn)
	if err != nil && ctx.Err() == nil && !answered(err) {
		p.drop(server.Name, pc, "call failed")
	}
	p.release(pc)
	return err
}

// rpcErrors are the JSON-RPC error responses mcp-go maps to sentinels. A server that
// sent one of them is still alive and keeps its connection.
var rpcErrors = []error{
	mcp.ErrParseError,
	mcp.ErrInvalidRequest,
	mcp.ErrMethodNotFound,
	mcp.ErrInvalidParams,
	mcp.ErrInternalError,
	mcp.ErrRequestInterrupted,
	mcp.ErrResourceNotFound,
}

func answered(err error) bool {
	for _, target := range rpcErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// acquire returns a live connection for server, dialing when there is none or the
// existing one is stale. The whole check-or-create runs under the server's lock so
// concurrent cold starts never spawn twice.
func (p *Pool) acquire(ctx context.Context, server ServerConfig) (*pooledConn, error) {
	var pc *pooledConn
	err := p.locks.WithLock(ctx, server.Name, func(ctx context.Context) error {
		now := p.now()

		p.mu.RLock()
		existing := p.conns[server.Name]
		p.mu.RUnlock()

		if existing != nil {
			if existing.inflight.Load() > 0 || existing.idleSince(now) < p.idleTimeout {
				existing.touch(now)
				existing.inflight.Add(1)
				pc = existing
				return nil
			}
			p.drop(server.Name, existing, "idle timeout")
		}

		dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
		defer cancel()
		start := time.Now()
		conn, err := p.dial(dialCtx, server)
		if err != nil {
			return domain.ExecutionFailed("connecting to server %q: %w", server.Name, err)
		}
		p.spawns.Add(1)
		p.logger.Info("Connected to server", "server", server.Name, "duration", time.Since(start))

		pc = &pooledConn{conn: conn}
		pc.touch(now)
		pc.inflight.Add(1)

		p.mu.Lock()
		p.conns[server.Name] = pc
		p.mu.Unlock()
		return nil
	})
	if err != nil {
		var te *domain.ToolError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, domain.ExecutionFailed("waiting for server %q: %w", server.Name, err)
	}
	return pc, nil
}

func (p *Pool) release(pc *pooledConn) {
	pc.touch(p.now())
	if pc.inflight.Add(-1) == 0 && pc.dropped.Load() {
		_ = pc.close()
	}
}

// drop removes pc from the table if it is still the current entry. It is closed now
// when idle, or by the last in-flight caller otherwise.
func (p *Pool) drop(name string, pc *pooledConn, reason string) {
	p.mu.Lock()
	if p.conns[name] == pc {
		delete(p.conns, name)
	}
	p.mu.Unlock()

	if pc.dropped.Swap(true) {
		return
	}
	p.evictions.Add(1)
	p.logger.Info("Evicted connection", "server", name, "reason", reason)
	if pc.inflight.Load() == 0 {
		if err := pc.close(); err != nil {
			p.logger.Warn("Closing connection failed", "server", name, "err", err)
		}
	}
}

// Evict discards the connection to name, if any. Reports whether one existed.
func (p *Pool) Evict(ctx context.Context, name string) bool {
	found := false
	_ = p.locks.WithLock(ctx, name, func(context.Context) error {
		p.mu.RLock()
		pc := p.conns[name]
		p.mu.RUnlock()
		if pc != nil {
			found = true
			p.drop(name, pc, "evicted")
		}
		return nil
	})
	return found
}

// Cleanup closes every connection idle for longer than the window and returns how many
// were removed. Busy connections are kept.
func (p *Pool) Cleanup(ctx context.Context) int {
	removed := 0
	for _, name := range p.Servers() {
		_ = p.locks.WithLock(ctx, name, func(context.Context) error {
			p.mu.RLock()
			pc := p.conns[name]
			p.mu.RUnlock()
			if pc != nil && pc.inflight.Load() == 0 && pc.idleSince(p.now()) >= p.idleTimeout {
				p.drop(name, pc, "idle timeout")
				removed++
			}
			return nil
		})
	}
	return removed
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (p *Pool) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = p.idleTimeout / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := p.Cleanup(ctx); n > 0 {
					p.logger.Debug("Pool cleanup", "removed", n)
				}
			}
		}
	}()
}

// Shutdown closes every pooled connection unconditionally.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*pooledConn)
	p.mu.Unlock()

	var errs []error
	for name, pc := range conns {
		pc.dropped.Store(true)
		if err := pc.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	if len(conns) > 0 {
		p.logger.Info("Pool shut down", "closed", len(conns))
	}
	return errors.Join(errs...)
}

// Servers returns the names with a pooled connection, sorted.
func (p *Pool) Servers() []string {
	p.mu.RLock()
	names := make([]string, 0, len(p.conns))
	for name := range p.conns {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Connected reports whether name has a pooled connection.
func (p *Pool) Connected(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.conns[name]
	return ok
}

// Stats returns counters for metrics.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	open := len(p.conns)
	p.mu.RUnlock()
	return PoolStats{Open: open, Spawns: p.spawns.Load(), Evictions: p.evictions.Load()}
}
