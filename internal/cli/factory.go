package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/toolbox"
	"github.com/aretw0/toolbox/pkg/adapters/file"
	"github.com/aretw0/toolbox/pkg/adapters/memory"
	"github.com/aretw0/toolbox/pkg/adapters/process"
	"github.com/aretw0/toolbox/pkg/adapters/redis"
	"github.com/aretw0/toolbox/pkg/adapters/sqlite"
	"github.com/aretw0/toolbox/pkg/mcpclient"
	"github.com/aretw0/toolbox/pkg/observability"
	"github.com/aretw0/toolbox/pkg/persistence/middleware"
	"github.com/aretw0/toolbox/pkg/ports"
	"github.com/aretw0/toolbox/pkg/registry"
)

// EnvMemoryKey holds the key that encrypts stored memories (32 bytes, base64 or hex).
const EnvMemoryKey = "TOOLBOX_MEMORY_KEY"

// DefaultConfigPath is where server declarations live unless --config says otherwise.
const DefaultConfigPath = "toolbox.yaml"

// Options carries the flags shared by every command that builds a toolbox.
type Options struct {
	ConfigPath  string
	ScriptsPath string
	OutputRoot  string
	Memory      string
	MemoryKey   string
	Redact      bool
	Confirm     bool
	Watch       bool
	Metrics     bool

	// Headless disables the confirmation gate regardless of Confirm and EnvConfirm.
	Headless bool

	In  io.Reader
	Out io.Writer
}

// Session is a toolbox together with the resources opened to build it.
type Session struct {
	*toolbox.Toolbox
	Config  *mcpclient.Config
	Metrics *observability.Metrics
	closers []io.Closer
}

// Close shuts the toolbox down and releases the memory store.
func (s *Session) Close() error {
	errs := []error{s.Toolbox.Close()}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LoadConfig reads the server configuration at path, or DefaultConfigPath.
func LoadConfig(path string) (*mcpclient.Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	return mcpclient.LoadConfig(path)
}

// Build assembles a toolbox from opts. The caller must Close the session.
func Build(opts Options, logger *slog.Logger) (*Session, error) {
	config, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading server configuration: %w", err)
	}

	s := &Session{Config: config}
	tbOpts := []toolbox.Option{
		toolbox.WithLogger(logger),
		toolbox.WithServerConfig(config),
		toolbox.WithWatch(opts.Watch),
	}
	if opts.OutputRoot != "" {
		tbOpts = append(tbOpts, toolbox.WithOutputRoot(opts.OutputRoot))
	}
	if opts.ScriptsPath != "" {
		scripts, err := process.LoadScripts(opts.ScriptsPath)
		if err != nil {
			return nil, err
		}
		tbOpts = append(tbOpts, toolbox.WithCapabilities(process.Capabilities(scripts, logger)...))
	}

	store, closer, err := OpenMemoryStore(opts.Memory, logger)
	if err != nil {
		return nil, err
	}
	if store != nil {
		var mws []middleware.Middleware
		if opts.Redact {
			mws = append(mws, middleware.NewRedactionMiddleware(middleware.DefaultSecretPatterns))
		}
		if opts.MemoryKey != "" {
			key, err := middleware.ParseKey(opts.MemoryKey)
			if err != nil {
				if closer != nil {
					closer.Close()
				}
				return nil, err
			}
			mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
		}
		tbOpts = append(tbOpts, toolbox.WithMemoryStore(middleware.Wrap(store, mws...)))
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	if opts.Metrics {
		s.Metrics = observability.NewMetrics()
		tbOpts = append(tbOpts, toolbox.WithMetrics(s.Metrics))
	}

	if !opts.Headless && ConfirmEnabled(opts.Confirm) {
		in, out := opts.In, opts.Out
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stderr
		}
		tbOpts = append(tbOpts, toolbox.WithInterceptor(
			registry.ConfirmDangerous(true, PromptConfirmer(in, out, false)),
		))
	}

	s.Toolbox = toolbox.New(tbOpts...)
	return s, nil
}

// OpenMemoryStore opens the store named by dsn:
//
//	""                    no memory capabilities
//	"memory"              process-local, lost on exit
//	"file:<dir>"          one JSON file per user
//	"sqlite:<path>"       SQLite file (a bare *.db path works too)
//	"redis://host:port/0" Redis
func OpenMemoryStore(dsn string, logger *slog.Logger) (ports.MemoryStore, io.Closer, error) {
	switch {
	case dsn == "":
		return nil, nil, nil
	case dsn == "memory":
		return memory.NewStore(), nil, nil
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		store, err := redis.NewFromURL(dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case strings.HasPrefix(dsn, "file:"):
		return file.New(strings.TrimPrefix(dsn, "file:")), nil, nil
	case strings.HasPrefix(dsn, "sqlite:"), filepath.Ext(dsn) == ".db":
		store, err := sqlite.New(strings.TrimPrefix(dsn, "sqlite:"), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening memory database: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown memory store %q: want memory, file:<dir>, sqlite:<path> or redis://", dsn)
	}
}
