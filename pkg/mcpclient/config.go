package mcpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/toolbox/internal/fsutil"
	shellwords "github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConnectionTimeout    = 30 * time.Second
	DefaultToolExecutionTimeout = 60 * time.Second
	// FallbackIdleTimeout applies to configurations not loaded from a file.
	FallbackIdleTimeout = 5 * time.Minute
	idleTimeoutFactor   = 10
)

var (
	ErrServerExists       = errors.New("server already exists")
	ErrServerNotFound     = errors.New("server not found")
	ErrInvalidServer      = errors.New("invalid server declaration")
	ErrUnsupportedFormat  = errors.New("unsupported config format")
	ErrConfigPathRequired = errors.New("config has no file path")
)

// ServerConfig declares one external server and how to launch it.
type ServerConfig struct {
	Name        string            `yaml:"name" json:"name" toml:"name"`
	Command     string            `yaml:"command" json:"command" toml:"command"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty" toml:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty" toml:"env,omitempty"`
	Enabled     bool              `yaml:"enabled" json:"enabled" toml:"enabled"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty" toml:"description,omitempty"`
}

// Settings are the global knobs shared by every server.
type Settings struct {
	ConnectionTimeoutSeconds    int `yaml:"connection_timeout_s" json:"connection_timeout_s" toml:"connection_timeout_s"`
	ToolExecutionTimeoutSeconds int `yaml:"tool_execution_timeout_s" json:"tool_execution_timeout_s" toml:"tool_execution_timeout_s"`
	// MaxConcurrentTools bounds in-flight external calls across all servers. Zero means unlimited.
	MaxConcurrentTools int `yaml:"max_concurrent_tools" json:"max_concurrent_tools" toml:"max_concurrent_tools"`
}

// DefaultSettings returns the settings used when the file omits them.
func DefaultSettings() Settings {
	return Settings{
		ConnectionTimeoutSeconds:    int(DefaultConnectionTimeout / time.Second),
		ToolExecutionTimeoutSeconds: int(DefaultToolExecutionTimeout / time.Second),
	}
}

// ConnectionTimeout bounds spawning and initializing a server.
func (s Settings) ConnectionTimeout() time.Duration {
	if s.ConnectionTimeoutSeconds <= 0 {
		return DefaultConnectionTimeout
	}
	return time.Duration(s.ConnectionTimeoutSeconds) * time.Second
}

// ToolExecutionTimeout bounds a single external call.
func (s Settings) ToolExecutionTimeout() time.Duration {
	if s.ToolExecutionTimeoutSeconds <= 0 {
		return DefaultToolExecutionTimeout
	}
	return time.Duration(s.ToolExecutionTimeoutSeconds) * time.Second
}

// File is the on-disk layout of the configuration.
type File struct {
	Servers  []ServerConfig `yaml:"servers" json:"servers" toml:"servers"`
	Settings Settings       `yaml:"settings" json:"settings" toml:"settings"`
}

// Config is the lock-guarded set of server declarations and settings.
// It is loaded and saved explicitly; nothing reads it from global state.
type Config struct {
	mu       sync.RWMutex
	path     string
	servers  []ServerConfig
	settings Settings
	loaded   bool
}

// NewConfig builds an in-memory configuration. It is not bound to a file until SaveAs.
func NewConfig(servers []ServerConfig, settings Settings) (*Config, error) {
	for _, s := range servers {
		if err := validateServer(s); err != nil {
			return nil, err
		}
	}
	if err := checkDuplicates(servers); err != nil {
		return nil, err
	}
	return &Config{servers: cloneServers(servers), settings: settings}, nil
}

// LoadConfig reads the configuration at path. The format is chosen by extension
// (.yaml, .yml, .json, .toml). A missing file yields an empty configuration bound to path.
func LoadConfig(path string) (*Config, error) {
	c := &Config{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the bound file, replacing every declaration.
func (c *Config) Reload() error {
	c.mu.RLock()
	path := c.path
	c.mu.RUnlock()
	if path == "" {
		return ErrConfigPathRequired
	}

	f, err := readFile(path)
	if err != nil {
		return err
	}
	for _, s := range f.Servers {
		if err := validateServer(s); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := checkDuplicates(f.Servers); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers = f.Servers
	c.settings = f.Settings
	c.loaded = true
	return nil
}

func readFile(path string) (File, error) {
	f := File{Settings: DefaultSettings()}
	format, err := formatOf(path)
	if err != nil {
		return f, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, fmt.Errorf("failed to read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}

	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &f)
	case "json":
		err = json.Unmarshal(data, &f)
	case "toml":
		_, err = toml.Decode(string(data), &f)
	}
	if err != nil {
		return f, fmt.Errorf("failed to parse %s config %s: %w", format, path, err)
	}
	return f, nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Path returns the file the configuration is bound to, if any.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Loaded reports whether the configuration came from a file.
func (c *Config) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Save writes the configuration back to its bound file atomically.
func (c *Config) Save() error {
	c.mu.RLock()
	path := c.path
	c.mu.RUnlock()
	if path == "" {
		return ErrConfigPathRequired
	}
	return c.SaveAs(path)
}

// SaveAs writes the configuration to path and binds it there.
func (c *Config) SaveAs(path string) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	f := File{Servers: c.servers, Settings: c.settings}
	if f.Servers == nil {
		f.Servers = []ServerConfig{}
	}

	var data []byte
	switch format {
	case "yaml":
		data, err = yaml.Marshal(f)
	case "json":
		data, err = json.MarshalIndent(f, "", "  ")
	case "toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(f)
		data = buf.Bytes()
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s config: %w", format, err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return err
	}
	c.path = path
	c.loaded = true
	return nil
}

// Add declares a new server.
func (c *Config) Add(s ServerConfig) error {
	if err := validateServer(s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(s.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrServerExists, s.Name)
	}
	c.servers = append(c.servers, cloneServer(s))
	return nil
}

// Remove deletes a server declaration.
func (c *Config) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	c.servers = slices.Delete(c.servers, i, i+1)
	return nil
}

// SetEnabled toggles a server.
func (c *Config) SetEnabled(name string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	c.servers[i].Enabled = enabled
	return nil
}

// Server returns a copy of one declaration.
func (c *Config) Server(name string) (ServerConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.indexOf(name)
	if i < 0 {
		return ServerConfig{}, false
	}
	return cloneServer(c.servers[i]), true
}

// Servers returns copies of every declaration, sorted by name.
func (c *Config) Servers() []ServerConfig {
	c.mu.RLock()
	out := cloneServers(c.servers)
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Settings returns the global settings.
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// SetSettings replaces the global settings.
func (c *Config) SetSettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// IdleTimeout is how long a pooled connection may sit unused before it is respawned:
// ten times the connection timeout of a configuration loaded from a file, and
// FallbackIdleTimeout otherwise.
func (c *Config) IdleTimeout() time.Duration {
	c.mu.RLock()
	loaded, seconds := c.loaded, c.settings.ConnectionTimeoutSeconds
	c.mu.RUnlock()
	if !loaded || seconds <= 0 {
		return FallbackIdleTimeout
	}
	return idleTimeoutFactor * time.Duration(seconds) * time.Second
}

func (c *Config) indexOf(name string) int {
	for i := range c.servers {
		if c.servers[i].Name == name {
			return i
		}
	}
	return -1
}

// ValidateServerName rejects names that cannot round-trip through mcp_<server>_<tool>.
func ValidateServerName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidServer)
	case strings.Contains(name, "_"):
		return fmt.Errorf("%w: name %q must not contain '_'", ErrInvalidServer, name)
	case strings.ContainsAny(name, " \t\r\n/\\"):
		return fmt.Errorf("%w: name %q must not contain whitespace or slashes", ErrInvalidServer, name)
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if err := ValidateServerName(s.Name); err != nil {
		return err
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("%w: server %q has no command", ErrInvalidServer, s.Name)
	}
	return nil
}

func checkDuplicates(servers []ServerConfig) error {
	seen := make(map[string]bool, len(servers))
	for _, s := range servers {
		if seen[s.Name] {
			return fmt.Errorf("%w: %s", ErrServerExists, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func cloneServer(s ServerConfig) ServerConfig {
	s.Args = slices.Clone(s.Args)
	if s.Env != nil {
		env := make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			env[k] = v
		}
		s.Env = env
	}
	return s
}

func cloneServers(in []ServerConfig) []ServerConfig {
	out := make([]ServerConfig, len(in))
	for i, s := range in {
		out[i] = cloneServer(s)
	}
	return out
}

// ExpandEnv substitutes a value of the exact form ${NAME} with the NAME variable of the
// current process. Anything else, including an unset variable, is returned unchanged.
func ExpandEnv(value string) string {
	if len(value) < 4 || !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	name := value[2 : len(value)-1]
	if strings.ContainsAny(name, "${}") {
		return value
	}
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return value
}

// Launch resolves the command line and environment used to spawn the server.
// A command given as one string with no args is split with shell word rules.
func (s ServerConfig) Launch() (command string, args []string, env []string, err error) {
	command = strings.TrimSpace(s.Command)
	args = slices.Clone(s.Args)
	if len(args) == 0 && strings.ContainsAny(command, " \t") {
		words, err := shellwords.Parse(command)
		if err != nil {
			return "", nil, nil, fmt.Errorf("%w: cannot split command of %q: %v", ErrInvalidServer, s.Name, err)
		}
		if len(words) == 0 {
			return "", nil, nil, fmt.Errorf("%w: server %q has no command", ErrInvalidServer, s.Name)
		}
		command, args = words[0], words[1:]
	}

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+ExpandEnv(s.Env[k]))
	}
	return command, args, env, nil
}
