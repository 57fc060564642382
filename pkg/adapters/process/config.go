package process

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrReservedName is returned for script names that would shadow external capabilities.
var ErrReservedName = errors.New("script names may not start with mcp_")

// ScriptConfig declares one allow-listed local command exposed as a capability.
type ScriptConfig struct {
	Name        string            `yaml:"name" json:"name" toml:"name"`
	Command     string            `yaml:"command" json:"command" toml:"command"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty" toml:"args,omitempty"`
	Environment map[string]string `yaml:"env,omitempty" json:"env,omitempty" toml:"env,omitempty"`
	Description string            `yaml:"description" json:"description" toml:"description"`
	// Parameters is a JSON Schema object describing the accepted parameters.
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty" toml:"parameters,omitempty"`
	// TimeoutSeconds bounds one run. Zero means DefaultTimeout.
	TimeoutSeconds int `yaml:"timeout_s,omitempty" json:"timeout_s,omitempty" toml:"timeout_s,omitempty"`
}

// ConfigFile represents the structure of the scripts file.
type ConfigFile struct {
	Scripts []ScriptConfig `yaml:"scripts" json:"scripts" toml:"scripts"`
}

// LoadScripts reads a YAML, JSON or TOML scripts file. A missing file yields no scripts.
func LoadScripts(path string) ([]ScriptConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scripts config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var cfg ConfigFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".toml":
		_, err = toml.Decode(string(data), &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[string]bool)
	for _, s := range cfg.Scripts {
		switch {
		case s.Name == "":
			return nil, fmt.Errorf("%s: script without a name", path)
		case strings.HasPrefix(s.Name, "mcp_"):
			return nil, fmt.Errorf("%s: %w: %s", path, ErrReservedName, s.Name)
		case s.Command == "":
			return nil, fmt.Errorf("%s: script %s has no command", path, s.Name)
		case seen[s.Name]:
			return nil, fmt.Errorf("%s: duplicate script %s", path, s.Name)
		}
		seen[s.Name] = true
	}
	return cfg.Scripts, nil
}
