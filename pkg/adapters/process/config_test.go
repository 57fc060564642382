package process_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/toolbox/pkg/adapters/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScripts_Formats(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"scripts.yaml", `
scripts:
  - name: word_count
    command: wc -w
    description: Count words
    timeout_s: 5
`},
		{"scripts.json", `{"scripts": [{"name": "word_count", "command": "wc -w", "description": "Count words", "timeout_s": 5}]}`},
		{"scripts.toml", `
[[scripts]]
name = "word_count"
command = "wc -w"
description = "Count words"
timeout_s = 5
`},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			scripts, err := process.LoadScripts(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, scripts, 1)
			assert.Equal(t, "word_count", scripts[0].Name)
			assert.Equal(t, "wc -w", scripts[0].Command)
			assert.Equal(t, "Count words", scripts[0].Description)
			assert.Equal(t, 5, scripts[0].TimeoutSeconds)
		})
	}
}

func TestLoadScripts_MissingFileIsEmpty(t *testing.T) {
	scripts, err := process.LoadScripts(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, scripts)
}

func TestLoadScripts_Rejects(t *testing.T) {
	tests := map[string]string{
		"reserved":  "scripts:\n  - name: mcp_fake\n    command: true\n",
		"unnamed":   "scripts:\n  - command: true\n",
		"nocommand": "scripts:\n  - name: x\n",
		"duplicate": "scripts:\n  - name: x\n    command: a\n  - name: x\n    command: b\n",
		"malformed": "scripts: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := process.LoadScripts(writeFile(t, "scripts.yaml", content))
			assert.Error(t, err)
		})
	}

	_, err := process.LoadScripts(writeFile(t, "s.yaml", "scripts:\n  - name: mcp_fake\n    command: true\n"))
	assert.ErrorIs(t, err, process.ErrReservedName)
}
