package registry_test

import (
	"strings"
	"testing"

	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/stretchr/testify/assert"
)

func TestRequiresConfirmation(t *testing.T) {
	for _, name := range registry.DangerousCapabilities() {
		assert.True(t, registry.RequiresConfirmation(name, true), name)
		assert.False(t, registry.RequiresConfirmation(name, false), name)
	}

	assert.False(t, registry.RequiresConfirmation("file_read", true))
	assert.False(t, registry.RequiresConfirmation("mcp_git_status", true))
	assert.Contains(t, registry.DangerousCapabilities(), "shell_execute")
	assert.Contains(t, registry.DangerousCapabilities(), "file_write")
}

func TestConfirmationMessage(t *testing.T) {
	t.Run("Shell Command Shown Verbatim", func(t *testing.T) {
		msg := registry.ConfirmationMessage("shell_execute", map[string]any{"command": "make build"})
		assert.Contains(t, msg, "'shell_execute'")
		assert.Contains(t, msg, "make build")
		assert.True(t, strings.HasSuffix(msg, "Allow execution? (yes/no)"))
	})

	t.Run("Params Listed In Order", func(t *testing.T) {
		msg := registry.ConfirmationMessage("file_write", map[string]any{"path": "a.txt", "content": "x"})
		assert.Less(t, strings.Index(msg, "content: x"), strings.Index(msg, "path: a.txt"))
	})

	t.Run("Long Values Truncated", func(t *testing.T) {
		msg := registry.ConfirmationMessage("file_write", map[string]any{"content": strings.Repeat("a", 500)})
		assert.Contains(t, msg, "...")
		assert.Less(t, len(msg), 400)
	})
}
