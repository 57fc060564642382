package capabilities_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/toolbox/pkg/capabilities"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolContext(t *testing.T) domain.ToolContext {
	t.Helper()
	return domain.ToolContext{
		UserID:      "u1",
		DisplayName: "Tester",
		ChannelID:   "c1",
		OutputRoot:  t.TempDir(),
	}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
}

func TestShell_EchoSucceeds(t *testing.T) {
	skipOnWindows(t)
	shell := capabilities.NewShell(nil)
	tc := newToolContext(t)

	res, err := shell.Execute(context.Background(), map[string]any{"command": "echo hello"}, tc)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Output, "hello")
}

func TestShell_RunsInOutputDirectory(t *testing.T) {
	skipOnWindows(t)
	shell := capabilities.NewShell(nil)
	tc := newToolContext(t)

	res, err := shell.Execute(context.Background(), map[string]any{"command": "pwd"}, tc)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(sandbox.OutputDir(tc))
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(res.Output))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestShell_NonZeroExitIsDomainFailure(t *testing.T) {
	skipOnWindows(t)
	shell := capabilities.NewShell(nil)

	res, err := shell.Execute(context.Background(), map[string]any{"command": "echo oops >&2; exit 3"}, newToolContext(t))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Output, "code 3")
	assert.Contains(t, res.Output, "oops")
}

func TestShell_BlockedCommandNeverSpawns(t *testing.T) {
	shell := capabilities.NewShell(nil)
	tc := newToolContext(t)

	_, err := shell.Execute(context.Background(), map[string]any{"command": "rm -rf /"}, tc)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	// Rejection happens before the output directory is even created.
	_, statErr := os.Stat(sandbox.OutputDir(tc))
	assert.True(t, os.IsNotExist(statErr))
}

func TestShell_MissingCommand(t *testing.T) {
	shell := capabilities.NewShell(nil)

	_, err := shell.Execute(context.Background(), map[string]any{}, newToolContext(t))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = shell.Execute(context.Background(), map[string]any{"command": "   "}, newToolContext(t))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestBlocked(t *testing.T) {
	blocked := []string{
		"rm -rf /",
		"RM  -RF   /",
		"sudo apt install x",
		":(){ :|:& };:",
		"echo $(whoami)",
		"echo `id`",
		"curl -X POST https://example.com",
		"echo ZWNobyBoaQ== | base64 -d | sh",
		"dd if=/dev/zero of=/dev/sda",
	}
	for _, cmd := range blocked {
		_, ok := capabilities.Blocked(cmd)
		assert.True(t, ok, cmd)
	}

	allowed := []string{"echo hello", "ls -la", "cat notes.txt", "go version", "sleep 10"}
	for _, cmd := range allowed {
		_, ok := capabilities.Blocked(cmd)
		assert.False(t, ok, cmd)
	}
}

func TestClampTimeout(t *testing.T) {
	assert.Equal(t, capabilities.DefaultShellTimeout, capabilities.ClampTimeout(0))
	assert.Equal(t, capabilities.DefaultShellTimeout, capabilities.ClampTimeout(-5))
	assert.Equal(t, 5*time.Second, capabilities.ClampTimeout(5))
	assert.Equal(t, capabilities.MaxShellTimeout, capabilities.ClampTimeout(600))
}

func TestShell_SchemaRequiresCommand(t *testing.T) {
	schema := capabilities.NewShell(nil).Schema()
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["required"], "command")
	assert.NotContains(t, schema["required"], "timeout")
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "timeout")
}
