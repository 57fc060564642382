package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/toolbox/pkg/mcpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestServersCommands_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolbox.yaml")

	out, err := execute(t, "servers", "add", "--config", path, "--description", "Echo server", "--env", "TOKEN=${ECHO_TOKEN}", "echo", "npx", "-y", "echo-server")
	require.NoError(t, err)
	assert.Contains(t, out, "Added server 'echo'")

	config, err := mcpclient.LoadConfig(path)
	require.NoError(t, err)
	server, ok := config.Server("echo")
	require.True(t, ok)
	assert.Equal(t, "npx", server.Command)
	assert.Equal(t, []string{"-y", "echo-server"}, server.Args)
	assert.Equal(t, map[string]string{"TOKEN": "${ECHO_TOKEN}"}, server.Env)
	assert.True(t, server.Enabled)

	out, err = execute(t, "servers", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "npx -y echo-server")
	assert.Contains(t, out, "enabled")

	_, err = execute(t, "servers", "disable", "--config", path, "echo")
	require.NoError(t, err)
	out, err = execute(t, "servers", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")

	_, err = execute(t, "servers", "add", "--config", path, "echo", "other")
	assert.ErrorIs(t, err, mcpclient.ErrServerExists)

	_, err = execute(t, "servers", "remove", "--config", path, "echo")
	require.NoError(t, err)
	out, err = execute(t, "servers", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No servers declared")

	_, err = execute(t, "servers", "enable", "--config", path, "ghost")
	assert.ErrorIs(t, err, mcpclient.ErrServerNotFound)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "toolbox version")
}
