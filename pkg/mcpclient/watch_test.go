package mcpclient_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/toolbox/pkg/mcpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: []\n"), 0o644))

	cfg, err := mcpclient.LoadConfig(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- mcpclient.Watch(ctx, cfg, nil, func(context.Context) error {
			reloads.Add(1)
			return nil
		})
	}()

	// Give the watcher time to register before the first write.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("servers:\n  - name: fresh\n    command: fresh-mcp\n    enabled: true\n"), 0o644))

	assert.Eventually(t, func() bool {
		_, ok := cfg.Server("fresh")
		return ok && reloads.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond)

	// A broken file keeps the last good state.
	require.NoError(t, os.WriteFile(path, []byte("servers: [\n"), 0o644))
	time.Sleep(500 * time.Millisecond)
	_, ok := cfg.Server("fresh")
	assert.True(t, ok)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_RequiresPath(t *testing.T) {
	cfg, err := mcpclient.NewConfig(nil, mcpclient.DefaultSettings())
	require.NoError(t, err)
	assert.ErrorIs(t, mcpclient.Watch(context.Background(), cfg, nil, nil), mcpclient.ErrConfigPathRequired)
}
