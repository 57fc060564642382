package keylock_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/toolbox/pkg/keylock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_SerializesSameKey(t *testing.T) {
	locks := keylock.New()
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.WithLock(ctx, "server", func(ctx context.Context) error {
				n := inside.Add(1)
				for {
					cur := maxInside.Load()
					if n <= cur || maxInside.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestMap_DifferentKeysRunConcurrently(t *testing.T) {
	locks := keylock.New()
	ctx := context.Background()

	entered := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = locks.WithLock(ctx, "a", func(ctx context.Context) error {
			close(entered)
			<-done
			return nil
		})
	}()
	<-entered

	err := locks.WithLock(ctx, "b", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	close(done)
}

func TestMap_ContextCancelledWhileWaiting(t *testing.T) {
	locks := keylock.New()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locks.WithLock(context.Background(), "k", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := locks.WithLock(ctx, "k", func(ctx context.Context) error {
		t.Fatal("should not acquire")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestMap_LockLifecycle(t *testing.T) {
	locks := keylock.New()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = locks.WithLock(ctx, fmt.Sprintf("key-%d", i), func(ctx context.Context) error { return nil })
	}

	assert.Equal(t, 0, locks.Len(), "entries must be released once unused")
}
