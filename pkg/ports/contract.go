package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMemoryStoreContract runs a suite of tests to verify that a MemoryStore implementation
// adheres to the defined interface contract.
func RunMemoryStoreContract(t *testing.T, store MemoryStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405.000000")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Save and List", func(t *testing.T) {
		older := domain.Memory{ID: "m-1", UserID: userID, Content: "likes tea", Tags: []string{"pref"}, CreatedAt: base}
		newer := domain.Memory{ID: "m-2", UserID: userID, Content: "works on toolbox", CreatedAt: base.Add(time.Hour)}

		require.NoError(t, store.Save(ctx, older))
		require.NoError(t, store.Save(ctx, newer))

		got, err := store.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "m-2", got[0].ID, "newest first")
		assert.Equal(t, "likes tea", got[1].Content)
		assert.Equal(t, []string{"pref"}, got[1].Tags)
		assert.True(t, base.Equal(got[1].CreatedAt))
	})

	t.Run("Save Replaces Same ID", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.Memory{ID: "m-1", UserID: userID, Content: "likes coffee", CreatedAt: base}))

		got, err := store.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "likes coffee", got[1].Content)
	})

	t.Run("Users Are Isolated", func(t *testing.T) {
		other, err := store.List(ctx, userID+"-other")
		require.NoError(t, err)
		assert.Empty(t, other)

		assert.ErrorIs(t, store.Delete(ctx, userID+"-other", "m-1"), ErrMemoryNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, userID, "m-1"))
		assert.ErrorIs(t, store.Delete(ctx, userID, "m-1"), ErrMemoryNotFound)

		got, err := store.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "m-2", got[0].ID)

		require.NoError(t, store.Delete(ctx, userID, "m-2"))
	})
}
