package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/toolbox/pkg/adapters/memory"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/persistence/middleware"
	"github.com/aretw0/toolbox/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func note(id, content string, tags ...string) domain.Memory {
	return domain.Memory{ID: id, UserID: "u1", Content: content, Tags: tags, CreatedAt: time.Now()}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, note("m1", "my-secret-sauce", "recipes")))

	stored, err := underlying.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotContains(t, stored[0].Content, "my-secret-sauce")
	assert.True(t, strings.HasPrefix(stored[0].Content, "enc:v1:"))
	assert.Empty(t, stored[0].Tags)

	loaded, err := secure.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "my-secret-sauce", loaded[0].Content)
	assert.Equal(t, []string{"recipes"}, loaded[0].Tags)

	require.NoError(t, secure.Delete(ctx, "u1", "m1"))
	assert.ErrorIs(t, secure.Delete(ctx, "u1", "m1"), ports.ErrMemoryNotFound)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunMemoryStoreContract(t, secure)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureOld.Save(ctx, note("m1", "encrypted-with-old-key")))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "encrypted-with-old-key", loaded[0].Content)

	require.NoError(t, secureNew.Save(ctx, note("m1", "encrypted-with-new-key")))

	_, err = secureOld.List(ctx, "u1")
	assert.Error(t, err, "old key alone must not open new-key entries")
}

func TestEncryptionMiddleware_RefusesPlainEntries(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), note("m1", "plain")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.List(context.Background(), "u1")
	assert.ErrorContains(t, err, "envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("too-short")
	assert.Error(t, err)
}
