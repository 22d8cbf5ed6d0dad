package middleware

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

func key(b byte) []byte { return bytes.Repeat([]byte{b}, KeySize) }

func encrypted(t *testing.T, next ports.Store, cfg EncryptionConfig) ports.Store {
	t.Helper()
	mw, err := NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return Chain(next, mw)
}

func TestEncryption_StoreContract(t *testing.T) {
	ports.RunStoreContract(t, encrypted(t, memory.NewStore(), EncryptionConfig{ActiveKey: key(1)}))
}

func write(t *testing.T, store ports.Store, fn func(ctx context.Context, tx ports.Tx)) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	fn(ctx, tx)
	require.NoError(t, tx.Commit())
}

func TestEncryption_SealsAtRest(t *testing.T) {
	raw := memory.NewStore()
	store := encrypted(t, raw, EncryptionConfig{ActiveKey: key(1)})

	entry := &domain.LogEntry{ID: "e1", ProgressID: "p1", BlockID: "b1", Role: domain.RoleUser, Content: "my phone is 555", Key: "k1", CreatedAt: time.Now()}
	write(t, store, func(ctx context.Context, tx ports.Tx) {
		require.NoError(t, tx.SetVariable(ctx, "u1", "phone", "555-0100"))
		require.NoError(t, tx.AppendLog(ctx, entry))
	})
	assert.Equal(t, 1, entry.Order, "the caller sees the order the store assigned")
	assert.Equal(t, "my phone is 555", entry.Content)

	write(t, raw, func(ctx context.Context, tx ports.Tx) {
		vars, err := tx.Variables(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(vars["phone"], sealedPrefix))
		assert.NotContains(t, vars["phone"], "555")

		logs, err := tx.ListLog(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.NotContains(t, logs[0].Content, "phone")
	})

	write(t, store, func(ctx context.Context, tx ports.Tx) {
		vars, err := tx.Variables(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "555-0100", vars["phone"])

		found, err := tx.FindLogByKey(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "my phone is 555", found.Content)
	})
}

func TestEncryption_KeyRotation(t *testing.T) {
	raw := memory.NewStore()
	write(t, encrypted(t, raw, EncryptionConfig{ActiveKey: key(1)}), func(ctx context.Context, tx ports.Tx) {
		require.NoError(t, tx.SetVariable(ctx, "u1", "name", "Ann"))
	})

	rotated := encrypted(t, raw, EncryptionConfig{ActiveKey: key(2), FallbackKeys: [][]byte{key(1)}})
	write(t, rotated, func(ctx context.Context, tx ports.Tx) {
		vars, err := tx.Variables(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ann", vars["name"])
	})

	lost := encrypted(t, raw, EncryptionConfig{ActiveKey: key(3)})
	write(t, lost, func(ctx context.Context, tx ports.Tx) {
		_, err := tx.Variables(ctx, "u1")
		assert.ErrorContains(t, err, "all available keys")
	})
}

func TestEncryption_Plaintext(t *testing.T) {
	raw := memory.NewStore()
	write(t, raw, func(ctx context.Context, tx ports.Tx) {
		require.NoError(t, tx.SetVariable(ctx, "u1", "name", "Ann"))
	})

	write(t, encrypted(t, raw, EncryptionConfig{ActiveKey: key(1)}), func(ctx context.Context, tx ports.Tx) {
		_, err := tx.Variables(ctx, "u1")
		assert.ErrorIs(t, err, ErrPlaintext)
	})
	write(t, encrypted(t, raw, EncryptionConfig{ActiveKey: key(1), AllowPlaintext: true}), func(ctx context.Context, tx ports.Tx) {
		vars, err := tx.Variables(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ann", vars["name"])
	})
}

func TestNewEncryptionMiddleware_KeySizes(t *testing.T) {
	_, err := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
	_, err = NewEncryptionMiddleware(EncryptionConfig{ActiveKey: key(1), FallbackKeys: [][]byte{[]byte("short")}})
	assert.Error(t, err)
}
