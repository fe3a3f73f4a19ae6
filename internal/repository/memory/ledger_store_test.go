package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdesk/internal/repository/memory"
)

func TestLedgerStore_GetMissing(t *testing.T) {
	store := memory.NewLedgerStore()

	v, ok, err := store.Get(context.Background(), "partial_payment_x")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestLedgerStore_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	buf := []byte(`[1]`)

	require.NoError(t, store.Set(ctx, "k", buf))
	buf[1] = '9'

	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1]`, string(v))
}

func TestLedgerStore_KeysByPrefix(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	for _, k := range []string{"partial_payment_b", "pending_remote_b", "partial_payment_a"} {
		require.NoError(t, store.Set(ctx, k, []byte(`[]`)))
	}

	keys, err := store.Keys(ctx, "partial_payment_")

	require.NoError(t, err)
	assert.Equal(t, []string{"partial_payment_a", "partial_payment_b"}, keys)
}

func TestLedgerStore_Update(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()

	err := store.Update(ctx, "k", func(cur []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		assert.Nil(t, cur)
		return []byte(`[1]`), nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, "k", func(cur []byte, found bool) ([]byte, error) {
		assert.True(t, found)
		assert.Equal(t, `[1]`, string(cur))
		return []byte(`[1,2]`), nil
	})
	require.NoError(t, err)

	v, _, _ := store.Get(ctx, "k")
	assert.Equal(t, `[1,2]`, string(v))
}

func TestLedgerStore_UpdateAbortLeavesValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	boom := errors.New("abort")

	err := store.Update(ctx, "k", func([]byte, bool) ([]byte, error) { return nil, boom })

	assert.ErrorIs(t, err, boom)
	_, ok, _ := store.Get(ctx, "k")
	assert.False(t, ok)
}
