package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_Expiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, kv.Set(ctx, "b", []byte("2"), 0))

	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	now = now.Add(time.Minute)
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = kv.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	require.NoError(t, kv.Delete(ctx, "b"))
	_, err = kv.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	type rec struct {
		Answers map[int]int `json:"answers"`
	}
	require.NoError(t, SetJSON(ctx, kv, "r", rec{Answers: map[int]int{0: 2}}, 0))

	var got rec
	require.NoError(t, GetJSON(ctx, kv, "r", &got))
	assert.Equal(t, 2, got.Answers[0])

	assert.ErrorIs(t, GetJSON(ctx, kv, "missing", &got), ErrNotFound)
}
