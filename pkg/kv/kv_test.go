package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores returns both Store bindings so every test runs against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"redis":  rdb,
	}
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			type record struct {
				TaskID string  `json:"task_id"`
				Tokens int     `json:"tokens"`
				Cost   float64 `json:"cost"`
			}

			in := record{TaskID: "t-1", Tokens: 420, Cost: 0.0042}
			require.NoError(t, store.Set(ctx, "mesh:usage:t-1", in, time.Hour))

			var out record
			require.NoError(t, store.Get(ctx, "mesh:usage:t-1", &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var out string
			err := store.Get(context.Background(), "mesh:absent", &out)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_IncrMonotonic(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v, err := store.Incr(ctx, "mesh:tokens:daily:2026-08-24:progressive", 100, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(100), v)

			v, err = store.Incr(ctx, "mesh:tokens:daily:2026-08-24:progressive", 50, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(150), v)
		})
	}
}

func TestStore_IncrByFloat(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v, err := store.IncrByFloat(ctx, "mesh:cost:daily:2026-08-24", 0.25, time.Hour)
			require.NoError(t, err)
			assert.InDelta(t, 0.25, v, 1e-9)

			v, err = store.IncrByFloat(ctx, "mesh:cost:daily:2026-08-24", 0.75, time.Hour)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, v, 1e-9)
		})
	}
}

func TestStore_KeysPattern(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "mesh:agents:jorge_seller", "a", 0))
			require.NoError(t, store.Set(ctx, "mesh:agents:mcp_ghl", "b", 0))
			require.NoError(t, store.Set(ctx, "mesh:usage:t-1", "c", 0))

			keys, err := store.Keys(ctx, "mesh:agents:*")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"mesh:agents:jorge_seller", "mesh:agents:mcp_ghl"}, keys)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "k", "v", 0))
			require.NoError(t, store.Delete(ctx, "k"))
			require.NoError(t, store.Delete(ctx, "k")) // idempotent

			var out string
			assert.ErrorIs(t, store.Get(ctx, "k", &out), ErrNotFound)
		})
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	var out string
	require.NoError(t, store.Get(ctx, "k", &out))

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, store.Get(ctx, "k", &out), ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestRedis_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	mr.FastForward(2 * time.Minute)

	var out string
	assert.ErrorIs(t, store.Get(ctx, "k", &out), ErrNotFound)
}

func TestMemory_CounterTTLAnchoredToFirstWrite(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	_, err := store.Incr(ctx, "counter", 1, time.Hour)
	require.NoError(t, err)

	// Later increments must not extend the window.
	now = now.Add(50 * time.Minute)
	_, err = store.Incr(ctx, "counter", 1, time.Hour)
	require.NoError(t, err)

	now = now.Add(15 * time.Minute) // 65m after first write
	var out int64
	assert.ErrorIs(t, store.Get(ctx, "counter", &out), ErrNotFound)
}
