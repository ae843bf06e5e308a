package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client), mr
}

func TestStoresShareSemantics(t *testing.T) {
	redisStore, _ := newRedis(t)
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrMiss)
			_, err = s.HGetAll(ctx, "missing-hash")
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, SetJSON(ctx, s, "k", sample{Name: "a", Count: 2}, time.Minute))
			var got sample
			require.NoError(t, GetJSON(ctx, s, "k", &got))
			assert.Equal(t, sample{Name: "a", Count: 2}, got)

			require.NoError(t, s.HSet(ctx, "h", map[string]string{"x": "1"}, time.Minute))
			require.NoError(t, s.HSet(ctx, "h", map[string]string{"y": "2"}, time.Minute))
			h, err := s.HGetAll(ctx, "h")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"x": "1", "y": "2"}, h)

			require.NoError(t, s.Delete(ctx, "k", "h"))
			_, err = s.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStoreExpiry(t *testing.T) {
	s, mr := newRedis(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestGetJSONTreatsGarbageAsMiss(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", []byte("{not json"), 0))
	var v sample
	assert.ErrorIs(t, GetJSON(ctx, m, "k", &v), ErrMiss)
}

func TestKeyClass(t *testing.T) {
	assert.Equal(t, "tokens", keyClass(TokenListKey("marketcap", "50", "0", "")))
	assert.Equal(t, "price_stale", keyClass(KeySUIPriceStale))
	assert.Equal(t, "leaderboard", keyClass(LeaderboardKey("24h", "volume", 50)))
}
