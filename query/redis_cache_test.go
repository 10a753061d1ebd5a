package query_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"safespace/query"
)

func setupRedisCache(t *testing.T, ttl time.Duration) (*query.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return query.NewRedisCache(client, ttl, zaptest.NewLogger(t)), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	t.Parallel()
	cache, mr := setupRedisCache(t, time.Minute)
	ctx := t.Context()

	_, ok, err := cache.Get(ctx, "getUsers|10")
	require.NoError(t, err)
	assert.False(t, ok)

	stored := query.Entry{Value: []byte(`{"documents":[],"total":0}`), StoredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, cache.Set(ctx, "getUsers|10", stored))

	got, ok, err := cache.Get(ctx, "getUsers|10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored.Value, got.Value)
	assert.True(t, stored.StoredAt.Equal(got.StoredAt))

	// Verify the entry carries the configured expiry
	assert.Equal(t, time.Minute, mr.TTL(query.RedisKeyPrefix+"getUsers|10"))
}

func TestRedisCacheDeletePrefix(t *testing.T) {
	t.Parallel()
	cache, mr := setupRedisCache(t, 0)
	ctx := t.Context()

	keys := []string{"getChatRooms|a", "getChatRooms|b", "getChatRoomsX|c", "getMessages|r1"}
	for i := range 300 {
		keys = append(keys, "getFollowers|user-"+strconv.Itoa(i))
	}
	for _, key := range keys {
		require.NoError(t, cache.Set(ctx, key, query.Entry{Value: []byte(`1`)}))
	}

	require.NoError(t, cache.DeletePrefix(ctx, "getChatRooms|"))
	require.NoError(t, cache.DeletePrefix(ctx, "getFollowers|"))

	assert.ElementsMatch(t, []string{
		query.RedisKeyPrefix + "getChatRoomsX|c",
		query.RedisKeyPrefix + "getMessages|r1",
	}, mr.Keys())
}

func TestRedisCacheBacksClient(t *testing.T) {
	t.Parallel()
	cache, _ := setupRedisCache(t, time.Minute)
	ctx := t.Context()
	client := query.NewClient(cache, query.Options{StaleTime: time.Minute}, zaptest.NewLogger(t))
	key := query.NewKey(query.OpGetPostByID, "p1")

	v, err := query.Fetch(ctx, client, key, func(context.Context) (string, error) { return "first", nil })
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	// A second client shares the entry
	other := query.NewClient(cache, query.Options{StaleTime: time.Minute}, zaptest.NewLogger(t))
	v, err = query.Fetch(ctx, other, key, func(context.Context) (string, error) { return "second", nil })
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	require.NoError(t, other.Invalidate(ctx, query.OpGetPostByID))
	v, err = query.Fetch(ctx, client, key, func(context.Context) (string, error) { return "third", nil })
	require.NoError(t, err)
	assert.Equal(t, "third", v)
}
