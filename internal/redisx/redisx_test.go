package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestSequencerIncrements(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	key := "movement:PXK:test-" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(ctx, "seq:"+key) })

	seq := NewSequencer(rdb)
	a, err := seq.Next(ctx, key)
	require.NoError(t, err)
	b, err := seq.Next(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(1), a)
	require.Equal(t, int64(2), b)
}

func TestTrackingCacheRoundTrip(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	cache := NewTrackingCache(rdb, time.Minute)
	code := "ORD-" + uuid.NewString()[:8]
	t.Cleanup(func() { rdb.Del(ctx, "track:"+code, "trackgen:"+code) })

	_, gen, ok, err := cache.Get(ctx, code)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Put(ctx, orders.Order{ID: "o1", Code: code, Status: orders.StatusShipping}, gen))
	got, _, ok, err := cache.Get(ctx, code)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, orders.StatusShipping, got.Status)

	require.NoError(t, cache.Evict(ctx, code))
	_, _, ok, err = cache.Get(ctx, code)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTrackingCacheDropsFillAfterEvict(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	cache := NewTrackingCache(rdb, time.Minute)
	code := "ORD-" + uuid.NewString()[:8]
	t.Cleanup(func() { rdb.Del(ctx, "track:"+code, "trackgen:"+code) })

	_, gen, ok, err := cache.Get(ctx, code)
	require.NoError(t, err)
	require.False(t, ok)

	// a transition commits and evicts while the old snapshot is still in flight
	require.NoError(t, cache.Evict(ctx, code))
	require.NoError(t, cache.Put(ctx, orders.Order{ID: "o1", Code: code, Status: orders.StatusShipping}, gen))

	_, next, ok, err := cache.Get(ctx, code)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, gen+1, next)

	require.NoError(t, cache.Put(ctx, orders.Order{ID: "o1", Code: code, Status: orders.StatusCompleted}, next))
	got, _, ok, err := cache.Get(ctx, code)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, orders.StatusCompleted, got.Status)
}

func TestDedupClaimOnce(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	d := NewDedup(rdb, "test")
	id := uuid.NewString()
	t.Cleanup(func() { _ = d.Release(ctx, id) })

	first, err := d.Claim(ctx, id)
	require.NoError(t, err)
	require.True(t, first)
	again, err := d.Claim(ctx, id)
	require.NoError(t, err)
	require.False(t, again)
}
