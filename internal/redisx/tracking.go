package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// TrackingCache stores order snapshots as JSON keyed by the upper-cased order code. Every
// eviction bumps a per-code generation; a fill only lands while the generation it read
// is still current, so a snapshot read before a transition can't outlive its eviction.
type TrackingCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewTrackingCache(rdb redis.Cmdable, ttl time.Duration) *TrackingCache {
	if ttl <= 0 {
		ttl = TTLTracking
	}
	return &TrackingCache{rdb: rdb, ttl: ttl}
}

func trackingKeys(code string) (snap, gen string) {
	c := strings.ToUpper(strings.TrimSpace(code))
	return fmt.Sprintf(KeyTracking, c), fmt.Sprintf(KeyTrackingGen, c)
}

// SET hanya kalau generasi belum berubah sejak Get
var putIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if (cur or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *TrackingCache) Get(ctx context.Context, code string) (orders.Order, int64, bool, error) {
	snapKey, genKey := trackingKeys(code)
	vals, err := c.rdb.MGet(ctx, snapKey, genKey).Result()
	if err != nil {
		return orders.Order{}, 0, false, err
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return orders.Order{}, 0, false, fmt.Errorf("tracking generation %q: %w", s, err)
		}
	}
	s, ok := vals[0].(string)
	if !ok {
		return orders.Order{}, gen, false, nil
	}
	var o orders.Order
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		// entry rusak dianggap miss, nanti ditimpa
		return orders.Order{}, gen, false, nil
	}
	return o, gen, true, nil
}

// Put stores o unless the code was evicted after gen was read.
func (c *TrackingCache) Put(ctx context.Context, o orders.Order, gen int64) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	snapKey, genKey := trackingKeys(o.Code)
	return putIfGeneration.Run(ctx, c.rdb, []string{snapKey, genKey},
		strconv.FormatInt(gen, 10), string(b), c.ttl.Milliseconds()).Err()
}

func (c *TrackingCache) Evict(ctx context.Context, code string) error {
	snapKey, genKey := trackingKeys(code)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, TTLTrackingGen)
		p.Del(ctx, snapKey)
		return nil
	})
	return err
}
