package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Sequencer numbers movement codes with INCR, so every API replica shares one counter per key.
type Sequencer struct {
	rdb redis.Cmdable
}

func NewSequencer(rdb redis.Cmdable) *Sequencer { return &Sequencer{rdb: rdb} }

func (s *Sequencer) Next(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Incr(ctx, fmt.Sprintf(KeySequence, key)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}
