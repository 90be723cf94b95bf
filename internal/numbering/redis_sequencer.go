package numbering

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const counterTTL = 48 * time.Hour

type counterStore interface {
	CounterKey(name string) string
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisSequencer keeps counters in Redis. Keys expire after two days since
// only the current day's counter is ever read.
type RedisSequencer struct {
	store counterStore
}

func NewRedisSequencer(store counterStore) *RedisSequencer {
	return &RedisSequencer{store: store}
}

// WithTx is a no-op; Redis counters live outside the database transaction.
func (s *RedisSequencer) WithTx(*gorm.DB) Sequencer {
	return s
}

func (s *RedisSequencer) Next(ctx context.Context, prefix, day string) (int64, error) {
	return s.store.IncrWithTTL(ctx, s.store.CounterKey(prefix+":"+day), counterTTL)
}
