package scheduler

import (
	"auction-engine/utils"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTickLock grants a sweep tick to whichever replica sets the key first.
// The lease simply expires; there is no explicit release.
type RedisTickLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewRedisTickLock creates a lease on key lasting ttl per acquisition
func NewRedisTickLock(client *redis.Client, key string, ttl time.Duration) *RedisTickLock {
	return &RedisTickLock{
		client: client,
		key:    key,
		owner:  utils.NewInstanceID(),
		ttl:    ttl,
	}
}

// TryAcquire reports whether this replica owns the current tick
func (l *RedisTickLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", l.key, err)
	}
	return ok, nil
}
