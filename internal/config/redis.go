package config

import (
	"auction-engine/utils"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis when REDIS_ADDR is set. It returns nil
// when Redis is not configured or unreachable; callers then run without
// live broadcasts and without the sweep lease.
func NewRedisClient(cfg Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		utils.Warn("redis unreachable, running without live broadcasts and sweep lease",
			utils.ErrFields(err, map[string]any{"addr": cfg.RedisAddr}))
		_ = client.Close()
		return nil
	}
	return client
}
