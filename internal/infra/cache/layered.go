package cache

import (
	"context"
	"errors"
	"time"

	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/infra/metrics"
	red "telegram-weather-bot/internal/infra/redis"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ adapter.Cache = (*Layered)(nil)

// Layered prefers a shared Redis backend and falls back to the in-process
// cache when Redis is not configured or fails. Backend errors are logged, never returned.
type Layered struct {
	remote red.RedisClient
	local  *MemoryCache
	log    *zerolog.Logger
}

// NewLayered builds the cache; remote may be nil.
func NewLayered(remote red.RedisClient, local *MemoryCache, logger *zerolog.Logger) *Layered {
	if local == nil {
		local = NewMemoryCache()
	}
	l := logger.With().Str("component", "cache").Logger()
	return &Layered{remote: remote, local: local, log: &l}
}

func (c *Layered) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.remote != nil {
		val, err := c.remote.Get(ctx, key)
		switch {
		case err == nil:
			metrics.IncCacheRequest("redis", "hit")
			return []byte(val), true
		case errors.Is(err, redis.Nil):
			metrics.IncCacheRequest("redis", "miss")
			return nil, false
		default:
			metrics.IncCacheRequest("redis", "fallback")
			c.log.Warn().Err(err).Str("key", key).Msg("redis get failed, using in-process cache")
		}
	}

	v, ok := c.local.Get(ctx, key)
	if ok {
		metrics.IncCacheRequest("memory", "hit")
	} else {
		metrics.IncCacheRequest("memory", "miss")
	}
	return v, ok
}

func (c *Layered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.remote != nil {
		err := c.remote.Set(ctx, key, value, ttl)
		if err == nil {
			return
		}
		c.log.Warn().Err(err).Str("key", key).Msg("redis set failed, using in-process cache")
	}
	c.local.Set(ctx, key, value, ttl)
}
