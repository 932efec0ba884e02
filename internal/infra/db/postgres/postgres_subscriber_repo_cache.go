package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/repository"
	"telegram-weather-bot/internal/infra/metrics"
	red "telegram-weather-bot/internal/infra/redis"
)

var _ repository.SubscriberRepository = (*subscriberRepoCacheDecorator)(nil)

const subscriberCacheTTL = 10 * time.Minute

type subscriberRepoCacheDecorator struct {
	inner repository.SubscriberRepository
	cache red.RedisClient
	ttl   time.Duration
}

// NewSubscriberRepoCacheDecorator caches FindByTelegramID outside transactions.
// Every write drops the cached entry.
func NewSubscriberRepoCacheDecorator(inner repository.SubscriberRepository, cache red.RedisClient) repository.SubscriberRepository {
	return &subscriberRepoCacheDecorator{inner: inner, cache: cache, ttl: subscriberCacheTTL}
}

func subscriberKey(tgID int64) string { return fmt.Sprintf("subscriber:tgid:%d", tgID) }

func (d *subscriberRepoCacheDecorator) invalidate(ctx context.Context, tgID int64) {
	_ = d.cache.Del(ctx, subscriberKey(tgID))
}

func (d *subscriberRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, s *model.Subscriber) error {
	if err := d.inner.Save(ctx, tx, s); err != nil {
		return err
	}
	d.invalidate(ctx, s.TelegramID)
	return nil
}

func (d *subscriberRepoCacheDecorator) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Subscriber, error) {
	// Reads inside a transaction must see the transaction's own writes.
	if tx != nil {
		metrics.IncCacheRequest("subscriber", "bypass")
		return d.inner.FindByTelegramID(ctx, tx, tgID)
	}

	key := subscriberKey(tgID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var s model.Subscriber
		if json.Unmarshal([]byte(val), &s) == nil {
			metrics.IncCacheRequest("subscriber", "hit")
			return &s, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest("subscriber", "error")
	}

	metrics.IncCacheRequest("subscriber", "miss")
	s, err := d.inner.FindByTelegramID(ctx, tx, tgID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(s); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return s, nil
}

func (d *subscriberRepoCacheDecorator) UpdateCity(ctx context.Context, tx repository.Tx, tgID int64, city string) error {
	if err := d.inner.UpdateCity(ctx, tx, tgID, city); err != nil {
		return err
	}
	d.invalidate(ctx, tgID)
	return nil
}

func (d *subscriberRepoCacheDecorator) UpdateNotificationTime(ctx context.Context, tx repository.Tx, tgID int64, hhmm string) error {
	if err := d.inner.UpdateNotificationTime(ctx, tx, tgID, hhmm); err != nil {
		return err
	}
	d.invalidate(ctx, tgID)
	return nil
}

func (d *subscriberRepoCacheDecorator) SetDailyNotifications(ctx context.Context, tx repository.Tx, tgID int64, enabled bool) error {
	if err := d.inner.SetDailyNotifications(ctx, tx, tgID, enabled); err != nil {
		return err
	}
	d.invalidate(ctx, tgID)
	return nil
}

// ListDue is not cached; the dispatcher needs the current state every tick.
func (d *subscriberRepoCacheDecorator) ListDue(ctx context.Context, tx repository.Tx, targetTime, defaultTime string) ([]model.DueSubscriber, error) {
	return d.inner.ListDue(ctx, tx, targetTime, defaultTime)
}
