//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/repository"
	red "telegram-weather-bot/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerSubscriberRepo mocks the database repository that the decorator wraps.
type mockInnerSubscriberRepo struct {
	SaveFunc                   func(ctx context.Context, tx repository.Tx, s *model.Subscriber) error
	FindByTelegramIDFunc       func(ctx context.Context, tx repository.Tx, tgID int64) (*model.Subscriber, error)
	UpdateCityFunc             func(ctx context.Context, tx repository.Tx, tgID int64, city string) error
	UpdateNotificationTimeFunc func(ctx context.Context, tx repository.Tx, tgID int64, hhmm string) error
	SetDailyNotificationsFunc  func(ctx context.Context, tx repository.Tx, tgID int64, enabled bool) error
	ListDueFunc                func(ctx context.Context, tx repository.Tx, targetTime, defaultTime string) ([]model.DueSubscriber, error)
}

func (m *mockInnerSubscriberRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscriber) error {
	return m.SaveFunc(ctx, tx, s)
}
func (m *mockInnerSubscriberRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Subscriber, error) {
	return m.FindByTelegramIDFunc(ctx, tx, tgID)
}
func (m *mockInnerSubscriberRepo) UpdateCity(ctx context.Context, tx repository.Tx, tgID int64, city string) error {
	return m.UpdateCityFunc(ctx, tx, tgID, city)
}
func (m *mockInnerSubscriberRepo) UpdateNotificationTime(ctx context.Context, tx repository.Tx, tgID int64, hhmm string) error {
	return m.UpdateNotificationTimeFunc(ctx, tx, tgID, hhmm)
}
func (m *mockInnerSubscriberRepo) SetDailyNotifications(ctx context.Context, tx repository.Tx, tgID int64, enabled bool) error {
	return m.SetDailyNotificationsFunc(ctx, tx, tgID, enabled)
}
func (m *mockInnerSubscriberRepo) ListDue(ctx context.Context, tx repository.Tx, targetTime, defaultTime string) ([]model.DueSubscriber, error) {
	return m.ListDueFunc(ctx, tx, targetTime, defaultTime)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc        func(ctx context.Context, key string) (string, error)
	SetFunc        func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc        func(ctx context.Context, keys ...string) error
	PingFunc       func(ctx context.Context) error
	IncrWindowFunc func(ctx context.Context, key string, window time.Duration) (int64, error)
	CloseFunc      func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return m.IncrWindowFunc(ctx, key, window)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
