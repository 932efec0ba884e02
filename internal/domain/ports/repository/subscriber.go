package repository

import (
	"context"

	"telegram-weather-bot/internal/domain/model"
)

type SubscriberRepository interface {
	// Save inserts the subscriber or refreshes the username of an existing one.
	Save(ctx context.Context, tx Tx, s *model.Subscriber) error
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.Subscriber, error)
	UpdateCity(ctx context.Context, tx Tx, tgID int64, city string) error
	// UpdateNotificationTime stores "HH:MM"; an empty value resets to the default.
	UpdateNotificationTime(ctx context.Context, tx Tx, tgID int64, hhmm string) error
	SetDailyNotifications(ctx context.Context, tx Tx, tgID int64, enabled bool) error
	// ListDue returns active subscribers with a city whose effective time equals targetTime.
	ListDue(ctx context.Context, tx Tx, targetTime, defaultTime string) ([]model.DueSubscriber, error)
}
