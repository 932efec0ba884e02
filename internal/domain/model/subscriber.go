package model

import (
	"fmt"
	"strings"
	"time"

	"telegram-weather-bot/internal/domain"
)

// Subscriber is a Telegram user with weather preferences.
// NotificationTime is a zero-padded "HH:MM" in UTC; empty means the process default.
type Subscriber struct {
	TelegramID         int64
	Username           string
	City               string
	NotificationTime   string
	DailyNotifications bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DueSubscriber pairs a subscriber with the notification time it matched on.
type DueSubscriber struct {
	Subscriber    *Subscriber
	EffectiveTime string
}

func NewSubscriber(tgID int64, username string) (*Subscriber, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Subscriber{
		TelegramID: tgID,
		Username:   username,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// EffectiveTime returns the explicit notification time or def when unset.
func (s *Subscriber) EffectiveTime(def string) string {
	if s.NotificationTime == "" {
		return def
	}
	return s.NotificationTime
}

// HasCity reports whether a city was chosen.
func (s *Subscriber) HasCity() bool {
	return strings.TrimSpace(s.City) != ""
}

// NormalizeNotificationTime parses "H:MM" or "HH:MM" and returns the zero-padded form.
func NormalizeNotificationTime(raw string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: notification time %q is not HH:MM", domain.ErrInvalidArgument, raw)
	}
	return t.Format("15:04"), nil
}

// ClockTime formats t as the UTC "HH:MM" used for matching subscribers.
func ClockTime(t time.Time) string {
	return t.UTC().Format("15:04")
}
