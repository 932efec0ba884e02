package application

import (
	"context"

	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----

type SubscriberUseCaseIface interface {
	Register(ctx context.Context, tgID int64, username string) (*model.Subscriber, error)
	Get(ctx context.Context, tgID int64) (*model.Subscriber, error)
	SetCity(ctx context.Context, tgID int64, city string) (string, error)
	SetNotificationTime(ctx context.Context, tgID int64, raw string) (string, error)
	Subscribe(ctx context.Context, tgID int64) error
	Unsubscribe(ctx context.Context, tgID int64) error
	DefaultTime() string
}

type WeatherUseCaseIface interface {
	Current(ctx context.Context, city string) (string, string, error)
	Forecast(ctx context.Context, city string, days int) (string, error)
}

type DispatchUseCaseIface interface {
	Dispatch(ctx context.Context, overrideTime string) (*usecase.DispatchReport, error)
}

// Translator resolves reply texts for the configured bot language.
type Translator interface {
	T(key string, args ...interface{}) string
}
