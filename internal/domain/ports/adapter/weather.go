package adapter

import (
	"context"

	"telegram-weather-bot/internal/domain/model"
)

// WeatherGateway fetches normalized weather for a city name.
type WeatherGateway interface {
	CurrentWeather(ctx context.Context, city string) (*model.Snapshot, error)
	Forecast(ctx context.Context, city string, days int) (*model.Forecast, error)
}
