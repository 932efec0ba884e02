package usecase

import (
	"context"

	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ WeatherUseCase = (*weatherUC)(nil)

// WeatherUseCase answers on-demand weather requests with ready-to-send HTML.
type WeatherUseCase interface {
	// Current returns the formatted weather and, when rules trigger, a separate alert text.
	Current(ctx context.Context, city string) (text string, alert string, err error)
	Forecast(ctx context.Context, city string, days int) (string, error)
}

type weatherUC struct {
	weather   adapter.WeatherGateway
	formatter *Formatter
	log       *zerolog.Logger
}

func NewWeatherUseCase(weather adapter.WeatherGateway, formatter *Formatter, logger *zerolog.Logger) *weatherUC {
	return &weatherUC{weather: weather, formatter: formatter, log: logger}
}

func (u *weatherUC) Current(ctx context.Context, city string) (string, string, error) {
	defer logging.TraceDuration(u.log, "WeatherUC.Current")()

	snap, err := u.weather.CurrentWeather(ctx, city)
	if err != nil {
		return "", "", err
	}
	alert, _ := u.formatter.EvaluateAlert(snap)
	return u.formatter.FormatCurrent(snap), alert, nil
}

func (u *weatherUC) Forecast(ctx context.Context, city string, days int) (string, error) {
	defer logging.TraceDuration(u.log, "WeatherUC.Forecast")()

	fc, err := u.weather.Forecast(ctx, city, days)
	if err != nil {
		return "", err
	}
	return u.formatter.FormatForecast(fc), nil
}
