package weather

import (
	"fmt"
	"time"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/model"
)

// Provider JSON. Numeric fields are pointers so that absent values are
// distinguishable from zero.

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type owmMain struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
	Humidity  *float64 `json:"humidity"`
}

type owmWind struct {
	Speed *float64 `json:"speed"`
}

type owmCurrent struct {
	Name     string         `json:"name"`
	Dt       int64          `json:"dt"`
	Timezone int            `json:"timezone"`
	Main     owmMain        `json:"main"`
	Wind     owmWind        `json:"wind"`
	Weather  []owmCondition `json:"weather"`
}

type owmForecastEntry struct {
	Dt      int64          `json:"dt"`
	Main    owmMain        `json:"main"`
	Wind    owmWind        `json:"wind"`
	Weather []owmCondition `json:"weather"`
}

type owmForecast struct {
	List []owmForecastEntry `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

type owmGeoResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

func malformed(field string) error {
	return fmt.Errorf("%w: missing %s", domain.ErrMalformedPayload, field)
}

// toSnapshot maps the current-weather payload, failing on any missing required field.
func (c *owmCurrent) toSnapshot(requestedCity string) (*model.Snapshot, error) {
	switch {
	case c.Main.Temp == nil:
		return nil, malformed("main.temp")
	case c.Main.FeelsLike == nil:
		return nil, malformed("main.feels_like")
	case c.Main.Humidity == nil:
		return nil, malformed("main.humidity")
	case c.Wind.Speed == nil:
		return nil, malformed("wind.speed")
	case len(c.Weather) == 0:
		return nil, malformed("weather[0]")
	}

	city := c.Name
	if city == "" {
		city = requestedCity
	}
	s := &model.Snapshot{
		City:        city,
		Temperature: *c.Main.Temp,
		FeelsLike:   *c.Main.FeelsLike,
		Humidity:    *c.Main.Humidity,
		WindSpeed:   *c.Wind.Speed,
		Condition:   c.Weather[0].Main,
		Description: c.Weather[0].Description,
	}
	if c.Dt > 0 {
		s.ObservedAt = time.Unix(c.Dt, 0).UTC()
	}
	return s, nil
}
