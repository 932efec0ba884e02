package model

import "time"

// Snapshot is a normalized current-weather reading for one city.
type Snapshot struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Condition   string    `json:"condition"` // provider group, e.g. "Rain"
	Description string    `json:"description"`
	ObservedAt  time.Time `json:"observed_at"`
}

// ForecastDay aggregates the sub-daily entries of one local calendar day.
// Averages are nil when no entry reported the value.
type ForecastDay struct {
	Date         time.Time `json:"date"`
	TempMin      *float64  `json:"temp_min,omitempty"`
	TempMax      *float64  `json:"temp_max,omitempty"`
	TempAvg      *float64  `json:"temp_avg,omitempty"`
	FeelsLikeAvg *float64  `json:"feels_like_avg,omitempty"`
	HumidityAvg  *float64  `json:"humidity_avg,omitempty"`
	WindSpeedAvg *float64  `json:"wind_speed_avg,omitempty"`
	Condition    string    `json:"condition"`
	Description  string    `json:"description"`
}

// Forecast is an ordered sequence of days for a city.
type Forecast struct {
	City string        `json:"city"`
	Days []ForecastDay `json:"days"`
	// TimezoneOffset is the location's offset from UTC in seconds.
	TimezoneOffset int `json:"timezone_offset"`
}
