// Package weather implements the OpenWeather gateway.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/infra/httpclient"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var _ adapter.WeatherGateway = (*Gateway)(nil)

const (
	geoTTL = 24 * time.Hour
	// sharedFetchTimeout bounds an upstream call that is no longer tied to its first caller.
	sharedFetchTimeout = 2 * time.Minute
)

// Fetcher is the subset of the HTTP client the gateway needs.
type Fetcher interface {
	FetchJSON(ctx context.Context, rawURL string, params url.Values, out any) error
}

type Config struct {
	APIKey          string
	BaseURL         string // e.g. https://api.openweathermap.org/data/2.5
	GeoURL          string // e.g. https://api.openweathermap.org/geo/1.0
	Units           string
	Lang            string
	CacheTTL        time.Duration
	MaxForecastDays int
}

// Gateway serves normalized weather with cache-aside lookups. Concurrent misses
// for the same key share one upstream call.
type Gateway struct {
	cfg   Config
	http  Fetcher
	cache adapter.Cache
	group singleflight.Group
	log   *zerolog.Logger
}

func NewGateway(cfg Config, fetcher Fetcher, cache adapter.Cache, logger *zerolog.Logger) *Gateway {
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 300 * time.Second
	}
	if cfg.MaxForecastDays <= 0 {
		cfg.MaxForecastDays = 5
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.GeoURL = strings.TrimRight(cfg.GeoURL, "/")
	l := logger.With().Str("component", "weather_gateway").Logger()
	return &Gateway{cfg: cfg, http: fetcher, cache: cache, log: &l}
}

// NormalizeCity lower-cases, trims and collapses inner whitespace.
func NormalizeCity(city string) string {
	return cases.Lower(language.Und).String(strings.Join(strings.Fields(city), " "))
}

func (g *Gateway) currentKey(city string) string {
	return "weather:current:" + NormalizeCity(city) + ":" + g.cfg.Units
}

func (g *Gateway) forecastKey(city string) string {
	return "weather:forecast:" + NormalizeCity(city) + ":" + g.cfg.Units
}

func (g *Gateway) prepare(city string) error {
	if g.cfg.APIKey == "" {
		return domain.ErrMissingAPIKey
	}
	if NormalizeCity(city) == "" {
		return fmt.Errorf("%w: city is empty", domain.ErrInvalidArgument)
	}
	return nil
}

func (g *Gateway) CurrentWeather(ctx context.Context, city string) (*model.Snapshot, error) {
	if err := g.prepare(city); err != nil {
		return nil, err
	}
	key := g.currentKey(city)

	var cached model.Snapshot
	if g.loadCached(ctx, key, &cached) {
		return &cached, nil
	}

	v, err := g.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		params := url.Values{
			"q":     {strings.TrimSpace(city)},
			"appid": {g.cfg.APIKey},
			"units": {g.cfg.Units},
		}
		if g.cfg.Lang != "" {
			params.Set("lang", g.cfg.Lang)
		}
		var raw owmCurrent
		if err := g.http.FetchJSON(ctx, g.cfg.BaseURL+"/weather", params, &raw); err != nil {
			return nil, g.mapError(err, city)
		}
		snap, err := raw.toSnapshot(strings.TrimSpace(city))
		if err != nil {
			g.log.Error().Err(err).Str("city", city).Msg("unusable current weather payload")
			return nil, err
		}
		g.store(ctx, key, snap, g.cfg.CacheTTL)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	snap := *v.(*model.Snapshot)
	return &snap, nil
}

// Forecast returns up to days local calendar days, starting with today.
func (g *Gateway) Forecast(ctx context.Context, city string, days int) (*model.Forecast, error) {
	if err := g.prepare(city); err != nil {
		return nil, err
	}
	if days < 1 || days > g.cfg.MaxForecastDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidArgument, g.cfg.MaxForecastDays)
	}
	key := g.forecastKey(city)

	var full model.Forecast
	if !g.loadCached(ctx, key, &full) {
		v, err := g.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
			return g.fetchForecast(ctx, city, key)
		})
		if err != nil {
			return nil, err
		}
		full = *v.(*model.Forecast)
	}

	out := &model.Forecast{City: full.City, TimezoneOffset: full.TimezoneOffset}
	if days > len(full.Days) {
		days = len(full.Days)
	}
	out.Days = append([]model.ForecastDay(nil), full.Days[:days]...)
	return out, nil
}

// shared runs fn once for all concurrent callers of key. fn gets a context
// detached from the first caller's cancellation; every caller still stops
// waiting when its own ctx is done.
func (g *Gateway) shared(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ch := g.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gateway) fetchForecast(ctx context.Context, city, key string) (*model.Forecast, error) {
	geo, err := g.geocode(ctx, city)
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"lat":   {strconv.FormatFloat(geo.Lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(geo.Lon, 'f', -1, 64)},
		"appid": {g.cfg.APIKey},
		"units": {g.cfg.Units},
	}
	if g.cfg.Lang != "" {
		params.Set("lang", g.cfg.Lang)
	}
	var raw owmForecast
	if err := g.http.FetchJSON(ctx, g.cfg.BaseURL+"/forecast", params, &raw); err != nil {
		return nil, g.mapError(err, city)
	}
	if len(raw.List) == 0 {
		return nil, malformed("list")
	}

	name := raw.City.Name
	if name == "" {
		name = geo.Name
	}
	f := &model.Forecast{
		City:           name,
		Days:           aggregateDaily(raw.List, raw.City.Timezone),
		TimezoneOffset: raw.City.Timezone,
	}
	g.store(ctx, key, f, g.cfg.CacheTTL)
	return f, nil
}

func (g *Gateway) geocode(ctx context.Context, city string) (*owmGeoResult, error) {
	key := "weather:geo:" + NormalizeCity(city)
	var cached owmGeoResult
	if g.loadCached(ctx, key, &cached) {
		return &cached, nil
	}

	params := url.Values{
		"q":     {strings.TrimSpace(city)},
		"limit": {"1"},
		"appid": {g.cfg.APIKey},
	}
	var results []owmGeoResult
	if err := g.http.FetchJSON(ctx, g.cfg.GeoURL+"/direct", params, &results); err != nil {
		return nil, g.mapError(err, city)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrCityNotFound, city)
	}
	g.store(ctx, key, &results[0], geoTTL)
	return &results[0], nil
}

// mapError turns transport-level failures into domain error kinds.
func (g *Gateway) mapError(err error, city string) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %q", domain.ErrCityNotFound, city)
		case se.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w (status %d)", domain.ErrInvalidAPIKey, se.StatusCode)
		case !se.Transient():
			return fmt.Errorf("weather provider rejected request for %q: %w", city, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
}

func (g *Gateway) loadCached(ctx context.Context, key string, dst any) bool {
	if g.cache == nil {
		return false
	}
	b, ok := g.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

func (g *Gateway) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if g.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("cannot encode cache entry")
		return
	}
	g.cache.Set(ctx, key, b, ttl)
}
