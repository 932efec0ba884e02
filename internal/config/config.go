// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev             bool          `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type BotConfig struct {
	Token    string  `yaml:"token" env:"BOT_TOKEN" validate:"required_if=Mode real"`
	Mode     string  `yaml:"mode" env:"BOT_MODE" validate:"oneof=real noop"` // real | noop
	Workers  int     `yaml:"workers" env:"BOT_WORKERS" validate:"min=1"`   // polling workers
	AdminIDs []int64 `yaml:"admin_ids" env:"BOT_ADMIN_IDS" envSeparator:","`
	Lang     string  `yaml:"lang" env:"BOT_LANG" validate:"oneof=en ru"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`     // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"`   // json|console
	Sampling bool   `yaml:"sampling" env:"LOG_SAMPLING"` // enable sampling in prod
}

type AdminConfig struct {
	Addr      string `yaml:"addr" env:"ADMIN_ADDR"`
	JWTSecret string `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL" validate:"required"`
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS" validate:"min=1"`
}

// RedisConfig leaves URL empty to run without Redis; caches and state fall back to memory.
type RedisConfig struct {
	URL      string `yaml:"url" env:"REDIS_URL"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type WeatherConfig struct {
	APIKey          string        `yaml:"api_key" env:"OPENWEATHER_API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"OPENWEATHER_BASE_URL" validate:"url"`
	GeoURL          string        `yaml:"geo_url" env:"OPENWEATHER_GEO_URL" validate:"url"`
	Units           string        `yaml:"units" env:"WEATHER_UNITS" validate:"oneof=metric imperial standard"`
	Lang            string        `yaml:"lang" env:"WEATHER_LANG"`
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"WEATHER_CACHE_TTL"`
	MaxForecastDays int           `yaml:"max_forecast_days" env:"WEATHER_MAX_FORECAST_DAYS" validate:"min=1,max=5"`
}

type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT"`
	MaxRetries       int           `yaml:"max_retries" env:"HTTP_MAX_RETRIES" validate:"min=1"`
	InitialDelay     time.Duration `yaml:"initial_delay" env:"HTTP_INITIAL_DELAY"`
	BackoffFactor    float64       `yaml:"backoff_factor" env:"HTTP_BACKOFF_FACTOR" validate:"gte=1"`
	MaxDelay         time.Duration `yaml:"max_delay" env:"HTTP_MAX_DELAY"`
	MaxConnsPerHost  int           `yaml:"max_conns_per_host" env:"HTTP_MAX_CONNS_PER_HOST" validate:"min=1"`
	BreakerThreshold uint32        `yaml:"breaker_threshold" env:"HTTP_BREAKER_THRESHOLD"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" env:"HTTP_BREAKER_COOLDOWN"`
}

type SchedulerConfig struct {
	DailyCron       string        `yaml:"daily_cron" env:"SCHEDULER_DAILY_CRON" validate:"required"`
	DefaultTime     string        `yaml:"default_time" env:"DEFAULT_NOTIFICATION_TIME" validate:"datetime=15:04"`
	LockTTL         time.Duration `yaml:"lock_ttl" env:"SCHEDULER_LOCK_TTL"`
	CityConcurrency int           `yaml:"city_concurrency" env:"SCHEDULER_CITY_CONCURRENCY" validate:"min=1"`
	SendConcurrency int           `yaml:"send_concurrency" env:"SCHEDULER_SEND_CONCURRENCY" validate:"min=1"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Weather   WeatherConfig   `yaml:"weather"`
	HTTP      HTTPConfig      `yaml:"http"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"runtime"`
}

// LoadConfig parses -config and -dev flags and loads the configuration.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	return Load(configPath, dev)
}

// Load reads yaml from path (a missing file means defaults only), overlays
// environment variables and validates the result.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "real"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Lang == "" {
		cfg.Bot.Lang = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = ":8080"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 8
	}

	if cfg.Weather.BaseURL == "" {
		cfg.Weather.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	if cfg.Weather.GeoURL == "" {
		cfg.Weather.GeoURL = "https://api.openweathermap.org/geo/1.0"
	}
	if cfg.Weather.Units == "" {
		cfg.Weather.Units = "metric"
	}
	if cfg.Weather.Lang == "" {
		cfg.Weather.Lang = "en"
	}
	if cfg.Weather.CacheTTL <= 0 {
		cfg.Weather.CacheTTL = 300 * time.Second
	}
	if cfg.Weather.MaxForecastDays <= 0 {
		cfg.Weather.MaxForecastDays = 5
	}

	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = 10 * time.Second
	}
	if cfg.HTTP.MaxRetries <= 0 {
		cfg.HTTP.MaxRetries = 3
	}
	if cfg.HTTP.InitialDelay <= 0 {
		cfg.HTTP.InitialDelay = 500 * time.Millisecond
	}
	if cfg.HTTP.BackoffFactor < 1 {
		cfg.HTTP.BackoffFactor = 2
	}
	if cfg.HTTP.MaxDelay <= 0 {
		cfg.HTTP.MaxDelay = 10 * time.Second
	}
	if cfg.HTTP.MaxConnsPerHost <= 0 {
		cfg.HTTP.MaxConnsPerHost = 100
	}
	if cfg.HTTP.BreakerThreshold == 0 {
		cfg.HTTP.BreakerThreshold = 5
	}
	if cfg.HTTP.BreakerCooldown <= 0 {
		cfg.HTTP.BreakerCooldown = 30 * time.Second
	}

	if cfg.Scheduler.DailyCron == "" {
		cfg.Scheduler.DailyCron = "* * * * *"
	}
	if cfg.Scheduler.DefaultTime == "" {
		cfg.Scheduler.DefaultTime = "08:00"
	}
	if cfg.Scheduler.LockTTL <= 0 {
		cfg.Scheduler.LockTTL = 55 * time.Second
	}
	if cfg.Scheduler.CityConcurrency <= 0 {
		cfg.Scheduler.CityConcurrency = 4
	}
	if cfg.Scheduler.SendConcurrency <= 0 {
		cfg.Scheduler.SendConcurrency = 8
	}

	if cfg.Runtime.ShutdownTimeout <= 0 {
		cfg.Runtime.ShutdownTimeout = 10 * time.Second
	}
}

func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := language.Parse(cfg.Weather.Lang); err != nil {
		return fmt.Errorf("invalid config: weather.lang %q: %w", cfg.Weather.Lang, err)
	}
	if cfg.Admin.JWTSecret != "" && len(strings.TrimSpace(cfg.Admin.JWTSecret)) < 16 {
		return errors.New("invalid config: admin.jwt_secret must be at least 16 characters")
	}
	return nil
}
