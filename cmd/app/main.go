// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"telegram-weather-bot/internal/application"
	"telegram-weather-bot/internal/config"
	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/domain/ports/repository"
	tele "telegram-weather-bot/internal/infra/adapters/telegram"
	"telegram-weather-bot/internal/infra/cache"
	pg "telegram-weather-bot/internal/infra/db/postgres"
	"telegram-weather-bot/internal/infra/httpclient"
	"telegram-weather-bot/internal/infra/i18n"
	"telegram-weather-bot/internal/infra/logging"
	"telegram-weather-bot/internal/infra/metrics"
	red "telegram-weather-bot/internal/infra/redis"
	"telegram-weather-bot/internal/infra/sched"
	"telegram-weather-bot/internal/infra/weather"
	"telegram-weather-bot/internal/infra/web"
	"telegram-weather-bot/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const stateTTL = 15 * time.Minute

type botRunner interface {
	adapter.TelegramBotAdapter
	StartPolling(ctx context.Context) error
	StopPolling()
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("weather bot stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	checks := map[string]web.HealthCheck{
		"postgres": func(ctx context.Context) error {
			pg.ReportPoolStats(pool)
			return pool.Ping(ctx)
		},
	}

	// ---- Redis (optional) ----
	var (
		subRepo     repository.SubscriberRepository = pg.NewPostgresSubscriberRepo(pool)
		states      repository.StateRepository
		weatherKV   adapter.Cache
		locker      sched.Locker
		rateLimiter tele.RateLimiter
	)
	local := cache.NewMemoryCache()
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		subRepo = pg.NewSubscriberRepoCacheDecorator(subRepo, redisClient)
		states = red.NewStateRepo(redisClient)
		weatherKV = cache.NewLayered(redisClient, local, logger)
		locker = red.NewLocker(redisClient)
		rateLimiter = red.NewRateLimiter(redisClient)
		checks["redis"] = redisClient.Ping
	} else {
		logger.Warn().Msg("redis disabled; using in-process cache, state and no rate limiting")
		states = cache.NewStateRepo(local, stateTTL)
		weatherKV = cache.NewLayered(nil, local, logger)
	}

	// ---- Weather ----
	httpClient := httpclient.New(httpclient.Config{
		Timeout:          cfg.HTTP.Timeout,
		MaxRetries:       cfg.HTTP.MaxRetries,
		InitialDelay:     cfg.HTTP.InitialDelay,
		BackoffFactor:    cfg.HTTP.BackoffFactor,
		MaxDelay:         cfg.HTTP.MaxDelay,
		MaxConnsPerHost:  cfg.HTTP.MaxConnsPerHost,
		BreakerThreshold: cfg.HTTP.BreakerThreshold,
		BreakerCooldown:  cfg.HTTP.BreakerCooldown,
	}, logger)
	defer httpClient.Close()

	gateway := weather.NewGateway(weather.Config{
		APIKey:          cfg.Weather.APIKey,
		BaseURL:         cfg.Weather.BaseURL,
		GeoURL:          cfg.Weather.GeoURL,
		Units:           cfg.Weather.Units,
		Lang:            cfg.Weather.Lang,
		CacheTTL:        cfg.Weather.CacheTTL,
		MaxForecastDays: cfg.Weather.MaxForecastDays,
	}, httpClient, weatherKV, logger)
	if cfg.Weather.APIKey == "" {
		logger.Warn().Msg("openweather api key is not set; weather lookups will fail")
	}

	// ---- Use cases ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Lang)
	if err != nil {
		return err
	}
	formatter := usecase.NewFormatter(cfg.Weather.Units, translator)
	subUC := usecase.NewSubscriberUseCase(subRepo, tm, gateway, cfg.Scheduler.DefaultTime, logger)
	weatherUC := usecase.NewWeatherUseCase(gateway, formatter, logger)

	// DispatchUC is bound below, once the bot exists.
	facade := application.NewBotFacade(subUC, weatherUC, nil, states, translator, cfg.Weather.MaxForecastDays, logger)

	// ---- Telegram ----
	var bot botRunner
	if cfg.Bot.Mode == "noop" {
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		rb, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, rateLimiter, translator, logger)
		if err != nil {
			return err
		}
		bot = rb
	}

	dispatchUC := usecase.NewDispatchUseCase(subRepo, gateway, bot, formatter, cfg.Scheduler.DefaultTime, logger,
		usecase.WithCityConcurrency(cfg.Scheduler.CityConcurrency),
		usecase.WithSendConcurrency(cfg.Scheduler.SendConcurrency),
	)
	facade.DispatchUC = dispatchUC

	// ---- Daily worker ----
	worker := sched.NewDailyWorker(cfg.Scheduler.DailyCron, cfg.Scheduler.LockTTL, dispatchUC, locker, logger)
	if err := worker.Start(ctx); err != nil {
		return err
	}
	defer worker.Stop()

	// ---- Admin HTTP ----
	var auth *web.AuthManager
	if cfg.Admin.JWTSecret != "" {
		auth = web.NewAuthManager(cfg.Admin.JWTSecret, time.Hour)
	} else {
		logger.Warn().Msg("admin.jwt_secret is empty; POST /api/v1/dispatch is disabled")
	}
	server := web.NewServer(cfg.Admin.Addr, dispatchUC, auth, checks, logger)
	errc := make(chan error, 2)
	go func() { errc <- server.Start() }()

	go func() {
		if err := bot.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()

	logger.Info().Str("version", version).Str("bot_mode", cfg.Bot.Mode).Msg("weather bot started")

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err = <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("component failed; shutting down")
		}
	}

	bot.StopPolling()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.ShutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logger.Error().Err(serr).Msg("admin http shutdown")
	}
	return err
}
