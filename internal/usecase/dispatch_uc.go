package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/domain/ports/repository"
	"telegram-weather-bot/internal/infra/logging"
	"telegram-weather-bot/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Compile-time check
var _ DispatchUseCase = (*dispatchUC)(nil)

// DispatchReport summarises one dispatch pass.
type DispatchReport struct {
	TargetTime     string `json:"target_time"`
	Matched        int    `json:"matched"`
	Cities         int    `json:"cities"`
	CitiesFailed   int    `json:"cities_failed"`
	Delivered      int    `json:"delivered"`
	DeliveryFailed int    `json:"delivery_failed"`
	Alerts         int    `json:"alerts"`
}

// DispatchUseCase sends the daily weather to every subscriber due at a given minute.
type DispatchUseCase interface {
	// Dispatch runs one pass. An empty overrideTime means the current UTC "HH:MM".
	Dispatch(ctx context.Context, overrideTime string) (*DispatchReport, error)
}

type DispatchOption func(*dispatchUC)

// WithClock replaces time.Now for target-time computation.
func WithClock(now func() time.Time) DispatchOption {
	return func(d *dispatchUC) { d.now = now }
}

// WithCityConcurrency bounds how many cities are processed at once.
func WithCityConcurrency(n int) DispatchOption {
	return func(d *dispatchUC) {
		if n > 0 {
			d.cityLimit = n
		}
	}
}

// WithSendConcurrency bounds concurrent deliveries within one city group.
func WithSendConcurrency(n int) DispatchOption {
	return func(d *dispatchUC) {
		if n > 0 {
			d.sendLimit = n
		}
	}
}

type dispatchUC struct {
	subs        repository.SubscriberRepository
	weather     adapter.WeatherGateway
	bot         adapter.TelegramBotAdapter
	formatter   *Formatter
	defaultTime string
	now         func() time.Time
	cityLimit   int
	sendLimit   int
	log         *zerolog.Logger
}

func NewDispatchUseCase(
	subs repository.SubscriberRepository,
	weather adapter.WeatherGateway,
	bot adapter.TelegramBotAdapter,
	formatter *Formatter,
	defaultTime string,
	logger *zerolog.Logger,
	opts ...DispatchOption,
) *dispatchUC {
	d := &dispatchUC{
		subs:        subs,
		weather:     weather,
		bot:         bot,
		formatter:   formatter,
		defaultTime: defaultTime,
		now:         time.Now,
		cityLimit:   4,
		sendLimit:   8,
		log:         logging.Component(logger, "dispatcher"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// dispatchCounters is shared by the city goroutines of one pass.
type dispatchCounters struct {
	citiesFailed   atomic.Int64
	delivered      atomic.Int64
	deliveryFailed atomic.Int64
	alerts         atomic.Int64
}

func (d *dispatchUC) Dispatch(ctx context.Context, overrideTime string) (report *DispatchReport, err error) {
	start := time.Now()
	ctx = logging.WithTraceID(ctx, ulid.Make().String())
	log := logging.With(ctx, d.log)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("dispatch tick aborted")
			err = fmt.Errorf("dispatch panic: %v", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		} else if report != nil && report.Matched == 0 {
			outcome = "empty"
		}
		metrics.IncDispatchTick(outcome)
		metrics.ObserveDispatchTick(time.Since(start))
	}()

	target := overrideTime
	if target == "" {
		target = model.ClockTime(d.now())
	} else if target, err = model.NormalizeNotificationTime(target); err != nil {
		return nil, err
	}

	due, err := d.subs.ListDue(ctx, repository.NoTX, target, d.defaultTime)
	if err != nil {
		log.Error().Err(err).Str("target_time", target).Msg("failed to list due subscribers")
		return nil, fmt.Errorf("list due subscribers: %w", err)
	}

	report = &DispatchReport{TargetTime: target, Matched: len(due)}
	if len(due) == 0 {
		log.Debug().Str("target_time", target).Msg("no subscribers due")
		return report, nil
	}

	groups, order := groupByCity(due)
	report.Cities = len(order)
	log.Info().Str("target_time", target).Int("matched", len(due)).Int("cities", len(order)).Msg("dispatch started")

	var c dispatchCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cityLimit)
	for _, city := range order {
		city, recipients := city, groups[city]
		g.Go(func() error {
			d.dispatchCity(gctx, city, recipients, &c)
			return nil
		})
	}
	_ = g.Wait()

	report.CitiesFailed = int(c.citiesFailed.Load())
	report.Delivered = int(c.delivered.Load())
	report.DeliveryFailed = int(c.deliveryFailed.Load())
	report.Alerts = int(c.alerts.Load())

	log.Info().
		Str("target_time", target).
		Int("delivered", report.Delivered).
		Int("delivery_failed", report.DeliveryFailed).
		Int("cities_failed", report.CitiesFailed).
		Int("alerts", report.Alerts).
		Dur("took", time.Since(start)).
		Msg("dispatch finished")
	return report, nil
}

// groupByCity keys on the stored city string as-is and keeps first-seen order.
func groupByCity(due []model.DueSubscriber) (map[string][]int64, []string) {
	groups := make(map[string][]int64)
	var order []string
	for _, ds := range due {
		if ds.Subscriber == nil {
			continue
		}
		city := ds.Subscriber.City
		if _, ok := groups[city]; !ok {
			order = append(order, city)
		}
		groups[city] = append(groups[city], ds.Subscriber.TelegramID)
	}
	return groups, order
}

func (d *dispatchUC) dispatchCity(ctx context.Context, city string, recipients []int64, c *dispatchCounters) {
	log := logging.With(ctx, d.log).With().Str("city", city).Logger()
	defer func() {
		if r := recover(); r != nil {
			c.citiesFailed.Add(1)
			log.Error().Interface("panic", r).Msg("city processing aborted")
		}
	}()

	snap, err := d.weather.CurrentWeather(ctx, city)
	if err != nil {
		c.citiesFailed.Add(1)
		metrics.IncCityFetchFailure()
		log.Error().Err(err).Int("recipients", len(recipients)).Msg("weather fetch failed; skipping city")
		return
	}

	daily := d.formatter.FormatDaily(snap)
	alert, hasAlert := d.formatter.EvaluateAlert(snap)
	if hasAlert {
		c.alerts.Add(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.sendLimit)
	for _, id := range recipients {
		id := id
		g.Go(func() error {
			d.send(gctx, &log, id, daily, "daily", c)
			if hasAlert {
				d.send(gctx, &log, id, alert, "alert", c)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// send delivers one message and never propagates the failure.
func (d *dispatchUC) send(ctx context.Context, log *zerolog.Logger, chatID int64, text, kind string, c *dispatchCounters) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("tg_id", chatID).Str("kind", kind).Msg("send panicked")
			ok = false
		}
		outcome := "sent"
		if !ok {
			outcome = "failed"
			c.deliveryFailed.Add(1)
		} else {
			c.delivered.Add(1)
		}
		metrics.IncDispatchMessage(kind, outcome)
	}()

	err := d.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: adapter.ParseModeHTML,
	})
	if err != nil {
		log.Warn().Err(err).Int64("tg_id", chatID).Str("kind", kind).Msg("failed to deliver message")
		return false
	}
	return true
}
