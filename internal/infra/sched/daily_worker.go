package sched

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/infra/logging"
	"telegram-weather-bot/internal/infra/metrics"
	"telegram-weather-bot/internal/usecase"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Dispatcher is the use case the worker drives on every tick.
type Dispatcher interface {
	Dispatch(ctx context.Context, overrideTime string) (*usecase.DispatchReport, error)
}

// Locker keeps two instances from dispatching the same minute.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// DailyWorker fires the dispatcher on a cron schedule in UTC.
type DailyWorker struct {
	cron       string
	lockTTL    time.Duration
	dispatcher Dispatcher
	locker     Locker
	now        func() time.Time
	running    atomic.Bool
	scheduler  *gocron.Scheduler
	log        *zerolog.Logger
}

// NewDailyWorker builds the worker; locker may be nil on single-instance deployments.
func NewDailyWorker(cron string, lockTTL time.Duration, dispatcher Dispatcher, locker Locker, logger *zerolog.Logger) *DailyWorker {
	if cron == "" {
		cron = "* * * * *"
	}
	if lockTTL <= 0 {
		lockTTL = 55 * time.Second
	}
	return &DailyWorker{
		cron:       cron,
		lockTTL:    lockTTL,
		dispatcher: dispatcher,
		locker:     locker,
		now:        time.Now,
		log:        logging.Component(logger, "daily_worker"),
	}
}

// Start schedules the job and returns immediately; ticks stop when ctx is done or Stop is called.
func (w *DailyWorker) Start(ctx context.Context) error {
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Cron(w.cron).SingletonMode().Do(func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule daily dispatch %q: %w", w.cron, err)
	}
	w.scheduler = s
	s.StartAsync()
	w.log.Info().Str("cron", w.cron).Msg("daily worker started")

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

func (w *DailyWorker) Stop() {
	if w.scheduler != nil && w.scheduler.IsRunning() {
		w.scheduler.Stop()
		w.log.Info().Msg("daily worker stopped")
	}
}

// RunOnce performs one tick: skip if a tick is still running, take the
// per-minute lock, then dispatch. It never panics.
func (w *DailyWorker) RunOnce(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		metrics.IncDispatchTick("skipped")
		w.log.Warn().Msg("previous dispatch still running; skipping tick")
		return
	}
	defer w.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("daily dispatch panicked")
		}
	}()

	if ctx.Err() != nil {
		return
	}

	minute := model.ClockTime(w.now())
	key := "lock:daily_dispatch:" + minute
	token := ""
	if w.locker != nil {
		var err error
		token, err = w.locker.TryLock(ctx, key, w.lockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			w.log.Debug().Str("minute", minute).Msg("another instance owns this minute")
			return
		case err != nil:
			// Redis trouble must not stop notifications on a single instance.
			w.log.Warn().Err(err).Msg("dispatch lock unavailable; continuing without it")
		}
	}

	if _, err := w.dispatcher.Dispatch(ctx, minute); err != nil {
		w.log.Error().Err(err).Str("minute", minute).Msg("daily dispatch failed")
		// Let another instance retry the minute; on success the lock expires on its own.
		if token != "" {
			if uerr := w.locker.Unlock(ctx, key, token); uerr != nil {
				w.log.Warn().Err(uerr).Msg("failed to release dispatch lock")
			}
		}
	}
}
