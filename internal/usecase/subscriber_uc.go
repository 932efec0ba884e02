package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/domain/ports/repository"
	"telegram-weather-bot/internal/infra/logging"
	"telegram-weather-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ SubscriberUseCase = (*subscriberUC)(nil)

// SubscriberUseCase manages a user's city, notification time and daily flag.
type SubscriberUseCase interface {
	Register(ctx context.Context, tgID int64, username string) (*model.Subscriber, error)
	Get(ctx context.Context, tgID int64) (*model.Subscriber, error)
	// SetCity validates the city against the weather provider and returns the stored name.
	SetCity(ctx context.Context, tgID int64, city string) (string, error)
	// SetNotificationTime normalises raw to "HH:MM" and returns it.
	SetNotificationTime(ctx context.Context, tgID int64, raw string) (string, error)
	Subscribe(ctx context.Context, tgID int64) error
	Unsubscribe(ctx context.Context, tgID int64) error
	DefaultTime() string
}

// ErrCityRequired is returned when subscribing without a city.
var ErrCityRequired = errors.New("city must be set before subscribing")

type subscriberUC struct {
	subs        repository.SubscriberRepository
	tm          repository.TransactionManager
	weather     adapter.WeatherGateway
	defaultTime string
	log         *zerolog.Logger
}

func NewSubscriberUseCase(
	subs repository.SubscriberRepository,
	tm repository.TransactionManager,
	weather adapter.WeatherGateway,
	defaultTime string,
	logger *zerolog.Logger,
) *subscriberUC {
	return &subscriberUC{
		subs:        subs,
		tm:          tm,
		weather:     weather,
		defaultTime: defaultTime,
		log:         logger,
	}
}

func (u *subscriberUC) DefaultTime() string { return u.defaultTime }

func (u *subscriberUC) Register(ctx context.Context, tgID int64, username string) (*model.Subscriber, error) {
	defer logging.TraceDuration(u.log, "SubscriberUC.Register")()

	var out *model.Subscriber
	created := false
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.subs.FindByTelegramID(ctx, tx, tgID)
		switch {
		case err == nil:
			if username != "" && existing.Username != username {
				existing.Username = username
				if err := u.subs.Save(ctx, tx, existing); err != nil {
					return err
				}
			}
			out = existing
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		s, err := model.NewSubscriber(tgID, username)
		if err != nil {
			return err
		}
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		out, created = s, true
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Int64("tg_id", tgID).Msg("failed to register subscriber")
		return nil, err
	}
	if created {
		metrics.IncUsersRegistered()
		u.log.Info().Int64("tg_id", tgID).Msg("subscriber registered")
	}
	return out, nil
}

func (u *subscriberUC) Get(ctx context.Context, tgID int64) (*model.Subscriber, error) {
	return u.subs.FindByTelegramID(ctx, repository.NoTX, tgID)
}

func (u *subscriberUC) SetCity(ctx context.Context, tgID int64, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("%w: empty city", domain.ErrInvalidArgument)
	}
	snap, err := u.weather.CurrentWeather(ctx, city)
	if err != nil {
		return "", err
	}
	// Store the user's spelling unless the provider returned a canonical name.
	name := city
	if snap.City != "" {
		name = snap.City
	}
	if err := u.subs.UpdateCity(ctx, repository.NoTX, tgID, name); err != nil {
		return "", err
	}
	u.log.Info().Int64("tg_id", tgID).Str("city", name).Msg("city updated")
	return name, nil
}

func (u *subscriberUC) SetNotificationTime(ctx context.Context, tgID int64, raw string) (string, error) {
	hhmm, err := model.NormalizeNotificationTime(raw)
	if err != nil {
		return "", err
	}
	if err := u.subs.UpdateNotificationTime(ctx, repository.NoTX, tgID, hhmm); err != nil {
		return "", err
	}
	return hhmm, nil
}

func (u *subscriberUC) Subscribe(ctx context.Context, tgID int64) error {
	s, err := u.subs.FindByTelegramID(ctx, repository.NoTX, tgID)
	if err != nil {
		return err
	}
	if !s.HasCity() {
		return ErrCityRequired
	}
	return u.subs.SetDailyNotifications(ctx, repository.NoTX, tgID, true)
}

func (u *subscriberUC) Unsubscribe(ctx context.Context, tgID int64) error {
	return u.subs.SetDailyNotifications(ctx, repository.NoTX, tgID, false)
}
