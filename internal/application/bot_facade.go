package application

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/repository"
	"telegram-weather-bot/internal/usecase"

	"github.com/rs/zerolog"
)

const defaultForecastDays = 3

// BotFacade composes usecases into bot commands. Methods return ready-to-send
// HTML replies; user mistakes become localized replies, an error means the
// caller should answer with a generic failure.
type BotFacade struct {
	SubUC      SubscriberUseCaseIface
	WeatherUC  WeatherUseCaseIface
	DispatchUC DispatchUseCaseIface
	States     repository.StateRepository
	T          Translator

	maxForecastDays int
	log             *zerolog.Logger
}

func NewBotFacade(
	subUC SubscriberUseCaseIface,
	weatherUC WeatherUseCaseIface,
	dispatchUC DispatchUseCaseIface,
	states repository.StateRepository,
	translator Translator,
	maxForecastDays int,
	logger *zerolog.Logger,
) *BotFacade {
	if maxForecastDays <= 0 {
		maxForecastDays = 5
	}
	return &BotFacade{
		SubUC:           subUC,
		WeatherUC:       weatherUC,
		DispatchUC:      dispatchUC,
		States:          states,
		T:               translator,
		maxForecastDays: maxForecastDays,
		log:             logger,
	}
}

// HandleStart registers or fetches the user and returns the welcome text.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, username string) (string, error) {
	if _, err := b.SubUC.Register(ctx, tgID, username); err != nil {
		return "", fmt.Errorf("register subscriber: %w", err)
	}
	_ = b.States.ClearState(ctx, tgID)

	name := username
	if name == "" {
		name = "there"
	}
	return b.T.T("welcome", html.EscapeString(name), b.SubUC.DefaultTime()), nil
}

func (b *BotFacade) MaxForecastDays() int { return b.maxForecastDays }

func (b *BotFacade) HandleHelp() string {
	return b.T.T("help", b.maxForecastDays)
}

// HandleSetCity saves arg as the city, or asks for one when arg is empty.
func (b *BotFacade) HandleSetCity(ctx context.Context, tgID int64, arg string) (string, error) {
	if strings.TrimSpace(arg) == "" {
		if err := b.transition(ctx, tgID, model.EventAskCity); err != nil {
			return "", err
		}
		return b.T.T("ask_city"), nil
	}
	return b.saveCity(ctx, tgID, arg)
}

// HandleSetTime saves arg as the notification time, or asks for one when arg is empty.
func (b *BotFacade) HandleSetTime(ctx context.Context, tgID int64, arg string) (string, error) {
	if strings.TrimSpace(arg) == "" {
		if err := b.transition(ctx, tgID, model.EventAskTime); err != nil {
			return "", err
		}
		return b.T.T("ask_time"), nil
	}
	return b.saveTime(ctx, tgID, arg)
}

// HandleText answers a plain message. handled is false when the user is not in a dialog.
func (b *BotFacade) HandleText(ctx context.Context, tgID int64, text string) (reply string, handled bool, err error) {
	step := b.currentStep(ctx, tgID)
	switch step {
	case model.StepAwaitingCity:
		reply, err = b.saveCity(ctx, tgID, text)
	case model.StepAwaitingTime:
		reply, err = b.saveTime(ctx, tgID, text)
	default:
		return b.T.T("use_commands"), false, nil
	}
	return reply, true, err
}

func (b *BotFacade) HandleCancel(ctx context.Context, tgID int64) (string, error) {
	if b.currentStep(ctx, tgID) == model.StepIdle {
		return b.T.T("nothing_to_cancel"), nil
	}
	if err := b.States.ClearState(ctx, tgID); err != nil {
		return "", err
	}
	return b.T.T("cancelled"), nil
}

func (b *BotFacade) HandleSubscribe(ctx context.Context, tgID int64) (string, error) {
	err := b.SubUC.Subscribe(ctx, tgID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.T.T("not_registered"), nil
	case errors.Is(err, usecase.ErrCityRequired):
		return b.T.T("city_required"), nil
	case err != nil:
		return "", err
	}
	s, err := b.SubUC.Get(ctx, tgID)
	if err != nil {
		return "", err
	}
	return b.T.T("subscribed", html.EscapeString(s.City), s.EffectiveTime(b.SubUC.DefaultTime())), nil
}

func (b *BotFacade) HandleUnsubscribe(ctx context.Context, tgID int64) (string, error) {
	if err := b.SubUC.Unsubscribe(ctx, tgID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.T.T("not_registered"), nil
		}
		return "", err
	}
	return b.T.T("unsubscribed"), nil
}

func (b *BotFacade) HandleStatus(ctx context.Context, tgID int64) (string, error) {
	s, err := b.SubUC.Get(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return b.T.T("not_registered"), nil
		}
		return "", err
	}
	city := b.T.T("status_not_set")
	if s.HasCity() {
		city = html.EscapeString(s.City)
	}
	daily := b.T.T("status_off")
	if s.DailyNotifications {
		daily = b.T.T("status_on")
	}
	return b.T.T("status", city, s.EffectiveTime(b.SubUC.DefaultTime()), daily), nil
}

// HandleCurrent returns the weather reply and, when extreme conditions apply, the alert as a second message.
func (b *BotFacade) HandleCurrent(ctx context.Context, tgID int64, arg string) ([]string, error) {
	city, reply, err := b.resolveCity(ctx, tgID, arg)
	if reply != "" || err != nil {
		return []string{reply}, err
	}
	text, alert, err := b.WeatherUC.Current(ctx, city)
	if err != nil {
		if r, ok := b.weatherErrorReply(err, city); ok {
			return []string{r}, nil
		}
		return nil, err
	}
	if alert == "" {
		return []string{text}, nil
	}
	return []string{text, alert}, nil
}

// HandleForecast answers /forecast [days] for the stored city.
func (b *BotFacade) HandleForecast(ctx context.Context, tgID int64, arg string) (string, error) {
	days := defaultForecastDays
	if days > b.maxForecastDays {
		days = b.maxForecastDays
	}
	if a := strings.TrimSpace(arg); a != "" {
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 || n > b.maxForecastDays {
			return b.T.T("forecast_usage", b.maxForecastDays), nil
		}
		days = n
	}

	city, reply, err := b.resolveCity(ctx, tgID, "")
	if reply != "" || err != nil {
		return reply, err
	}
	text, err := b.WeatherUC.Forecast(ctx, city, days)
	if err != nil {
		if r, ok := b.weatherErrorReply(err, city); ok {
			return r, nil
		}
		return "", err
	}
	return text, nil
}

// HandleDispatchNow runs a dispatch pass for hhmm (empty means now) and summarises it.
func (b *BotFacade) HandleDispatchNow(ctx context.Context, hhmm string) (string, error) {
	report, err := b.DispatchUC.Dispatch(ctx, strings.TrimSpace(hhmm))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return b.T.T("time_invalid"), nil
		}
		return "", err
	}
	return fmt.Sprintf("Dispatch %s: matched=%d cities=%d failed_cities=%d delivered=%d failed=%d alerts=%d",
		report.TargetTime, report.Matched, report.Cities, report.CitiesFailed,
		report.Delivered, report.DeliveryFailed, report.Alerts), nil
}

func (b *BotFacade) saveCity(ctx context.Context, tgID int64, raw string) (string, error) {
	name, err := b.SubUC.SetCity(ctx, tgID, raw)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return b.T.T("not_registered"), nil
		case errors.Is(err, domain.ErrInvalidArgument):
			return b.T.T("ask_city"), nil
		}
		if r, ok := b.weatherErrorReply(err, strings.TrimSpace(raw)); ok {
			return r, nil
		}
		return "", err
	}
	b.finish(ctx, tgID, model.EventCitySaved)
	return b.T.T("city_saved", html.EscapeString(name)), nil
}

func (b *BotFacade) saveTime(ctx context.Context, tgID int64, raw string) (string, error) {
	hhmm, err := b.SubUC.SetNotificationTime(ctx, tgID, raw)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			return b.T.T("time_invalid"), nil
		case errors.Is(err, domain.ErrNotFound):
			return b.T.T("not_registered"), nil
		}
		return "", err
	}
	b.finish(ctx, tgID, model.EventTimeSaved)
	return b.T.T("time_saved", hhmm), nil
}

// resolveCity returns arg, or the stored city. A non-empty reply means the user must act first.
func (b *BotFacade) resolveCity(ctx context.Context, tgID int64, arg string) (city, reply string, err error) {
	if c := strings.TrimSpace(arg); c != "" {
		return c, "", nil
	}
	s, err := b.SubUC.Get(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", b.T.T("not_registered"), nil
		}
		return "", "", err
	}
	if !s.HasCity() {
		return "", b.T.T("city_required"), nil
	}
	return s.City, "", nil
}

func (b *BotFacade) weatherErrorReply(err error, city string) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrCityNotFound):
		return b.T.T("city_not_found", html.EscapeString(city)), true
	case errors.Is(err, domain.ErrInvalidArgument):
		return b.T.T("forecast_usage", b.maxForecastDays), true
	case errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrInvalidAPIKey),
		errors.Is(err, domain.ErrMissingAPIKey):
		b.log.Warn().Err(err).Str("city", city).Msg("weather lookup failed")
		return b.T.T("upstream_error"), true
	}
	return "", false
}

func (b *BotFacade) currentStep(ctx context.Context, tgID int64) model.ConversationStep {
	st, err := b.States.GetState(ctx, tgID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.log.Warn().Err(err).Int64("tg_id", tgID).Msg("failed to read conversation state")
		}
		return model.StepIdle
	}
	return st.Step
}

func (b *BotFacade) transition(ctx context.Context, tgID int64, ev model.ConversationEvent) error {
	next, ok := model.NextStep(b.currentStep(ctx, tgID), ev)
	if !ok {
		return fmt.Errorf("%w: transition %q not allowed", domain.ErrInvalidArgument, ev)
	}
	if next == model.StepIdle {
		return b.States.ClearState(ctx, tgID)
	}
	return b.States.SetState(ctx, tgID, &repository.ConversationState{Step: next})
}

// finish applies a completion event; saving via a command argument outside a dialog is fine.
func (b *BotFacade) finish(ctx context.Context, tgID int64, ev model.ConversationEvent) {
	from := b.currentStep(ctx, tgID)
	if _, ok := model.NextStep(from, ev); !ok {
		return
	}
	if err := b.States.ClearState(ctx, tgID); err != nil {
		b.log.Warn().Err(err).Int64("tg_id", tgID).Msg("failed to clear conversation state")
	}
}
