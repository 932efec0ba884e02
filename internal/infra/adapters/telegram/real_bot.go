package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-weather-bot/internal/application"
	"telegram-weather-bot/internal/config"
	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/infra/logging"
	"telegram-weather-bot/internal/infra/metrics"
	red "telegram-weather-bot/internal/infra/redis"
	"telegram-weather-bot/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RateLimiter is satisfied by the Redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const (
	commandRateLimit = 20
	weatherRateLimit = 6
	rateWindow       = time.Minute
)

// RealTelegramBotAdapter polls updates with tgbotapi and delegates to BotFacade.
type RealTelegramBotAdapter struct {
	bot         botAPI
	facade      *application.BotFacade
	rateLimiter RateLimiter
	translator  application.Translator

	adminIDsMap   map[int64]struct{}
	updateWorkers int
	stopped       chan struct{}
	stopOnce      sync.Once
	log           *zerolog.Logger
}

// NewRealTelegramBotAdapter connects to the Bot API. rateLimiter may be nil.
func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, rateLimiter RateLimiter, translator application.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	return newAdapter(bot, cfg, facade, rateLimiter, translator, logger)
}

func newAdapter(bot botAPI, cfg *config.BotConfig, facade *application.BotFacade, rateLimiter RateLimiter, translator application.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	return &RealTelegramBotAdapter{
		bot:           bot,
		facade:        facade,
		rateLimiter:   rateLimiter,
		translator:    translator,
		adminIDsMap:   adminMap,
		updateWorkers: workers,
		stopped:       make(chan struct{}),
		log:           logging.Component(logger, "telegram_bot"),
	}, nil
}

// StartPolling blocks until ctx is cancelled or StopPolling is called, even
// when StopPolling ran first.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := r.SetMenuCommands(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to set menu commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	pool := worker.NewPool(r.updateWorkers, r.log)
	pool.Start(ctx)
	r.log.Info().Int("workers", r.updateWorkers).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			pool.Stop()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				pool.Stop()
				return nil
			}
			if err := pool.Submit(ctx, func(ctx context.Context) error { return r.handleUpdate(ctx, up) }); err != nil {
				r.log.Debug().Err(err).Msg("update dropped")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	r.stopOnce.Do(func() { close(r.stopped) })
}

// SendMessage delivers one message; a user who blocked the bot yields domain.ErrRecipientUnreachable.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(params.ChatID, params.Text)
	msg.ParseMode = params.ParseMode
	msg.DisableWebPagePreview = true
	if _, err := r.bot.Send(msg); err != nil {
		return mapSendError(err)
	}
	return nil
}

func mapSendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 403 {
		return fmt.Errorf("%w: %s", domain.ErrRecipientUnreachable, apiErr.Message)
	}
	return err
}

// reply sends localized HTML text to a chat.
func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text, ParseMode: adapter.ParseModeHTML})
}

// replyOrFail sends text, or the generic failure text when err is set.
func (r *RealTelegramBotAdapter) replyOrFail(ctx context.Context, chatID int64, text string, err error) error {
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Int64("chat_id", chatID).Msg("command failed")
		return r.reply(ctx, chatID, r.translator.T("generic_error"))
	}
	return r.reply(ctx, chatID, text)
}

type button struct {
	Text string
	Data string
}

// SendButtons sends a message with inline callback buttons.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		kbRows = append(kbRows, kr)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	if _, err := r.bot.Send(msg); err != nil {
		return mapSendError(err)
	}
	return nil
}

// SetMenuCommands publishes the command menu; admins additionally see /dispatch_now.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	if _, err := r.bot.Request(tgbotapi.NewSetMyCommands(menuCommands(false)...)); err != nil {
		return err
	}
	for id := range r.adminIDsMap {
		scope := tgbotapi.NewBotCommandScopeChat(id)
		if _, err := r.bot.Request(tgbotapi.NewSetMyCommandsWithScope(scope, menuCommands(true)...)); err != nil {
			r.log.Warn().Err(err).Int64("tg_id", id).Msg("failed to set admin menu")
		}
	}
	return nil
}

func menuCommands(admin bool) []tgbotapi.BotCommand {
	cmds := []tgbotapi.BotCommand{
		{Command: "current", Description: "Weather right now"},
		{Command: "forecast", Description: "Forecast for the next days"},
		{Command: "set_city", Description: "Choose your city"},
		{Command: "set_time", Description: "Daily message time (UTC)"},
		{Command: "subscribe_daily", Description: "Receive the daily forecast"},
		{Command: "unsubscribe", Description: "Stop the daily forecast"},
		{Command: "status", Description: "Your settings"},
		{Command: "help", Description: "All commands"},
	}
	if admin {
		cmds = append(cmds, tgbotapi.BotCommand{Command: "dispatch_now", Description: "Run the daily dispatch"})
	}
	return cmds
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, message.From.ID)

	if !message.IsCommand() {
		if !r.allow(ctx, message.From.ID, "message", commandRateLimit) {
			return r.reply(ctx, message.Chat.ID, r.translator.T("rate_limited"))
		}
		text, _, err := r.facade.HandleText(ctx, message.From.ID, message.Text)
		return r.replyOrFail(ctx, message.Chat.ID, text, err)
	}

	command := message.Command()
	handler, ok := r.commandRoutes()[command]
	if !ok {
		metrics.IncTelegramCommand("unknown")
		return r.reply(ctx, message.Chat.ID, r.unknownCommandText(command))
	}
	metrics.IncTelegramCommand("/" + command)

	limit := commandRateLimit
	if command == "current" || command == "forecast" {
		limit = weatherRateLimit
	}
	if !r.allow(ctx, message.From.ID, command, limit) {
		return r.reply(ctx, message.Chat.ID, r.translator.T("rate_limited"))
	}
	return handler(ctx, message)
}

// allow applies the per-user window; limiter failures let the request through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, tgID int64, command string, limit int) bool {
	if r.rateLimiter == nil {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(tgID, command), limit, rateWindow)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}
