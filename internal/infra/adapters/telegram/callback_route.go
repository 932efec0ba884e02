package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type cbHandler func(ctx context.Context, chatID, tgID int64, data string) error

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"cmd:current": func(ctx context.Context, chatID, tgID int64, _ string) error {
			return r.sendCurrent(ctx, chatID, tgID, "")
		},
		"cmd:forecast": func(ctx context.Context, chatID, _ int64, _ string) error {
			return r.sendForecastMenu(ctx, chatID)
		},
		"cmd:subscribe": func(ctx context.Context, chatID, tgID int64, _ string) error {
			text, err := r.facade.HandleSubscribe(ctx, tgID)
			return r.replyOrFail(ctx, chatID, text, err)
		},
		"cmd:unsubscribe": func(ctx context.Context, chatID, tgID int64, _ string) error {
			text, err := r.facade.HandleUnsubscribe(ctx, tgID)
			return r.replyOrFail(ctx, chatID, text, err)
		},
		"cmd:set_city": func(ctx context.Context, chatID, tgID int64, _ string) error {
			text, err := r.facade.HandleSetCity(ctx, tgID, "")
			return r.replyOrFail(ctx, chatID, text, err)
		},
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []struct {
	Prefix string
	Fn     cbHandler
} {
	return []struct {
		Prefix string
		Fn     cbHandler
	}{
		{
			Prefix: "fc:",
			Fn: func(ctx context.Context, chatID, tgID int64, data string) error {
				text, err := r.facade.HandleForecast(ctx, tgID, strings.TrimPrefix(data, "fc:"))
				return r.replyOrFail(ctx, chatID, text, err)
			},
		},
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop the telegram spinner when we return.
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	data := strings.TrimSpace(query.Data)

	limit := commandRateLimit
	if data == "cmd:current" || strings.HasPrefix(data, "fc:") {
		limit = weatherRateLimit
	}
	if !r.allow(ctx, query.From.ID, "cb:"+data, limit) {
		return r.reply(ctx, chatID, r.translator.T("rate_limited"))
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, query.From.ID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, chatID, query.From.ID, data)
		}
	}
	return errors.New("unknown callback data")
}

// sendMainMenu shows the main actions as inline buttons under intro.
func (r *RealTelegramBotAdapter) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	rows := [][]button{
		{{Text: "🌤 Now", Data: "cmd:current"}, {Text: "📅 Forecast", Data: "cmd:forecast"}},
		{{Text: "🏙 City", Data: "cmd:set_city"}},
		{{Text: "🔔 Daily on", Data: "cmd:subscribe"}, {Text: "🔕 Daily off", Data: "cmd:unsubscribe"}},
	}
	return r.SendButtons(ctx, chatID, intro, rows)
}

func (r *RealTelegramBotAdapter) sendForecastMenu(ctx context.Context, chatID int64) error {
	return r.SendButtons(ctx, chatID, "📅", forecastButtons(r.facade.MaxForecastDays()))
}
