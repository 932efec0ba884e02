package telegram

import (
	"context"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"telegram-weather-bot/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":           r.handleStartCommand,
		"help":            r.handleHelpCommand,
		"set_city":        r.handleSetCityCommand,
		"set_time":        r.handleSetTimeCommand,
		"subscribe_daily": r.handleSubscribeCommand,
		"unsubscribe":     r.handleUnsubscribeCommand,
		"current":         r.handleCurrentCommand,
		"forecast":        r.handleForecastCommand,
		"status":          r.handleStatusCommand,
		"cancel":          r.handleCancelCommand,

		"dispatch_now": r.adminOnly(r.handleDispatchNowCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if _, isAdmin := r.adminIDsMap[message.From.ID]; !isAdmin {
			metrics.IncAdminRequest("/"+message.Command(), "unauthorized")
			return r.reply(ctx, message.Chat.ID, r.unknownCommandText(message.Command()))
		}
		metrics.IncAdminRequest("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStart(ctx, message.From.ID, message.From.UserName)
	if err != nil {
		return r.replyOrFail(ctx, message.Chat.ID, "", err)
	}
	return r.sendMainMenu(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.reply(ctx, message.Chat.ID, r.facade.HandleHelp())
}

func (r *RealTelegramBotAdapter) handleSetCityCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleSetCity(ctx, message.From.ID, message.CommandArguments())
	return r.replyOrFail(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleSetTimeCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleSetTime(ctx, message.From.ID, message.CommandArguments())
	return r.replyOrFail(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleSubscribeCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleSubscribe(ctx, message.From.ID)
	return r.replyOrFail(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleUnsubscribeCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleUnsubscribe(ctx, message.From.ID)
	return r.replyOrFail(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStatus(ctx, message.From.ID)
	if err != nil {
		return r.replyOrFail(ctx, message.Chat.ID, "", err)
	}
	return r.sendMainMenu(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleCancel(ctx, message.From.ID)
	return r.replyOrFail(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleCurrentCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendCurrent(ctx, message.Chat.ID, message.From.ID, message.CommandArguments())
}

// handleForecastCommand answers /forecast N directly and offers day buttons without an argument.
func (r *RealTelegramBotAdapter) handleForecastCommand(ctx context.Context, message *tgbotapi.Message) error {
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" {
		text, err := r.facade.HandleForecast(ctx, message.From.ID, arg)
		return r.replyOrFail(ctx, message.Chat.ID, text, err)
	}
	return r.sendForecastMenu(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleDispatchNowCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleDispatchNow(ctx, message.CommandArguments())
	return r.replyOrFail(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) sendCurrent(ctx context.Context, chatID, tgID int64, city string) error {
	msgs, err := r.facade.HandleCurrent(ctx, tgID, city)
	if err != nil {
		return r.replyOrFail(ctx, chatID, "", err)
	}
	for _, m := range msgs {
		if err := r.reply(ctx, chatID, m); err != nil {
			return err
		}
	}
	return nil
}

// unknownCommandText suggests the closest known command, if any.
func (r *RealTelegramBotAdapter) unknownCommandText(command string) string {
	if s := suggestCommand(command, r.publicCommands()); s != "" {
		return r.translator.T("did_you_mean", "/"+s)
	}
	return r.translator.T("unknown_command")
}

func (r *RealTelegramBotAdapter) publicCommands() []string {
	names := make([]string, 0, len(r.commandRoutes()))
	for name := range r.commandRoutes() {
		if name == "dispatch_now" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func suggestCommand(command string, known []string) string {
	command = strings.ToLower(strings.TrimSpace(command))
	if command == "" {
		return ""
	}
	ranks := fuzzy.RankFindNormalizedFold(command, known)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

func forecastButtons(maxDays int) [][]button {
	row := make([]button, 0, maxDays)
	for d := 1; d <= maxDays; d++ {
		row = append(row, button{Text: strconv.Itoa(d), Data: "fc:" + strconv.Itoa(d)})
	}
	return [][]button{row}
}
