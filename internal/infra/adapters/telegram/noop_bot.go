package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/infra/logging"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outgoing messages instead of sending them; used with bot.mode=noop.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logging.Component(logger, "telegram_noop")}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", params.ChatID).Str("parse_mode", params.ParseMode).Str("text", params.Text).Msg("noop send")
	return nil
}

// StartPolling waits for ctx; there are no updates to receive.
func (b *NoopBotAdapter) StartPolling(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *NoopBotAdapter) StopPolling() {}
