// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

const (
	ParseModeNone = ""
	ParseModeHTML = "HTML"
)

type SendMessageParams struct {
	ChatID    int64
	Text      string
	ParseMode string
}

// TelegramBotAdapter is the delivery channel used by the dispatcher and command handlers.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
}
