package repository

import (
	"context"

	"telegram-weather-bot/internal/domain/model"
)

// ConversationState holds the user's progress in a multi-step conversation.
type ConversationState struct {
	Step model.ConversationStep `json:"step"`
	Data map[string]string      `json:"data,omitempty"`
}

// StateRepository is the port for managing any user's conversational state.
// GetState returns domain.ErrNotFound when the user has no state.
type StateRepository interface {
	SetState(ctx context.Context, tgID int64, state *ConversationState) error
	GetState(ctx context.Context, tgID int64) (*ConversationState, error)
	ClearState(ctx context.Context, tgID int64) error
}
