package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo keeps conversation state in process memory when Redis is disabled.
type StateRepo struct {
	mem *MemoryCache
	ttl time.Duration
}

func NewStateRepo(mem *MemoryCache, ttl time.Duration) *StateRepo {
	if mem == nil {
		mem = NewMemoryCache()
	}
	return &StateRepo{mem: mem, ttl: ttl}
}

func stateKey(tgID int64) string { return fmt.Sprintf("conv_state:%d", tgID) }

func (s *StateRepo) SetState(ctx context.Context, tgID int64, state *repository.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mem.Set(ctx, stateKey(tgID), data, s.ttl)
	return nil
}

func (s *StateRepo) GetState(ctx context.Context, tgID int64) (*repository.ConversationState, error) {
	data, ok := s.mem.Get(ctx, stateKey(tgID))
	if !ok {
		return nil, domain.ErrNotFound
	}
	var state repository.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *StateRepo) ClearState(ctx context.Context, tgID int64) error {
	s.mem.Delete(stateKey(tgID))
	return nil
}
