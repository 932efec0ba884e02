//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/adapter"
	"telegram-weather-bot/internal/domain/ports/repository"
	"telegram-weather-bot/internal/infra/i18n"
	"telegram-weather-bot/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newTestFormatter(t *testing.T, units, lang string) *usecase.Formatter {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, lang)
	if err != nil {
		t.Fatalf("load %s locale: %v", lang, err)
	}
	return usecase.NewFormatter(units, tr)
}

// =============================
// Adapters
// =============================

// ---- Mock TelegramBotAdapter ----

type MockTelegramBot struct {
	mu   sync.Mutex
	Sent []adapter.SendMessageParams

	SendMessageFunc func(ctx context.Context, params adapter.SendMessageParams) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(ctx, params); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	return nil
}

// SentTo returns messages delivered to chatID in delivery order.
func (m *MockTelegramBot) SentTo(chatID int64) []adapter.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adapter.SendMessageParams
	for _, p := range m.Sent {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	return out
}

// ---- Mock WeatherGateway ----

type MockWeatherGateway struct {
	mu    sync.Mutex
	Calls map[string]int

	CurrentWeatherFunc func(ctx context.Context, city string) (*model.Snapshot, error)
	ForecastFunc       func(ctx context.Context, city string, days int) (*model.Forecast, error)
}

var _ adapter.WeatherGateway = (*MockWeatherGateway)(nil)

func NewMockWeatherGateway() *MockWeatherGateway {
	return &MockWeatherGateway{Calls: make(map[string]int)}
}

func (m *MockWeatherGateway) CurrentWeather(ctx context.Context, city string) (*model.Snapshot, error) {
	m.mu.Lock()
	m.Calls[city]++
	m.mu.Unlock()
	if m.CurrentWeatherFunc != nil {
		return m.CurrentWeatherFunc(ctx, city)
	}
	return &model.Snapshot{City: city, Temperature: 10, FeelsLike: 8, Humidity: 60, WindSpeed: 3, Condition: "Clouds", Description: "partly cloudy"}, nil
}

func (m *MockWeatherGateway) Forecast(ctx context.Context, city string, days int) (*model.Forecast, error) {
	if m.ForecastFunc != nil {
		return m.ForecastFunc(ctx, city, days)
	}
	return &model.Forecast{City: city}, nil
}

func (m *MockWeatherGateway) CallsFor(city string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[city]
}

// =============================
// Repositories
// =============================

// ---- Mock SubscriberRepository ----

type MockSubscriberRepo struct {
	mu   sync.Mutex
	byID map[int64]*model.Subscriber

	SaveFunc    func(ctx context.Context, tx repository.Tx, s *model.Subscriber) error
	ListDueFunc func(ctx context.Context, tx repository.Tx, targetTime, defaultTime string) ([]model.DueSubscriber, error)
}

var _ repository.SubscriberRepository = (*MockSubscriberRepo)(nil)

func NewMockSubscriberRepo() *MockSubscriberRepo {
	return &MockSubscriberRepo{byID: make(map[int64]*model.Subscriber)}
}

// Seed stores a copy of s.
func (m *MockSubscriberRepo) Seed(s model.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.TelegramID] = &s
}

func (m *MockSubscriberRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscriber) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if old, ok := m.byID[s.TelegramID]; ok {
		old.Username = s.Username
		return nil
	}
	m.byID[s.TelegramID] = &cp
	return nil
}

func (m *MockSubscriberRepo) FindByTelegramID(_ context.Context, _ repository.Tx, tgID int64) (*model.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriberRepo) update(tgID int64, fn func(s *model.Subscriber)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[tgID]
	if !ok {
		return domain.ErrNotFound
	}
	fn(s)
	return nil
}

func (m *MockSubscriberRepo) UpdateCity(_ context.Context, _ repository.Tx, tgID int64, city string) error {
	return m.update(tgID, func(s *model.Subscriber) { s.City = city })
}

func (m *MockSubscriberRepo) UpdateNotificationTime(_ context.Context, _ repository.Tx, tgID int64, hhmm string) error {
	return m.update(tgID, func(s *model.Subscriber) { s.NotificationTime = hhmm })
}

func (m *MockSubscriberRepo) SetDailyNotifications(_ context.Context, _ repository.Tx, tgID int64, enabled bool) error {
	return m.update(tgID, func(s *model.Subscriber) { s.DailyNotifications = enabled })
}

func (m *MockSubscriberRepo) ListDue(ctx context.Context, tx repository.Tx, targetTime, defaultTime string) ([]model.DueSubscriber, error) {
	if m.ListDueFunc != nil {
		return m.ListDueFunc(ctx, tx, targetTime, defaultTime)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DueSubscriber
	for _, s := range m.byID {
		eff := s.EffectiveTime(defaultTime)
		if s.DailyNotifications && s.HasCity() && eff == targetTime {
			cp := *s
			out = append(out, model.DueSubscriber{Subscriber: &cp, EffectiveTime: eff})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subscriber.TelegramID < out[j].Subscriber.TelegramID })
	return out, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct{}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
