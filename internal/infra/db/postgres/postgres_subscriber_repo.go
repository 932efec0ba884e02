package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/repository"
)

var _ repository.SubscriberRepository = (*PostgresSubscriberRepo)(nil)

type PostgresSubscriberRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriberRepo(pool *pgxpool.Pool) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{pool: pool}
}

const subscriberColumns = `telegram_id, username, city, notification_time, daily_notifications, created_at, updated_at`

func scanSubscriber(row pgx.Row) (*model.Subscriber, error) {
	var (
		s        model.Subscriber
		username *string
		city     *string
		notify   *string
	)
	if err := row.Scan(&s.TelegramID, &username, &city, &notify, &s.DailyNotifications, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if username != nil {
		s.Username = *username
	}
	if city != nil {
		s.City = *city
	}
	if notify != nil {
		s.NotificationTime = *notify
	}
	return &s, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Save inserts a subscriber; on conflict only the username is refreshed.
func (r *PostgresSubscriberRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscriber) error {
	const q = `
INSERT INTO subscribers (telegram_id, username, city, notification_time, daily_notifications, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (telegram_id) DO UPDATE SET
  username = COALESCE(EXCLUDED.username, subscribers.username),
  updated_at = EXCLUDED.updated_at;`
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	_, err := execSQL(ctx, r.pool, tx, q, s.TelegramID, nullable(s.Username), nullable(s.City), nullable(s.NotificationTime), s.DailyNotifications, now)
	if err != nil {
		return err
	}
	s.UpdatedAt = now
	return nil
}

func (r *PostgresSubscriberRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Subscriber, error) {
	q := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE telegram_id = $1;`
	s, err := scanSubscriber(pickRow(ctx, r.pool, tx, q, tgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresSubscriberRepo) UpdateCity(ctx context.Context, tx repository.Tx, tgID int64, city string) error {
	const q = `UPDATE subscribers SET city = $2, updated_at = NOW() WHERE telegram_id = $1;`
	return r.update(ctx, tx, q, tgID, nullable(city))
}

func (r *PostgresSubscriberRepo) UpdateNotificationTime(ctx context.Context, tx repository.Tx, tgID int64, hhmm string) error {
	const q = `UPDATE subscribers SET notification_time = $2, updated_at = NOW() WHERE telegram_id = $1;`
	return r.update(ctx, tx, q, tgID, nullable(hhmm))
}

func (r *PostgresSubscriberRepo) SetDailyNotifications(ctx context.Context, tx repository.Tx, tgID int64, enabled bool) error {
	const q = `UPDATE subscribers SET daily_notifications = $2, updated_at = NOW() WHERE telegram_id = $1;`
	return r.update(ctx, tx, q, tgID, enabled)
}

func (r *PostgresSubscriberRepo) update(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDue matches the effective notification time by exact string equality.
func (r *PostgresSubscriberRepo) ListDue(ctx context.Context, tx repository.Tx, targetTime, defaultTime string) ([]model.DueSubscriber, error) {
	q := `
SELECT ` + subscriberColumns + `, COALESCE(notification_time, $2) AS effective_time
  FROM subscribers
 WHERE daily_notifications
   AND city IS NOT NULL AND city <> ''
   AND COALESCE(notification_time, $2) = $1
 ORDER BY telegram_id;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, targetTime, defaultTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DueSubscriber
	for rows.Next() {
		var (
			s                      model.Subscriber
			username, city, notify *string
			effective              string
		)
		if err := rows.Scan(&s.TelegramID, &username, &city, &notify, &s.DailyNotifications, &s.CreatedAt, &s.UpdatedAt, &effective); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		if username != nil {
			s.Username = *username
		}
		if city != nil {
			s.City = *city
		}
		if notify != nil {
			s.NotificationTime = *notify
		}
		out = append(out, model.DueSubscriber{Subscriber: &s, EffectiveTime: effective})
	}
	return out, rows.Err()
}
