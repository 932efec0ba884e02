package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-weather-bot/internal/config"
	"telegram-weather-bot/internal/domain/model"
	"telegram-weather-bot/internal/domain/ports/repository"
	pg "telegram-weather-bot/internal/infra/db/postgres"
)

// Seeds a few subscribers for manual dispatch testing. Safe to re-run.
func main() {
	at := flag.String("at", "", "notification time HH:MM for seeded rows (empty = default)")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	hhmm := ""
	if *at != "" {
		if hhmm, err = model.NormalizeNotificationTime(*at); err != nil {
			log.Fatalf("-at: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	shown := hhmm
	if shown == "" {
		shown = cfg.Scheduler.DefaultTime
	}

	repo := pg.NewPostgresSubscriberRepo(pool)
	tm := pg.NewTxManager(pool)

	seed := []struct {
		ID   int64
		Name string
		City string
	}{
		{900000001, "seed_oslo", "Oslo"},
		{900000002, "seed_berlin", "Berlin"},
		{900000003, "seed_berlin_2", "Berlin"},
		{900000004, "seed_yakutsk", "Yakutsk"},
	}

	err = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, s := range seed {
			sub, err := model.NewSubscriber(s.ID, s.Name)
			if err != nil {
				return err
			}
			if err := repo.Save(ctx, tx, sub); err != nil {
				return fmt.Errorf("save %d: %w", s.ID, err)
			}
			if err := repo.UpdateCity(ctx, tx, s.ID, s.City); err != nil {
				return err
			}
			if err := repo.UpdateNotificationTime(ctx, tx, s.ID, hhmm); err != nil {
				return err
			}
			if err := repo.SetDailyNotifications(ctx, tx, s.ID, true); err != nil {
				return err
			}
			fmt.Printf("seeded: %s (tg_id=%d, city=%s, time=%s)\n", s.Name, s.ID, s.City, shown)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Println("✅ Seeding complete.")
}
