package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-weather-bot/internal/config"
	"telegram-weather-bot/internal/infra/web"
)

// Prints a bearer token for POST /api/v1/dispatch signed with admin.jwt_secret.
func main() {
	subject := flag.String("sub", "ops", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Admin.JWTSecret == "" {
		log.Fatal("admin.jwt_secret is empty; the dispatch endpoint is disabled")
	}

	tok, err := web.NewAuthManager(cfg.Admin.JWTSecret, *ttl).Mint(*subject, "admin")
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(tok)
}
