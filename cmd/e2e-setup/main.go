package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/infra/adapters/identity"
	"ai-chat-subscription/internal/infra/db/postgres"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/redis"
)

// e2e-setup resets the database and cache to a predictable state and prints
// session tokens for a regular user and an operator, for manual end-to-end runs
// against a local stack.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of the minted tokens")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		logging.Bootstrap(os.Stderr).Fatal().Err(err).Msg("config load")
	}
	logger := logging.New(cfg.Log, true)
	ctx := context.Background()

	if err := postgres.Migrate(cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	logger.Info().Msg("--- Starting E2E Environment Setup ---")

	if cfg.Redis.URL != "" {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()
		logger.Info().Msg("[1/3] Wiping Redis cache...")
		if err := redisClient.FlushDB(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to flush redis")
		}
	}

	logger.Info().Msg("[2/3] Wiping user data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			profiles, chat_sessions, chat_messages, prompt_settings, prompt_history,
			webhook_events, admin_logs
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to truncate tables")
	}

	logger.Info().Msg("[3/3] Minting session tokens...")
	idp, err := identity.NewGoTrueProvider(cfg.Identity.JWTSecret, cfg.Identity.BaseURL, cfg.Identity.ServiceKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("identity provider")
	}
	users := []model.Identity{
		{UserID: "00000000-0000-4000-8000-000000000001", Email: "e2e-user@example.com", EmailVerified: true},
	}
	if len(cfg.Admin.Emails) > 0 {
		users = append(users, model.Identity{UserID: "00000000-0000-4000-8000-000000000002", Email: cfg.Admin.Emails[0], EmailVerified: true})
	} else {
		logger.Warn().Msg("admin.emails is empty; no operator token minted")
	}
	for _, u := range users {
		tok, err := idp.Mint(u, *ttl)
		if err != nil {
			logger.Fatal().Err(err).Str("email", u.Email).Msg("mint token")
		}
		fmt.Printf("%s\t%s\n", u.Email, tok)
	}

	logger.Info().Msg("--- ✅ E2E Environment Setup Complete ---")
}
