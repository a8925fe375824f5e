// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	aiAdapters "ai-chat-subscription/internal/infra/adapters/ai"
	"ai-chat-subscription/internal/infra/adapters/identity"
	payAdapters "ai-chat-subscription/internal/infra/adapters/payment"
	"ai-chat-subscription/internal/infra/api"
	pg "ai-chat-subscription/internal/infra/db/postgres"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
	red "ai-chat-subscription/internal/infra/redis"
	"ai-chat-subscription/internal/infra/security"
	"ai-chat-subscription/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop adapters)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		// logger is not configured yet
		logging.Bootstrap(os.Stderr).Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)
	tm := pg.NewTxManager(pool)

	// ---- Encryption ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		if !cfg.Runtime.Dev {
			logger.Fatal().Err(err).Msg("security.encryption_key")
		}
		logger.Warn().Err(err).Msg("security.encryption_key unusable; falling back to dev key (INSECURE)")
		encSvc, _ = security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	}

	// ---- Repositories ----
	profileRepo := pg.NewPostgresProfileRepo(pool)
	var planRepo repository.PlanRepository = pg.NewPostgresPlanRepo(pool)
	sessionRepo := pg.NewPostgresChatSessionRepo(pool, encSvc)
	promptRepo := pg.NewPostgresPromptRepo(pool)
	eventRepo := pg.NewPostgresWebhookEventRepo(pool)
	adminLogRepo := pg.NewPostgresAdminLogRepo(pool)

	// ---- Redis (optional: plan cache, rate limit, webhook lock) ----
	var (
		limiter usecase.RateLimiter
		locker  red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, redisClient, cfg.Redis.TTL, logger)
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; plan cache, chat rate limit and webhook locking disabled")
	}

	// ---- Adapters ----
	ai := buildAI(ctx, cfg, logger)

	var gateway adapter.BillingGateway = payAdapters.NewNoopPaymentGateway()
	if cfg.Payment.Stripe.SecretKey != "" {
		stripeGw, err := payAdapters.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.APIBase)
		if err != nil {
			logger.Fatal().Err(err).Msg("stripe gateway")
		}
		gateway = stripeGw
	} else {
		logger.Warn().Msg("payment.stripe.secret_key not set; checkout uses the noop gateway")
	}
	verifier := payAdapters.NewStripeWebhookVerifier(cfg.Payment.Stripe.WebhookSecret, cfg.Payment.Stripe.WebhookTolerance)

	idp, err := identity.NewGoTrueProvider(cfg.Identity.JWTSecret, cfg.Identity.BaseURL, cfg.Identity.ServiceKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("identity provider")
	}

	// ---- Use cases ----
	admins := usecase.NewAdminAllowList(cfg.Admin.Emails)
	if len(cfg.Admin.Emails) == 0 {
		logger.Warn().Msg("admin.emails is empty; admin console is unreachable")
	}

	planUC := usecase.NewPlanUseCase(planRepo, tm, logger)
	promptUC := usecase.NewPromptUseCase(promptRepo, tm, logger)
	gate := usecase.NewSubscriptionUseCase(profileRepo, planRepo, cfg.Payment.FreePlanID, logger)
	chatUC := usecase.NewChatUseCase(sessionRepo, ai, gate, promptUC, limiter, tm, usecase.ChatOptions{
		HistoryWindow: cfg.Chat.HistoryWindow,
		RateLimit:     cfg.Chat.RateLimit,
		PageSize:      cfg.Chat.SessionPageSize,
	}, logger)
	webhookUC := usecase.NewWebhookUseCase(verifier, eventRepo, profileRepo, planRepo, locker, cfg.Payment.DefaultPlanID, logger)
	billingUC := usecase.NewBillingUseCase(profileRepo, planRepo, gateway, tm, cfg.Server.PublicURL, cfg.Payment.FreePlanID, logger)
	accountUC := usecase.NewAccountUseCase(profileRepo, planRepo, sessionRepo, gate, idp, admins, tm, cfg.Payment.FreePlanID, logger)
	adminUC := usecase.NewAdminUseCase(admins, profileRepo, planRepo, sessionRepo, promptRepo, adminLogRepo, idp, logger)

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Plans:    planUC,
		Webhooks: webhookUC,
		Chat:     chatUC,
		Prompts:  promptUC,
		Admin:    adminUC,
		Billing:  billingUC,
		Account:  accountUC,
		Identity: idp,
	}, api.Options{
		CookieName:     cfg.Identity.CookieName,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        true,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		logger.Error().Err(err).Msg("http server error")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

// buildAI picks the configured provider and, when a Gemini key is also
// present, chains Gemini as fallback. The whole chain shares one concurrency cap.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.CompletionAdapter {
	var chain []adapter.CompletionAdapter

	gemini := func() {
		if cfg.AI.GeminiKey == "" {
			return
		}
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.GeminiModel, cfg.AI.Temperature)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		chain = append(chain, g)
		logger.Info().Str("model", cfg.AI.GeminiModel).Msg("AI adapter: gemini")
	}

	if cfg.AI.Provider == "gemini" {
		gemini()
	} else if cfg.AI.APIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(aiAdapters.OpenAIOptions{
			Provider:    cfg.AI.Provider,
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		chain = append(chain, oa)
		logger.Info().Str("provider", cfg.AI.Provider).Str("base", cfg.AI.BaseURL).Str("model", cfg.AI.Model).Msg("AI adapter: openai-compatible")
		gemini()
	}

	switch len(chain) {
	case 0:
		if !cfg.Runtime.Dev {
			logger.Fatal().Str("provider", cfg.AI.Provider).Msg("no AI provider key configured")
		}
		logger.Warn().Msg("no AI provider key; using noop adapter")
		return aiAdapters.NewNoopAIAdapter()
	case 1:
		return aiAdapters.NewLimitedAI(chain[0], cfg.AI.ConcurrentLimit)
	default:
		return aiAdapters.NewLimitedAI(aiAdapters.NewMultiAIAdapter(logger, chain[0], chain[1:]...), cfg.AI.ConcurrentLimit)
	}
}
