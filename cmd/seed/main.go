package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	pg "ai-chat-subscription/internal/infra/db/postgres"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/usecase"
)

type seedPlan struct {
	in       model.PlanInput
	priceEnv string
	yearEnv  string
}

func yearly(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

var catalog = []seedPlan{
	{in: model.PlanInput{
		ID:           "free",
		Name:         "Free",
		Description:  "Ideal para experimentar o agente com limites reduzidos.",
		PriceMonthly: decimal.Zero,
		Features:     []string{"10 mensagens por dia", "Histórico básico", "Resposta padrão do modelo"},
		SortOrder:    0,
	}},
	{in: model.PlanInput{
		ID:           "pro",
		Name:         "Pro",
		Description:  "Para profissionais que precisam de um copiloto diário.",
		PriceMonthly: decimal.NewFromInt(29),
		PriceYearly:  yearly(290),
		Features:     []string{"Mensagens ilimitadas", "Histórico persistido", "Respostas priorizadas"},
		SortOrder:    1,
	}, priceEnv: "STRIPE_PRO_PRICE_ID", yearEnv: "STRIPE_PRO_YEARLY_PRICE_ID"},
	{in: model.PlanInput{
		ID:           "vip",
		Name:         "VIP",
		Description:  "Atendimento premium com suporte dedicado.",
		PriceMonthly: decimal.NewFromInt(79),
		PriceYearly:  yearly(790),
		Features:     []string{"Suporte prioritário", "Modelos experimentais", "Integrações extras"},
		SortOrder:    2,
	}, priceEnv: "STRIPE_VIP_PRICE_ID", yearEnv: "STRIPE_VIP_YEARLY_PRICE_ID"},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	promptFile := flag.String("prompt", "", "optional file holding the initial system prompt")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		logging.Bootstrap(os.Stderr).Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pg.Migrate(cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	planUC := usecase.NewPlanUseCase(pg.NewPostgresPlanRepo(pool), tm, logger)
	promptUC := usecase.NewPromptUseCase(pg.NewPostgresPromptRepo(pool), tm, logger)

	// existing plans are left untouched so operator edits survive a re-run
	for _, s := range catalog {
		in := s.in
		if s.priceEnv != "" {
			in.ExternalPriceRef = os.Getenv(s.priceEnv)
			in.ExternalPriceRefYearly = os.Getenv(s.yearEnv)
			if in.ExternalPriceRef == "" {
				logger.Warn().Str("plan", in.ID).Str("env", s.priceEnv).Msg("price ref not set; plan will be complimentary")
			}
		}
		p, err := planUC.CreatePlan(ctx, in)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			fmt.Printf("exists: %s\n", in.ID)
		case err != nil:
			logger.Fatal().Err(err).Str("plan", in.ID).Msg("create plan")
		default:
			fmt.Printf("seeded: %s (%s, %s/month)\n", p.ID, p.Name, p.PriceMonthly.StringFixed(2))
		}
	}

	if *promptFile != "" {
		b, err := os.ReadFile(*promptFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("read prompt")
		}
		if _, err := promptUC.Set(ctx, strings.TrimSpace(string(b))); err != nil {
			logger.Fatal().Err(err).Msg("set prompt")
		}
		fmt.Println("seeded: system prompt")
	}

	fmt.Println("✅ Seeding complete.")
}
