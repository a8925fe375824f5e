//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"

	"github.com/shopspring/decimal"
)

func TestPlanRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresPlanRepo(testPool)
	ctx := context.Background()
	cleanup(t)

	yearly := decimal.RequireFromString("290.00")
	plan, err := model.NewPlan(model.PlanInput{
		Name:             "Pro Plan",
		Description:      "everything",
		PriceMonthly:     decimal.RequireFromString("29.90"),
		PriceYearly:      &yearly,
		ExternalPriceRef: "price_pro_m",
		Features:         []string{"unlimited chat", "priority"},
		SortOrder:        1,
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("model.NewPlan() failed: %v", err)
	}

	t.Run("should create and read a new plan", func(t *testing.T) {
		if err := repo.Create(ctx, repository.NoTX, plan); err != nil {
			t.Fatalf("Failed to save new plan: %v", err)
		}
		found, err := repo.FindByID(ctx, repository.NoTX, plan.ID)
		if err != nil {
			t.Fatalf("Failed to find plan by ID: %v", err)
		}
		if found.Name != "Pro Plan" || !found.PriceMonthly.Equal(plan.PriceMonthly) {
			t.Errorf("Mismatch in retrieved plan data: %+v", found)
		}
		if found.PriceYearly == nil || !found.PriceYearly.Equal(yearly) {
			t.Errorf("yearly price not round-tripped: %v", found.PriceYearly)
		}
		if len(found.Features) != 2 {
			t.Errorf("expected 2 features, got %v", found.Features)
		}
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		if err := repo.Create(ctx, repository.NoTX, plan); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("should resolve by either price ref", func(t *testing.T) {
		found, err := repo.FindByPriceRef(ctx, repository.NoTX, "price_pro_m")
		if err != nil || found.ID != plan.ID {
			t.Fatalf("FindByPriceRef: %+v, %v", found, err)
		}
		if _, err := repo.FindByPriceRef(ctx, repository.NoTX, "price_missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("deactivated plans are hidden from the public list", func(t *testing.T) {
		free, _ := model.NewPlan(model.PlanInput{ID: "free", Name: "Free", Description: "basic"}, time.Now().UTC())
		if err := repo.Create(ctx, repository.NoTX, free); err != nil {
			t.Fatalf("create free: %v", err)
		}
		plan.IsActive = false
		plan.UpdatedAt = time.Now().UTC()
		if err := repo.Update(ctx, repository.NoTX, plan); err != nil {
			t.Fatalf("update: %v", err)
		}
		active, err := repo.List(ctx, repository.NoTX, false)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(active) != 1 || active[0].ID != "free" {
			t.Fatalf("expected only free, got %d plans", len(active))
		}
		all, _ := repo.List(ctx, repository.NoTX, true)
		if len(all) != 2 || all[0].ID != "free" {
			t.Fatalf("expected free first by sort order, got %d plans", len(all))
		}
	})

	t.Run("update of unknown plan", func(t *testing.T) {
		ghost := *plan
		ghost.ID = "ghost"
		if err := repo.Update(ctx, repository.NoTX, &ghost); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
