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
)

func TestProfileRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresProfileRepo(testPool)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("sparse patches leave other columns alone", func(t *testing.T) {
		cleanup(t)
		p, _ := model.NewProfile("u1", "Ana@Example.com", "free", now)
		if err := repo.Create(ctx, repository.NoTX, p); err != nil {
			t.Fatalf("create: %v", err)
		}
		blocked := true
		if err := repo.UpdateByID(ctx, repository.NoTX, "u1", model.ProfilePatch{IsBlocked: &blocked}); err != nil {
			t.Fatalf("block: %v", err)
		}
		cus := "cus_1"
		plan := "pro"
		status := model.SubscriptionStatusActive
		if err := repo.UpdateByID(ctx, repository.NoTX, "u1", model.ProfilePatch{
			ExternalCustomerRef: &cus, ActivePlan: &plan, SubscriptionStatus: &status,
		}); err != nil {
			t.Fatalf("billing patch: %v", err)
		}
		got, err := repo.FindByCustomerRef(ctx, repository.NoTX, "cus_1")
		if err != nil {
			t.Fatalf("find by customer: %v", err)
		}
		if !got.IsBlocked || got.ActivePlan != "pro" || got.Status() != model.SubscriptionStatusActive {
			t.Fatalf("unexpected profile: %+v", got)
		}
		if got.Email != "ana@example.com" {
			t.Fatalf("expected normalized email, got %q", got.Email)
		}
	})

	t.Run("update by customer ref reports matched rows", func(t *testing.T) {
		status := model.SubscriptionStatusCanceled
		n, err := repo.UpdateByCustomerRef(ctx, repository.NoTX, "cus_unknown", model.ProfilePatch{SubscriptionStatus: &status})
		if err != nil || n != 0 {
			t.Fatalf("expected 0 rows, got %d, %v", n, err)
		}
		n, err = repo.UpdateByCustomerRef(ctx, repository.NoTX, "cus_1", model.ProfilePatch{SubscriptionStatus: &status})
		if err != nil || n != 1 {
			t.Fatalf("expected 1 row, got %d, %v", n, err)
		}
	})

	t.Run("filtering and counts", func(t *testing.T) {
		p2, _ := model.NewProfile("u2", "bob@example.com", "free", now.Add(time.Minute))
		if err := repo.Create(ctx, repository.NoTX, p2); err != nil {
			t.Fatalf("create: %v", err)
		}
		list, err := repo.List(ctx, repository.NoTX, model.ProfileFilter{Query: "BOB"})
		if err != nil || len(list) != 1 || list[0].ID != "u2" {
			t.Fatalf("query filter: %v %v", len(list), err)
		}
		list, _ = repo.List(ctx, repository.NoTX, model.ProfileFilter{BlockedOnly: true})
		if len(list) != 1 || list[0].ID != "u1" {
			t.Fatalf("blocked filter returned %d", len(list))
		}
		byPlan, err := repo.CountByPlan(ctx, repository.NoTX)
		if err != nil || byPlan["free"] != 1 || byPlan["pro"] != 1 {
			t.Fatalf("count by plan: %v %v", byPlan, err)
		}
		n, _ := repo.CountWithStatus(ctx, repository.NoTX, model.SubscriptionStatusActive, model.SubscriptionStatusTrialing)
		if n != 0 {
			t.Fatalf("expected no active subscribers, got %d", n)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		if _, err := repo.FindByID(ctx, repository.NoTX, "nobody"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		plan := "pro"
		if err := repo.UpdateByID(ctx, repository.NoTX, "nobody", model.ProfilePatch{ActivePlan: &plan}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
