package model

import (
	"fmt"
	"strings"
	"time"

	"ai-chat-subscription/internal/domain"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

const (
	maxPlanIDLen = 40
)

// Plan is a named subscription tier. Plans are never removed; retiring one
// flips IsActive so billing history keeps resolving the id.
type Plan struct {
	ID                     string
	Name                   string
	Description            string
	PriceMonthly           decimal.Decimal
	PriceYearly            *decimal.Decimal
	ExternalPriceRef       *string // processor price id for the monthly interval
	ExternalPriceRefYearly *string
	Features               []string
	IsActive               bool
	SortOrder              int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// IsComplimentary reports whether the plan costs nothing and has no billing
// reference. Such plans bypass subscription status checks.
func (p *Plan) IsComplimentary() bool {
	if p == nil {
		return false
	}
	return p.PriceMonthly.IsZero() && strOrEmpty(p.ExternalPriceRef) == "" && strOrEmpty(p.ExternalPriceRefYearly) == ""
}

// PriceRefFor returns the processor price id for the billing interval.
func (p *Plan) PriceRefFor(interval BillingInterval) string {
	if interval == BillingYearly {
		return strOrEmpty(p.ExternalPriceRefYearly)
	}
	return strOrEmpty(p.ExternalPriceRef)
}

type BillingInterval string

const (
	BillingMonthly BillingInterval = "monthly"
	BillingYearly  BillingInterval = "yearly"
)

// PlanInput carries the fields an operator may supply when creating a plan.
type PlanInput struct {
	ID                     string
	Name                   string
	Description            string
	PriceMonthly           decimal.Decimal
	PriceYearly            *decimal.Decimal
	ExternalPriceRef       string
	ExternalPriceRefYearly string
	Features               []string
	IsActive               *bool
	SortOrder              int
}

// NewPlan validates in and builds a plan, deriving the id from the name when
// none is given.
func NewPlan(in PlanInput, now time.Time) (*Plan, error) {
	name := strings.TrimSpace(in.Name)
	desc := strings.TrimSpace(in.Description)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if desc == "" {
		return nil, domain.NewValidationError("description", "is required")
	}
	if in.PriceMonthly.IsNegative() {
		return nil, domain.NewValidationError("priceMonthly", "must not be negative")
	}
	if in.PriceYearly != nil && in.PriceYearly.IsNegative() {
		return nil, domain.NewValidationError("priceYearly", "must not be negative")
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &Plan{
		ID:                     PlanIDFor(in.ID, name, now),
		Name:                   name,
		Description:            desc,
		PriceMonthly:           in.PriceMonthly,
		PriceYearly:            in.PriceYearly,
		ExternalPriceRef:       nonEmpty(in.ExternalPriceRef),
		ExternalPriceRefYearly: nonEmpty(in.ExternalPriceRefYearly),
		Features:               CleanFeatures(in.Features),
		IsActive:               active,
		SortOrder:              in.SortOrder,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

// PlanIDFor picks the explicit id, else a slug of the name, else a timestamped
// fallback. The result is capped at 40 characters.
func PlanIDFor(explicit, name string, now time.Time) string {
	id := slug.Make(strings.TrimSpace(explicit))
	if id == "" {
		id = slug.Make(name)
	}
	if id == "" {
		id = fmt.Sprintf("plan-%d", now.UnixMilli())
	}
	if len(id) > maxPlanIDLen {
		id = strings.TrimRight(id[:maxPlanIDLen], "-")
	}
	return id
}

// PlanPatch is a sparse update; nil fields are left untouched.
type PlanPatch struct {
	Name                   *string
	Description            *string
	PriceMonthly           *decimal.Decimal
	PriceYearly            *decimal.Decimal
	ClearPriceYearly       bool
	ExternalPriceRef       *string // empty string clears the reference
	ExternalPriceRefYearly *string
	Features               *[]string
	IsActive               *bool
	SortOrder              *int
}

func (p PlanPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.PriceMonthly == nil && p.PriceYearly == nil &&
		!p.ClearPriceYearly && p.ExternalPriceRef == nil && p.ExternalPriceRefYearly == nil &&
		p.Features == nil && p.IsActive == nil && p.SortOrder == nil
}

// Apply validates the patch and writes it onto plan.
func (p PlanPatch) Apply(plan *Plan, now time.Time) error {
	if p.IsEmpty() {
		return domain.ErrNoChanges
	}
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		if v == "" {
			return domain.NewValidationError("name", "must not be blank")
		}
		plan.Name = v
	}
	if p.Description != nil {
		v := strings.TrimSpace(*p.Description)
		if v == "" {
			return domain.NewValidationError("description", "must not be blank")
		}
		plan.Description = v
	}
	if p.PriceMonthly != nil {
		if p.PriceMonthly.IsNegative() {
			return domain.NewValidationError("priceMonthly", "must not be negative")
		}
		plan.PriceMonthly = *p.PriceMonthly
	}
	if p.ClearPriceYearly {
		plan.PriceYearly = nil
	} else if p.PriceYearly != nil {
		if p.PriceYearly.IsNegative() {
			return domain.NewValidationError("priceYearly", "must not be negative")
		}
		v := *p.PriceYearly
		plan.PriceYearly = &v
	}
	if p.ExternalPriceRef != nil {
		plan.ExternalPriceRef = nonEmpty(*p.ExternalPriceRef)
	}
	if p.ExternalPriceRefYearly != nil {
		plan.ExternalPriceRefYearly = nonEmpty(*p.ExternalPriceRefYearly)
	}
	if p.Features != nil {
		plan.Features = CleanFeatures(*p.Features)
	}
	if p.IsActive != nil {
		plan.IsActive = *p.IsActive
	}
	if p.SortOrder != nil {
		plan.SortOrder = *p.SortOrder
	}
	plan.UpdatedAt = now
	return nil
}

// CleanFeatures trims entries and drops blanks, keeping order.
func CleanFeatures(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
