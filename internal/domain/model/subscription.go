package model

import "strings"

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// KnownSubscriptionStatuses are the statuses the directory can filter on.
var KnownSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
}

func ParseSubscriptionStatus(s string) (SubscriptionStatus, bool) {
	v := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range KnownSubscriptionStatuses {
		if v == k {
			return v, true
		}
	}
	return "", false
}

// Grants reports whether the status alone permits access.
func (s SubscriptionStatus) Grants() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

const (
	GateReasonNoProfile = "no profile"
	GateReasonInactive  = "inactive subscription"
)

type GateDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CheckAccess decides whether a profile may use chat. plan is the catalog entry
// for profile.ActivePlan and may be nil when it could not be resolved, in which
// case freePlanID identifies the complimentary tier by id. No I/O.
func CheckAccess(profile *Profile, plan *Plan, freePlanID string) GateDecision {
	if profile.IsZero() {
		return GateDecision{Reason: GateReasonNoProfile}
	}
	if plan != nil && plan.ID == profile.ActivePlan && plan.IsComplimentary() {
		return GateDecision{Allowed: true}
	}
	if plan == nil && freePlanID != "" && profile.ActivePlan == freePlanID {
		return GateDecision{Allowed: true}
	}
	if profile.Status().Grants() {
		return GateDecision{Allowed: true}
	}
	return GateDecision{Reason: GateReasonInactive}
}
