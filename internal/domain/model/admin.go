package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated session produced by the identity provider.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
}

type AdminActionKind string

const (
	ActionUpdatePlan    AdminActionKind = "updatePlan"
	ActionResetPassword AdminActionKind = "resetPassword"
	ActionToggleBlock   AdminActionKind = "toggleBlock"
)

const MinPasswordLength = 6

// AdminAction is one operator request against a user profile. Only the field
// matching Kind is read.
type AdminAction struct {
	Kind     AdminActionKind
	Plan     string
	Password string
	Blocked  bool
}

// AdminLog records an operator action for the admin activity feed.
type AdminLog struct {
	ID        string
	ActorID   string
	Action    string
	TargetID  string
	Details   json.RawMessage
	CreatedAt time.Time
}

func NewAdminLog(actorID, action, targetID string, details any, now time.Time) *AdminLog {
	raw, err := json.Marshal(details)
	if err != nil || string(raw) == "null" {
		raw = json.RawMessage(`{}`)
	}
	return &AdminLog{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		Details:   raw,
		CreatedAt: now,
	}
}

// DailyPoint is one day of a dashboard series.
type DailyPoint struct {
	Day   time.Time
	Count int
}

// Dashboard aggregates the usage analytics shown to operators.
type Dashboard struct {
	TotalUsers        int
	ActiveSubscribers int
	TotalSessions     int
	TotalMessages     int
	UsersByPlan       map[string]int
	Signups           []DailyPoint
	UserMessages      []DailyPoint
	AssistantMessages []DailyPoint
	PromptUpdatedAt   *time.Time
}
