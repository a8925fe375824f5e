package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	SessionTitleMax      = 80
	DefaultSessionTitle  = "New chat"
	sessionTitleEllipsis = "…"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ChatMessage is immutable once stored. Messages of a session are ordered by
// CreatedAt, ties broken by ID.
type ChatMessage struct {
	ID        string
	SessionID string
	OwnerID   string
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}

// ChatSession is one conversation thread owned by a single user.
type ChatSession struct {
	ID        string
	OwnerID   string
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *ChatSession) TitleOrDefault() string {
	if s == nil || s.Title == nil || *s.Title == "" {
		return DefaultSessionTitle
	}
	return *s.Title
}

func NewChatSession(id, ownerID, firstMessage string, now time.Time) *ChatSession {
	title := DeriveSessionTitle(firstMessage)
	return &ChatSession{
		ID:        id,
		OwnerID:   ownerID,
		Title:     &title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeriveSessionTitle collapses whitespace, trims and truncates content to
// SessionTitleMax runes followed by an ellipsis.
func DeriveSessionTitle(content string) string {
	normalized := strings.Join(strings.Fields(content), " ")
	if normalized == "" {
		return DefaultSessionTitle
	}
	if utf8.RuneCountInString(normalized) <= SessionTitleMax {
		return normalized
	}
	runes := []rune(normalized)
	return string(runes[:SessionTitleMax]) + sessionTitleEllipsis
}

// ContextWindow returns at most n of the latest messages, oldest first.
// history must already be in chronological order.
func ContextWindow(history []*ChatMessage, n int) []*ChatMessage {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
