package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"ai-chat-subscription/internal/domain/model"
)

const dateLayout = time.DateOnly

// ----- requests -----

type profileRequest struct {
	FullName  *string `json:"fullName" validate:"omitempty,max=120"`
	CPF       *string `json:"cpf" validate:"omitempty,max=20"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	BirthDate *string `json:"birthDate"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type checkoutRequest struct {
	Plan     string `json:"plan" validate:"required"`
	Interval string `json:"interval" validate:"omitempty,oneof=monthly yearly"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
	ChatID  string `json:"chatId"`
}

type planCreateRequest struct {
	ID                  string           `json:"id" validate:"omitempty,max=40"`
	Name                string           `json:"name" validate:"required,max=80"`
	Description         string           `json:"description" validate:"required"`
	PriceMonthly        decimal.Decimal  `json:"priceMonthly"`
	PriceYearly         *decimal.Decimal `json:"priceYearly"`
	StripePriceID       string           `json:"stripePriceId"`
	StripePriceIDYearly string           `json:"stripePriceIdYearly"`
	Features            []string         `json:"features"`
	IsActive            *bool            `json:"isActive"`
	SortOrder           int              `json:"sortOrder" validate:"gte=0"`
}

// planPatchRequest distinguishes an absent priceYearly from an explicit null.
type planPatchRequest struct {
	Name                *string          `json:"name" validate:"omitempty,max=80"`
	Description         *string          `json:"description"`
	PriceMonthly        *decimal.Decimal `json:"priceMonthly"`
	PriceYearly         json.RawMessage  `json:"priceYearly"`
	StripePriceID       *string          `json:"stripePriceId"`
	StripePriceIDYearly *string          `json:"stripePriceIdYearly"`
	Features            *[]string        `json:"features"`
	IsActive            *bool            `json:"isActive"`
	SortOrder           *int             `json:"sortOrder" validate:"omitempty,gte=0"`
}

type promptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type adminActionRequest struct {
	Action      string `json:"action" validate:"required,oneof=updatePlan resetPassword toggleBlock"`
	Plan        string `json:"plan"`
	NewPassword string `json:"newPassword"`
	Blocked     bool   `json:"blocked"`
}

// ----- responses -----

type planDTO struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	PriceMonthly        decimal.Decimal  `json:"priceMonthly"`
	PriceYearly         *decimal.Decimal `json:"priceYearly,omitempty"`
	StripePriceID       *string          `json:"stripePriceId,omitempty"`
	StripePriceIDYearly *string          `json:"stripePriceIdYearly,omitempty"`
	Features            []string         `json:"features"`
	IsActive            bool             `json:"isActive"`
	SortOrder           int              `json:"sortOrder"`
	Complimentary       bool             `json:"complimentary"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

func toPlanDTO(p *model.Plan) *planDTO {
	if p == nil {
		return nil
	}
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return &planDTO{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		PriceMonthly:        p.PriceMonthly,
		PriceYearly:         p.PriceYearly,
		StripePriceID:       p.ExternalPriceRef,
		StripePriceIDYearly: p.ExternalPriceRefYearly,
		Features:            features,
		IsActive:            p.IsActive,
		SortOrder:           p.SortOrder,
		Complimentary:       p.IsComplimentary(),
		UpdatedAt:           p.UpdatedAt,
	}
}

func toPlanDTOs(ps []*model.Plan) []*planDTO {
	out := make([]*planDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPlanDTO(p))
	}
	return out
}

type profileDTO struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	FullName           string    `json:"fullName"`
	CPF                string    `json:"cpf"`
	Phone              string    `json:"phone"`
	BirthDate          string    `json:"birthDate,omitempty"`
	ActivePlan         string    `json:"activePlan"`
	SubscriptionStatus string    `json:"subscriptionStatus,omitempty"`
	HasBillingAccount  bool      `json:"hasBillingAccount"`
	IsBlocked          bool      `json:"isBlocked"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toProfileDTO(p *model.Profile) *profileDTO {
	if p == nil {
		return nil
	}
	out := &profileDTO{
		ID:                 p.ID,
		Email:              p.Email,
		FullName:           p.FullName,
		CPF:                p.DocumentID,
		Phone:              p.Phone,
		ActivePlan:         p.ActivePlan,
		SubscriptionStatus: string(p.Status()),
		HasBillingAccount:  p.ExternalCustomerRef != nil && *p.ExternalCustomerRef != "",
		IsBlocked:          p.IsBlocked,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.BirthDate != nil {
		out.BirthDate = p.BirthDate.Format(dateLayout)
	}
	return out
}

func toProfileDTOs(ps []*model.Profile) []*profileDTO {
	out := make([]*profileDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProfileDTO(p))
	}
	return out
}

type sessionDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toSessionDTO(s *model.ChatSession) sessionDTO {
	return sessionDTO{ID: s.ID, Title: s.TitleOrDefault(), CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func toSessionDTOs(ss []*model.ChatSession) []sessionDTO {
	out := make([]sessionDTO, 0, len(ss))
	for _, s := range ss {
		out = append(out, toSessionDTO(s))
	}
	return out
}

type messageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func toMessageDTO(m *model.ChatMessage) messageDTO {
	return messageDTO{ID: m.ID, Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt}
}

func toMessageDTOs(ms []*model.ChatMessage) []messageDTO {
	out := make([]messageDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMessageDTO(m))
	}
	return out
}

type usageDTO struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type promptDTO struct {
	Prompt    string             `json:"prompt"`
	Default   string             `json:"default"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
	History   []promptVersionDTO `json:"history"`
}

type promptVersionDTO struct {
	Prompt       string    `json:"prompt"`
	SupersededAt time.Time `json:"supersededAt"`
}

func toPromptDTO(s *model.PromptSnapshot) promptDTO {
	out := promptDTO{Prompt: s.Current, Default: s.Default, UpdatedAt: s.UpdatedAt, History: make([]promptVersionDTO, 0, len(s.History))}
	for _, v := range s.History {
		out.History = append(out.History, promptVersionDTO{Prompt: v.PromptText, SupersededAt: v.SupersededAt})
	}
	return out
}

type webhookEventDTO struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	ReceivedAt  time.Time  `json:"receivedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

func toWebhookEventDTO(r *model.WebhookEventRecord) webhookEventDTO {
	return webhookEventDTO{
		ID:          r.ExternalEventID,
		Type:        r.EventType,
		Status:      string(r.Status),
		Error:       r.ErrorMessage,
		ReceivedAt:  r.ReceivedAt,
		ProcessedAt: r.ProcessedAt,
	}
}

type adminLogDTO struct {
	ID        string          `json:"id"`
	ActorID   string          `json:"actorId"`
	Action    string          `json:"action"`
	TargetID  string          `json:"targetId,omitempty"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"createdAt"`
}

type dailyDTO struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

func toDaily(pts []model.DailyPoint) []dailyDTO {
	out := make([]dailyDTO, 0, len(pts))
	for _, p := range pts {
		out = append(out, dailyDTO{Day: p.Day.Format(dateLayout), Count: p.Count})
	}
	return out
}

type dashboardDTO struct {
	TotalUsers        int            `json:"totalUsers"`
	ActiveSubscribers int            `json:"activeSubscribers"`
	TotalSessions     int            `json:"totalSessions"`
	TotalMessages     int            `json:"totalMessages"`
	UsersByPlan       map[string]int `json:"usersByPlan"`
	Signups           []dailyDTO     `json:"signups"`
	UserMessages      []dailyDTO     `json:"userMessages"`
	AssistantMessages []dailyDTO     `json:"assistantMessages"`
	PromptUpdatedAt   *time.Time     `json:"promptUpdatedAt,omitempty"`
}
