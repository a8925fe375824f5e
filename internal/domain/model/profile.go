package model

import (
	"strings"
	"time"
	"unicode"

	"ai-chat-subscription/internal/domain"
)

// Profile is the durable per-user record tracking billing and account state.
// It is keyed by the identity provider's user id.
type Profile struct {
	ID                      string
	Email                   string
	FullName                string
	DocumentID              string // CPF
	Phone                   string
	BirthDate               *time.Time
	ActivePlan              string
	SubscriptionStatus      *SubscriptionStatus
	ExternalCustomerRef     *string
	ExternalSubscriptionRef *string
	IsBlocked               bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (p *Profile) IsZero() bool { return p == nil || p.ID == "" }

func (p *Profile) Status() SubscriptionStatus {
	if p == nil || p.SubscriptionStatus == nil {
		return ""
	}
	return *p.SubscriptionStatus
}

func NewProfile(id, email, freePlanID string, now time.Time) (*Profile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Profile{
		ID:         id,
		Email:      strings.ToLower(strings.TrimSpace(email)),
		ActivePlan: freePlanID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ProfilePatch names only the fields a writer owns. Nil pointers are left
// untouched; pointers to "" store NULL.
type ProfilePatch struct {
	ActivePlan              *string
	SubscriptionStatus      *SubscriptionStatus
	ExternalCustomerRef     *string
	ExternalSubscriptionRef *string
	IsBlocked               *bool
	FullName                *string
	DocumentID              *string
	Phone                   *string
	BirthDate               **time.Time
}

func (p ProfilePatch) IsEmpty() bool {
	return p.ActivePlan == nil && p.SubscriptionStatus == nil && p.ExternalCustomerRef == nil &&
		p.ExternalSubscriptionRef == nil && p.IsBlocked == nil && p.FullName == nil &&
		p.DocumentID == nil && p.Phone == nil && p.BirthDate == nil
}

// Apply writes the patch onto an in-memory profile, mirroring the storage
// semantics. Used by tests and by callers that need the resulting snapshot.
func (p ProfilePatch) Apply(dst *Profile, now time.Time) {
	if p.ActivePlan != nil {
		dst.ActivePlan = *p.ActivePlan
	}
	if p.SubscriptionStatus != nil {
		if *p.SubscriptionStatus == "" {
			dst.SubscriptionStatus = nil
		} else {
			s := *p.SubscriptionStatus
			dst.SubscriptionStatus = &s
		}
	}
	if p.ExternalCustomerRef != nil {
		dst.ExternalCustomerRef = nonEmpty(*p.ExternalCustomerRef)
	}
	if p.ExternalSubscriptionRef != nil {
		dst.ExternalSubscriptionRef = nonEmpty(*p.ExternalSubscriptionRef)
	}
	if p.IsBlocked != nil {
		dst.IsBlocked = *p.IsBlocked
	}
	if p.FullName != nil {
		dst.FullName = *p.FullName
	}
	if p.DocumentID != nil {
		dst.DocumentID = *p.DocumentID
	}
	if p.Phone != nil {
		dst.Phone = *p.Phone
	}
	if p.BirthDate != nil {
		dst.BirthDate = *p.BirthDate
	}
	dst.UpdatedAt = now
}

// ProfileFilter narrows the admin user directory listing.
type ProfileFilter struct {
	Query       string
	Plan        string
	Status      SubscriptionStatus
	BlockedOnly bool
	Limit       int
	Offset      int
}

// NormalizeDocumentID strips everything but digits.
func NormalizeDocumentID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidCPF checks the length and both check digits of a Brazilian CPF.
func IsValidCPF(s string) bool {
	d := NormalizeDocumentID(s)
	if len(d) != 11 {
		return false
	}
	same := true
	for i := 1; i < 11; i++ {
		if d[i] != d[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}
	digit := func(n int) int {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		r := (sum * 10) % 11
		if r == 10 {
			r = 0
		}
		return r
	}
	return digit(9) == int(d[9]-'0') && digit(10) == int(d[10]-'0')
}
