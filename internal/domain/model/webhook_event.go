package model

import (
	"encoding/json"
	"time"
)

type WebhookEventStatus string

const (
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventError     WebhookEventStatus = "error"
)

// Payment processor event types consumed by the webhook processor.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// WebhookEventRecord is the audit row for one processor event, keyed by the
// processor's event id. Reprocessing overwrites it in place.
type WebhookEventRecord struct {
	ExternalEventID string
	EventType       string
	Status          WebhookEventStatus
	ErrorMessage    *string
	RawPayload      json.RawMessage
	ReceivedAt      time.Time
	ProcessedAt     *time.Time
}

// WebhookEvent is the envelope of a processor event.
type WebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the subset of a completed checkout the processor reads.
type CheckoutSession struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// BillingSubscription is the subset of a processor subscription object the
// processor reads.
type BillingSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// PriceRef returns the price id of the first line item, if any.
func (s *BillingSubscription) PriceRef() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// Checkout metadata keys written at checkout time.
const (
	CheckoutMetaUserID = "userId"
	CheckoutMetaPlan   = "plan"
)
