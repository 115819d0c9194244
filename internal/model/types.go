package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultAccount is the scope marker for events belonging to the platform's
// own account rather than a connected account.
const DefaultAccount = ""

// Event is the provider-issued event envelope as delivered on the wire.
// Events are immutable; we only ever read them.
type Event struct {
	ID              string    `json:"id"`
	Object          string    `json:"object,omitempty"`
	Type            string    `json:"type"`
	Account         string    `json:"account,omitempty"`
	APIVersion      string    `json:"api_version,omitempty"`
	Created         int64     `json:"created,omitempty"`
	Livemode        bool      `json:"livemode,omitempty"`
	PendingWebhooks int       `json:"pending_webhooks,omitempty"`
	Data            EventData `json:"data"`
}

type EventData struct {
	Object        json.RawMessage `json:"object"`
	PreviousAttrs json.RawMessage `json:"previous_attributes,omitempty"`
}

// ParseEvent decodes a raw event payload and checks the minimum we need to
// dispatch it: an event ID and a type.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("event payload has no id")
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event %s has no type", ev.ID)
	}
	return &ev, nil
}

// ObjectID extracts the id of the object carried in data.object.
func (e *Event) ObjectID() string {
	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(e.Data.Object, &obj)
	return obj.ID
}

// WebhookEventTrigger is the local audit record of one inbound webhook
// delivery attempt. One row is created per accepted POST (signature header
// present), before and independent of processing. Retried deliveries of the
// same logical event produce multiple trigger rows; only the reconciliation
// they share is idempotent.
type WebhookEventTrigger struct {
	ID           string    `json:"id"`
	EndpointType string    `json:"endpointType"` // "account" or "connect"
	RemoteIP     string    `json:"remoteIp,omitempty"`
	Headers      string    `json:"headers,omitempty"` // JSON-encoded request headers
	Body         []byte    `json:"body,omitempty"`
	Valid        bool      `json:"valid"`
	IsTestEvent  bool      `json:"isTestEvent"`
	Processed    bool      `json:"processed"`
	Exception    string    `json:"exception,omitempty"`
	EventID      string    `json:"eventId,omitempty"`
	EventType    string    `json:"eventType,omitempty"`
	Account      string    `json:"account,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Endpoint types for webhook trigger rows.
const (
	EndpointAccount = "account"
	EndpointConnect = "connect"
)

// EventRecord ties one applied (or skipped) provider event to local state.
// Every billing object mutation is traceable to exactly one EventID.
type EventRecord struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	Account    string    `json:"account,omitempty"`
	Outcome    string    `json:"outcome"` // "applied" or "skipped"
	ObjectKind string    `json:"objectKind,omitempty"`
	ObjectID   string    `json:"objectId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Event record outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
)

// BillingObject is the generic reconciliation target: one provider object
// (customer, invoice, subscription, ...) persisted as its latest payload.
type BillingObject struct {
	Account   string          `json:"account,omitempty"`
	Kind      string          `json:"kind"`
	ObjectID  string          `json:"objectId"`
	Payload   json.RawMessage `json:"payload"`
	EventID   string          `json:"eventId,omitempty"` // event that last touched it
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Account identifies a connected account whose events are scoped apart from
// the default account.
type Account struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
