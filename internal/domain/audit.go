package domain

import "time"

// Audit event types emitted by this service.
const (
	EventAccountCreated      = "account_created"
	EventAccountFieldChanged = "account_field_changed"
	EventAccountClosed       = "account_closed"
)

type AuditEvent struct {
	EventID    string                 `json:"event_id"`
	Service    string                 `json:"service"`
	EventType  string                 `json:"event_type"`
	EntityID   string                 `json:"entity_id"`
	Actor      string                 `json:"actor,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}
