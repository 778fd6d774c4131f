package domain

import (
	"encoding/json"
	"time"
)

// Actions recorded in the person audit trail and published as change events.
const (
	ActionCreated  = "person.created"
	ActionReplaced = "person.replaced"
	ActionMerged   = "person.merged"
	ActionDeleted  = "person.deleted"
)

// ChangeEnvelope is the wire form of a registry change event delivered
// through the outbox.
type ChangeEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	PersonID   uint64          `json:"person_id"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// AuditEntry is one row of the per-person audit trail. Before and After hold
// JSON snapshots of the record around the mutation; Before is empty for
// creations.
type AuditEntry struct {
	ID         int64           `json:"id"`
	PersonID   uint64          `json:"person_id"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor"`
	BeforeJSON json.RawMessage `json:"before_json,omitempty"`
	AfterJSON  json.RawMessage `json:"after_json,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type AuditFilter struct {
	PersonID uint64
	Action   string
	AfterID  int64
	Limit    int
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
