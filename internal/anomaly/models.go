package anomaly

import "time"

// Event is an immutable, append-only record of an ingest anomaly.
//
// Anomalies are provider events that violate the call lifecycle (a terminal
// record receiving another terminal status, a terminal record receiving a
// non-terminal status, an out-of-order non-terminal status, or a redelivered
// terminal event). They are logged and absorbed: rejecting a redelivered
// event would break the provider's at-least-once contract.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; ingestion must not fail because anomaly
//   persistence failed.
type Event struct {
	ID string `json:"id" db:"id"`

	Type EventType `json:"type" db:"type"`

	CallSID string `json:"call_sid" db:"call_sid"`
	UserID  string `json:"user_id,omitempty" db:"user_id"`

	// FromStatus/ToStatus capture the rejected transition.
	FromStatus string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string `json:"to_status,omitempty" db:"to_status"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeDuplicateTerminal EventType = "duplicate_terminal"
	EventTypeTerminalOverwrite EventType = "terminal_overwrite"
	EventTypeOutOfOrderStatus  EventType = "out_of_order_status"
)
