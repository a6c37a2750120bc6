package calls

import (
	"time"

	"voiceai-platform/pkg/utils"
)

// CallRecord tracks one outbound call's lifecycle.
//
// Identity invariant: CallSID is the provider-assigned id and the natural key;
// at most one row exists per CallSID.
//
// Terminal fields (Status once terminal, Duration, RecordingURL, Transcript)
// are write-once: the first terminal event sets them and later events must not
// overwrite them. Records are never deleted.
type CallRecord struct {
	CallSID     string `json:"call_sid" db:"call_sid"`
	UserID      string `json:"user_id,omitempty" db:"user_id"`
	PhoneNumber string `json:"phone_number,omitempty" db:"phone_number"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is present only once the call has ended.
	// Pointer distinguishes "not yet reported" from a zero-length call.
	DurationSeconds *int `json:"duration,omitempty" db:"duration"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`

	Metadata utils.JSONMap `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
)

// statusRank orders the lifecycle so transitions can only move forward.
// All terminal states share the highest rank.
var statusRank = map[CallStatus]int{
	CallStatusInitiated:  0,
	CallStatusRinging:    1,
	CallStatusInProgress: 2,
	CallStatusCompleted:  3,
	CallStatusFailed:     3,
	CallStatusBusy:       3,
	CallStatusNoAnswer:   3,
	CallStatusCanceled:   3,
}

// IsValid reports whether s is a known lifecycle status.
func (s CallStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether s is absorbing: once a record reaches a terminal
// status no further legitimate transition occurs.
func (s CallStatus) IsTerminal() bool {
	return statusRank[s] == 3 && s.IsValid()
}

// canTransition reports whether a stored status may be overwritten by next.
// Same-status redelivery is allowed (no-op overwrite); terminal states reject
// everything, including other terminal states.
func canTransition(cur, next CallStatus) bool {
	if cur == next {
		return true
	}
	if cur.IsTerminal() {
		return false
	}
	return statusRank[next] > statusRank[cur]
}
