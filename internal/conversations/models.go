package conversations

import (
	"time"

	"voiceai-platform/pkg/utils"
)

// Turn is one utterance in a user's interaction history.
//
// Turns are immutable once created and never deleted. Chronological order is
// defined by CreatedAt ascending.
type Turn struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Role    Role   `json:"role" db:"role"`
	Message string `json:"message" db:"message"`

	// Metadata carries provenance. Turns derived from a completed call tag
	// MetaKeyCallSID so redelivered webhooks can detect the prior derivation.
	Metadata utils.JSONMap `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Metadata keys used by derived turns.
const (
	MetaKeyCallSID     = "call_sid"
	MetaKeySource      = "source"
	MetaKeyPhoneNumber = "phone_number"

	SourceVoiceCall = "voice_call"
)
