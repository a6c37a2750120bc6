package profiles

import (
	"time"

	"voiceai-platform/pkg/utils"
)

// Profile holds per-user identity and voice preferences.
//
// At most one row exists per user; absence is valid until the user saves
// settings for the first time.
type Profile struct {
	UserID      string `json:"user_id" db:"user_id"`
	FullName    string `json:"full_name,omitempty" db:"full_name"`
	PhoneNumber string `json:"phone_number,omitempty" db:"phone_number"`

	// VoicePreferences is an open bag (speed, gender, ...) consumed by the
	// voice agent; the backend does not interpret it.
	VoicePreferences utils.JSONMap `json:"voice_preferences" db:"voice_preferences"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
