package agentcontext

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voiceai-platform/internal/conversations"
	"voiceai-platform/internal/profiles"
)

var ErrInvalidRequest = errors.New("agentcontext: invalid request")

// DefaultTurnLimit bounds the context window when the caller does not.
const DefaultTurnLimit = 10

// Assembler builds the conversation context handed to the voice agent before
// its next turn: the most recent turns rendered chronologically plus the
// user's profile.
//
// Assemble is read-only and safe to call repeatedly.
type Assembler struct {
	turns    conversations.Repository
	profiles profiles.Repository
}

func NewAssembler(turns conversations.Repository, prof profiles.Repository) *Assembler {
	return &Assembler{turns: turns, profiles: prof}
}

// Window is the assembled context for one user.
type Window struct {
	// Context renders each turn as "role: message" joined by newlines,
	// earliest first. Empty string when the user has no history.
	Context string `json:"context"`

	// Profile is nil when the user never saved settings.
	Profile *profiles.Profile `json:"userProfile"`

	ConversationCount int `json:"conversationCount"`
}

// Assemble fetches the limit most recent turns for the user, reverses them to
// chronological order, and renders them verbatim. Role and message text are
// preserved exactly; no truncation or whitespace reformatting.
func (a *Assembler) Assemble(ctx context.Context, userID string, limit int) (Window, error) {
	if userID == "" {
		return Window{}, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultTurnLimit
	}

	recent, err := a.turns.ListRecent(ctx, userID, limit)
	if err != nil {
		return Window{}, fmt.Errorf("agentcontext: list turns: %w", err)
	}

	var b strings.Builder
	// recent is newest-first; walk backwards for chronological order.
	for i := len(recent) - 1; i >= 0; i-- {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(recent[i].Role))
		b.WriteString(": ")
		b.WriteString(recent[i].Message)
	}

	w := Window{
		Context:           b.String(),
		ConversationCount: len(recent),
	}

	p, found, err := a.profiles.Find(ctx, userID)
	if err != nil {
		return Window{}, fmt.Errorf("agentcontext: load profile: %w", err)
	}
	if found {
		w.Profile = &p
	}
	return w, nil
}
