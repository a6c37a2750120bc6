package anomaly

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for anomaly events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records ingest anomalies.
//
// Callers should treat anomaly logging as best-effort: log the returned error
// and continue the request.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("anomaly: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("anomaly: repository not configured")
	}
	if e.CallSID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTransition records a rejected or suspicious status transition.
func (s *Service) LogTransition(ctx context.Context, typ EventType, callSID, userID, from, to, message string) error {
	return s.Append(ctx, Event{
		Type:       typ,
		CallSID:    callSID,
		UserID:     userID,
		FromStatus: from,
		ToStatus:   to,
		Message:    message,
	})
}
