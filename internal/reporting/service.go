package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voiceai-platform/internal/calls"
	"voiceai-platform/internal/conversations"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const recentWindow = 24 * time.Hour

// Service aggregates per-user activity counts for the dashboard.
type Service struct {
	calls calls.Repository
	turns conversations.Repository
	clock func() time.Time
}

func NewService(callRepo calls.Repository, turnRepo conversations.Repository) *Service {
	return &Service{
		calls: callRepo,
		turns: turnRepo,
		clock: time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) ActivitySummary(ctx context.Context, userID string) (ActivitySummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ActivitySummary{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	totalCalls, err := s.calls.CountByUser(ctx, userID)
	if err != nil {
		return ActivitySummary{}, fmt.Errorf("count calls: %w", err)
	}
	totalTurns, err := s.turns.CountByUser(ctx, userID)
	if err != nil {
		return ActivitySummary{}, fmt.Errorf("count conversations: %w", err)
	}
	recent, err := s.turns.CountByUserSince(ctx, userID, s.clock().Add(-recentWindow))
	if err != nil {
		return ActivitySummary{}, fmt.Errorf("count recent activity: %w", err)
	}

	return ActivitySummary{
		UserID:             userID,
		TotalConversations: totalTurns,
		TotalCalls:         totalCalls,
		RecentActivity:     recent,
	}, nil
}
