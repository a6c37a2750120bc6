package profiles

import (
	"context"
	"errors"
	"time"

	"voiceai-platform/pkg/utils"
)

var ErrInvalidArgument = errors.New("profiles: invalid argument")

// Service handles profile reads and wholesale saves.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Get returns the user's profile, or (nil, nil) when none has been saved yet.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	p, found, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

type SaveRequest struct {
	FullName         string        `json:"full_name"`
	PhoneNumber      string        `json:"phone_number"`
	VoicePreferences utils.JSONMap `json:"voice_preferences"`
}

// Save replaces the profile wholesale, creating it on first save.
func (s *Service) Save(ctx context.Context, userID string, req SaveRequest) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	prefs := req.VoicePreferences
	if prefs == nil {
		prefs = utils.JSONMap{}
	}
	return s.repo.Upsert(ctx, Profile{
		UserID:           userID,
		FullName:         req.FullName,
		PhoneNumber:      req.PhoneNumber,
		VoicePreferences: prefs,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}
