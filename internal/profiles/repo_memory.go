package profiles

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	Profiles map[string]Profile

	FailNext error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Profiles: map[string]Profile{}}
}

func (m *MemoryRepo) takeErr() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *MemoryRepo) Find(_ context.Context, userID string) (Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return Profile{}, false, err
	}
	p, ok := m.Profiles[userID]
	return p, ok, nil
}

func (m *MemoryRepo) Upsert(_ context.Context, p Profile) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return Profile{}, err
	}
	if prev, ok := m.Profiles[p.UserID]; ok {
		p.CreatedAt = prev.CreatedAt
	}
	m.Profiles[p.UserID] = p
	return p, nil
}
