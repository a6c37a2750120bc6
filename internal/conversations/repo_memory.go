package conversations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	Turns []Turn

	FailNext error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) takeErr() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *MemoryRepo) Insert(_ context.Context, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	m.Turns = append(m.Turns, t)
	return nil
}

func (m *MemoryRepo) ListRecent(_ context.Context, userID string, limit int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	var out []Turn
	for _, t := range m.Turns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) ExistsForCall(_ context.Context, userID, callSID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return false, err
	}
	for _, t := range m.Turns {
		if t.UserID != userID {
			continue
		}
		if sid, ok := t.Metadata[MetaKeyCallSID].(string); ok && sid == callSID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepo) CountByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range m.Turns {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) CountByUserSince(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range m.Turns {
		if t.UserID == userID && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
