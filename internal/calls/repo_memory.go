package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
// The single mutex gives the same per-call_sid serialization the Postgres
// implementation gets from row locks.
type MemoryRepo struct {
	mu      sync.Mutex
	Records map[string]CallRecord

	// FailNext forces the next operation to return this error, for testing
	// storage-failure propagation.
	FailNext error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Records: map[string]CallRecord{}}
}

func (m *MemoryRepo) takeErr() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *MemoryRepo) FindBySID(_ context.Context, callSID string) (CallRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return CallRecord{}, false, err
	}
	rec, ok := m.Records[callSID]
	return rec, ok, nil
}

func (m *MemoryRepo) Reconcile(_ context.Context, callSID string, apply func(cur *CallRecord) (CallRecord, error)) (CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return CallRecord{}, err
	}

	var curPtr *CallRecord
	if cur, ok := m.Records[callSID]; ok {
		cp := cur
		cp.Metadata = cur.Metadata.Clone()
		curPtr = &cp
	}
	next, err := apply(curPtr)
	if err != nil {
		return CallRecord{}, err
	}
	m.Records[callSID] = next
	return next, nil
}

func (m *MemoryRepo) ListByUser(_ context.Context, userID string, limit int) ([]CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	var out []CallRecord
	for _, rec := range m.Records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) CountByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range m.Records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}
