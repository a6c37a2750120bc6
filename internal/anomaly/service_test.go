package anomaly

import (
	"context"
	"testing"
	"time"
)

func TestService_AppendRequiresCallSIDAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeDuplicateTerminal}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{CallSID: "CA1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_LogTransitionFillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0) }

	err := svc.LogTransition(context.Background(), EventTypeTerminalOverwrite, "CA1", "U1", "completed", "failed", "terminal status overwrite rejected")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("expected clock time, got %v", e.CreatedAt)
	}
	if e.FromStatus != "completed" || e.ToStatus != "failed" {
		t.Fatalf("unexpected transition capture: %+v", e)
	}
}
