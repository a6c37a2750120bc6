package calls

import "testing"

func TestCallStatus_TerminalSet(t *testing.T) {
	terminal := []CallStatus{CallStatusCompleted, CallStatusFailed, CallStatusBusy, CallStatusNoAnswer, CallStatusCanceled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %q terminal", s)
		}
	}
	nonTerminal := []CallStatus{CallStatusInitiated, CallStatusRinging, CallStatusInProgress}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Fatalf("expected %q non-terminal", s)
		}
	}
	if CallStatus("warp-speed").IsValid() {
		t.Fatalf("unknown status must be invalid")
	}
	if CallStatus("warp-speed").IsTerminal() {
		t.Fatalf("unknown status must not be terminal")
	}
}

func TestCanTransition_ForwardOnly(t *testing.T) {
	cases := []struct {
		from, to CallStatus
		want     bool
	}{
		{CallStatusInitiated, CallStatusRinging, true},
		{CallStatusInitiated, CallStatusCompleted, true},
		{CallStatusRinging, CallStatusInProgress, true},
		{CallStatusInProgress, CallStatusFailed, true},
		{CallStatusInProgress, CallStatusRinging, false},
		{CallStatusCompleted, CallStatusFailed, false},
		{CallStatusCompleted, CallStatusRinging, false},
		{CallStatusRinging, CallStatusRinging, true},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Fatalf("canTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
