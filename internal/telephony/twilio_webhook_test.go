package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voiceai-platform/internal/calls"
)

func TestParseTwilioStatusCallback_Form(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&CallStatus=completed&From=%2B15551234567&To=%2B15557654321&CallDuration=42&TranscriptionText=hello+there&userId=U1")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" || form.CallStatus != "completed" {
		t.Fatalf("unexpected form: %+v", form)
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}

	ev, err := form.ToCallEvent()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ev.CallSID != "CA123" || ev.Status != calls.CallStatusCompleted {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.DurationSeconds == nil || *ev.DurationSeconds != 42 {
		t.Fatalf("expected duration 42, got %v", ev.DurationSeconds)
	}
	if ev.Transcript != "hello there" || ev.UserID != "U1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Metadata["to_number"] != "+15557654321" {
		t.Fatalf("expected to_number metadata, got %+v", ev.Metadata)
	}
}

func TestParseTwilioStatusCallback_JSON(t *testing.T) {
	body := strings.NewReader(`{"CallSid":"CA9","CallStatus":"ringing","From":"+1555","userId":"U2"}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call", body)
	r.Header.Set("Content-Type", "application/json")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA9" || form.CallStatus != "ringing" || form.UserID != "U2" {
		t.Fatalf("unexpected form: %+v", form)
	}
}

func TestToCallEvent_QueuedMapsToInitiated(t *testing.T) {
	ev, err := TwilioStatusForm{CallSid: "CA1", CallStatus: "queued"}.ToCallEvent()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ev.Status != calls.CallStatusInitiated {
		t.Fatalf("expected initiated, got %q", ev.Status)
	}
}

func TestToCallEvent_BadDuration(t *testing.T) {
	_, err := TwilioStatusForm{CallSid: "CA1", CallStatus: "completed", CallDuration: "NaN"}.ToCallEvent()
	if err == nil {
		t.Fatalf("expected error for non-integer duration")
	}
}
