package telephony

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"voiceai-platform/internal/calls"
	"voiceai-platform/pkg/utils"
)

// TwilioStatusForm captures the subset of status-callback fields we care
// about. Twilio sends application/x-www-form-urlencoded by default; some
// middleboxes re-deliver the same payload as JSON, so both are accepted.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
//
// Keep it minimal and provider-adapter-only.
// Lifecycle decisions (merge, dedup) are not made here.
type TwilioStatusForm struct {
	CallSid           string `json:"CallSid"`
	CallStatus        string `json:"CallStatus"`
	From              string `json:"From"`
	To                string `json:"To"`
	CallDuration      string `json:"CallDuration"`
	RecordingUrl      string `json:"RecordingUrl"`
	TranscriptionText string `json:"TranscriptionText"`

	// UserID is passed through as a custom parameter on the status callback
	// URL; it identifies the owning user for turn derivation.
	UserID string `json:"userId"`
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var f TwilioStatusForm
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			return TwilioStatusForm{}, err
		}
		f.From = normalizePhone(f.From)
		f.To = normalizePhone(f.To)
		return f, nil
	}

	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	return TwilioStatusForm{
		CallSid:           r.PostFormValue("CallSid"),
		CallStatus:        r.PostFormValue("CallStatus"),
		From:              normalizePhone(r.PostFormValue("From")),
		To:                normalizePhone(r.PostFormValue("To")),
		CallDuration:      r.PostFormValue("CallDuration"),
		RecordingUrl:      r.PostFormValue("RecordingUrl"),
		TranscriptionText: r.PostFormValue("TranscriptionText"),
		UserID:            r.PostFormValue("userId"),
	}, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}

// ToCallEvent normalizes the provider form into the internal event shape.
// Twilio's "queued" maps onto "initiated"; the rest of the vocabulary matches.
func (f TwilioStatusForm) ToCallEvent() (calls.CallEvent, error) {
	status := strings.TrimSpace(f.CallStatus)
	if status == "queued" {
		status = string(calls.CallStatusInitiated)
	}

	ev := calls.CallEvent{
		CallSID:      strings.TrimSpace(f.CallSid),
		Status:       calls.CallStatus(status),
		UserID:       strings.TrimSpace(f.UserID),
		PhoneNumber:  f.From,
		RecordingURL: strings.TrimSpace(f.RecordingUrl),
		Transcript:   f.TranscriptionText,
		Metadata: utils.JSONMap{
			"to_number":   f.To,
			"call_status": status,
		},
	}

	if d := strings.TrimSpace(f.CallDuration); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return calls.CallEvent{}, fmt.Errorf("%w: duration %q is not an integer", calls.ErrInvalidEvent, d)
		}
		ev.DurationSeconds = &n
	}
	return ev, nil
}
