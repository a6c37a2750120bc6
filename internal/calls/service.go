package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voiceai-platform/internal/anomaly"
	"voiceai-platform/internal/conversations"
	"voiceai-platform/pkg/logger"
	"voiceai-platform/pkg/utils"

	"github.com/google/uuid"
)

// CallEvent is a normalized provider lifecycle event.
type CallEvent struct {
	CallSID         string        `json:"call_sid"`
	Status          CallStatus    `json:"status"`
	UserID          string        `json:"user_id,omitempty"`
	PhoneNumber     string        `json:"phone_number,omitempty"`
	DurationSeconds *int          `json:"duration,omitempty"`
	RecordingURL    string        `json:"recording_url,omitempty"`
	Transcript      string        `json:"transcript,omitempty"`
	Metadata        utils.JSONMap `json:"metadata,omitempty"`
}

// IngestResult is the post-merge record plus the turn derived by this
// delivery, if any. Turn is nil both when derivation conditions were not met
// and when a prior delivery already derived it.
type IngestResult struct {
	Record CallRecord          `json:"callLog"`
	Turn   *conversations.Turn `json:"conversation,omitempty"`
}

var ErrInvalidEvent = errors.New("calls: invalid event")

// AnomalyLog records lifecycle violations. Best-effort: failures are logged
// and absorbed, never surfaced to the provider.
type AnomalyLog interface {
	LogTransition(ctx context.Context, typ anomaly.EventType, callSID, userID, from, to, message string) error
}

// Ingestor reconciles provider lifecycle events into call records and
// derives conversation turns from completed calls.
//
// The record reconcile and the turn insert are deliberately not one
// transaction: a crash between the two leaves a completed record without its
// turn, and the provider's at-least-once redelivery repairs it (derivation
// re-runs on every completed event and dedups on call_sid).
type Ingestor struct {
	records   Repository
	turns     conversations.Repository
	anomalies AnomalyLog

	// clock and newID are injectable for deterministic tests.
	clock func() time.Time
	newID func() string
}

func NewIngestor(records Repository, turns conversations.Repository, anomalies AnomalyLog) *Ingestor {
	return &Ingestor{
		records:   records,
		turns:     turns,
		anomalies: anomalies,
		clock:     time.Now,
		newID:     uuid.NewString,
	}
}

type transitionAnomaly struct {
	typ     anomaly.EventType
	from    CallStatus
	to      CallStatus
	message string
}

// Ingest performs an idempotent upsert of the call record keyed by call_sid
// and, when the event reports a completed call with a transcript and an
// owning user, derives exactly one user turn from the transcript.
//
// Validation failures return ErrInvalidEvent. Storage failures are returned
// as-is so the transport layer can answer 5xx and trigger a provider retry.
func (s *Ingestor) Ingest(ctx context.Context, ev CallEvent) (IngestResult, error) {
	ev.CallSID = strings.TrimSpace(ev.CallSID)
	if ev.CallSID == "" {
		return IngestResult{}, fmt.Errorf("%w: call_sid is required", ErrInvalidEvent)
	}
	if ev.Status == "" {
		return IngestResult{}, fmt.Errorf("%w: status is required", ErrInvalidEvent)
	}
	if !ev.Status.IsValid() {
		return IngestResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, ev.Status)
	}
	if ev.DurationSeconds != nil && *ev.DurationSeconds < 0 {
		return IngestResult{}, fmt.Errorf("%w: duration must be non-negative", ErrInvalidEvent)
	}

	var anomalies []transitionAnomaly
	merged, err := s.records.Reconcile(ctx, ev.CallSID, func(cur *CallRecord) (CallRecord, error) {
		// The callback may run twice when a fresh call_sid loses the
		// first-insert race; start from a clean slate each time.
		anomalies = anomalies[:0]
		now := s.clock().UTC()

		if cur == nil {
			return s.freshRecord(ev, now), nil
		}
		rec, anoms := mergeEvent(*cur, ev, now)
		anomalies = anoms
		return rec, nil
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("calls: reconcile %s: %w", ev.CallSID, err)
	}

	s.reportAnomalies(ctx, ev.CallSID, merged.UserID, anomalies)

	res := IngestResult{Record: merged}

	// Derivation runs on every completed delivery, not just the first, so a
	// crash after the record update is repaired by redelivery.
	if ev.Status == CallStatusCompleted && merged.Transcript != "" && merged.UserID != "" {
		turn, err := s.deriveTurn(ctx, merged)
		if err != nil {
			return IngestResult{}, err
		}
		res.Turn = turn
	}
	return res, nil
}

func (s *Ingestor) freshRecord(ev CallEvent, now time.Time) CallRecord {
	rec := CallRecord{
		CallSID:      ev.CallSID,
		UserID:       ev.UserID,
		PhoneNumber:  ev.PhoneNumber,
		Status:       ev.Status,
		RecordingURL: ev.RecordingURL,
		Transcript:   ev.Transcript,
		Metadata:     ev.Metadata.Clone(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rec.Metadata == nil {
		rec.Metadata = utils.JSONMap{}
	}
	if ev.DurationSeconds != nil {
		d := *ev.DurationSeconds
		rec.DurationSeconds = &d
	}
	return rec
}

// mergeEvent folds ev into cur under the lifecycle rules:
//   - terminal statuses are absorbing; any later status is rejected and the
//     terminal fields stay frozen, though fields the terminal event left
//     unset may still be filled (a late transcription callback).
//   - non-terminal statuses move forward only; a backward status is rejected
//     but newly supplied fields still merge.
//   - non-null incoming fields never get clobbered by nulls.
func mergeEvent(cur CallRecord, ev CallEvent, now time.Time) (CallRecord, []transitionAnomaly) {
	rec := cur
	rec.Metadata = cur.Metadata.Clone()
	rec.UpdatedAt = now

	var anoms []transitionAnomaly

	switch {
	case cur.Status.IsTerminal():
		typ := anomaly.EventTypeTerminalOverwrite
		msg := fmt.Sprintf("status %q rejected: record already terminal in %q", ev.Status, cur.Status)
		if ev.Status == cur.Status {
			typ = anomaly.EventTypeDuplicateTerminal
			msg = fmt.Sprintf("terminal status %q redelivered", ev.Status)
		}
		anoms = append(anoms, transitionAnomaly{typ: typ, from: cur.Status, to: ev.Status, message: msg})
		fillUnset(&rec, ev)

	case canTransition(cur.Status, ev.Status):
		rec.Status = ev.Status
		overlay(&rec, ev)

	default:
		anoms = append(anoms, transitionAnomaly{
			typ:     anomaly.EventTypeOutOfOrderStatus,
			from:    cur.Status,
			to:      ev.Status,
			message: fmt.Sprintf("out-of-order status %q after %q", ev.Status, cur.Status),
		})
		overlay(&rec, ev)
	}
	return rec, anoms
}

// overlay applies incoming non-null fields while the record is still
// non-terminal. Ownership fields are set-once.
func overlay(rec *CallRecord, ev CallEvent) {
	if rec.UserID == "" && ev.UserID != "" {
		rec.UserID = ev.UserID
	}
	if rec.PhoneNumber == "" && ev.PhoneNumber != "" {
		rec.PhoneNumber = ev.PhoneNumber
	}
	if ev.DurationSeconds != nil {
		d := *ev.DurationSeconds
		rec.DurationSeconds = &d
	}
	if ev.RecordingURL != "" {
		rec.RecordingURL = ev.RecordingURL
	}
	if ev.Transcript != "" {
		rec.Transcript = ev.Transcript
	}
	mergeMetadata(rec, ev)
}

// fillUnset applies incoming fields only where the record has none. Used once
// a record is terminal: set fields are frozen, unset ones may still arrive.
func fillUnset(rec *CallRecord, ev CallEvent) {
	if rec.UserID == "" && ev.UserID != "" {
		rec.UserID = ev.UserID
	}
	if rec.PhoneNumber == "" && ev.PhoneNumber != "" {
		rec.PhoneNumber = ev.PhoneNumber
	}
	if rec.DurationSeconds == nil && ev.DurationSeconds != nil {
		d := *ev.DurationSeconds
		rec.DurationSeconds = &d
	}
	if rec.RecordingURL == "" && ev.RecordingURL != "" {
		rec.RecordingURL = ev.RecordingURL
	}
	if rec.Transcript == "" && ev.Transcript != "" {
		rec.Transcript = ev.Transcript
	}
	mergeMetadata(rec, ev)
}

func mergeMetadata(rec *CallRecord, ev CallEvent) {
	if len(ev.Metadata) == 0 {
		return
	}
	if rec.Metadata == nil {
		rec.Metadata = utils.JSONMap{}
	}
	for k, v := range ev.Metadata {
		if _, exists := rec.Metadata[k]; !exists {
			rec.Metadata[k] = v
		}
	}
}

// deriveTurn inserts the user turn for a completed call unless one already
// carries this call_sid. The check-then-insert pair is not atomic; the
// partial unique index on (user_id, metadata->>'call_sid') backstops the
// race between concurrent redeliveries.
func (s *Ingestor) deriveTurn(ctx context.Context, rec CallRecord) (*conversations.Turn, error) {
	exists, err := s.turns.ExistsForCall(ctx, rec.UserID, rec.CallSID)
	if err != nil {
		return nil, fmt.Errorf("calls: turn dedup check %s: %w", rec.CallSID, err)
	}
	if exists {
		return nil, nil
	}

	turn := conversations.Turn{
		ID:      s.newID(),
		UserID:  rec.UserID,
		Role:    conversations.RoleUser,
		Message: rec.Transcript,
		Metadata: utils.JSONMap{
			conversations.MetaKeyCallSID:     rec.CallSID,
			conversations.MetaKeySource:      conversations.SourceVoiceCall,
			conversations.MetaKeyPhoneNumber: rec.PhoneNumber,
		},
		CreatedAt: s.clock().UTC(),
	}
	if err := s.turns.Insert(ctx, turn); err != nil {
		return nil, fmt.Errorf("calls: derive turn %s: %w", rec.CallSID, err)
	}
	return &turn, nil
}

func (s *Ingestor) reportAnomalies(ctx context.Context, callSID, userID string, anoms []transitionAnomaly) {
	log := logger.From(ctx)
	for _, a := range anoms {
		log.Warn("call lifecycle anomaly",
			"call_sid", callSID,
			"type", string(a.typ),
			"from", string(a.from),
			"to", string(a.to),
		)
		if s.anomalies == nil {
			continue
		}
		if err := s.anomalies.LogTransition(ctx, a.typ, callSID, userID, string(a.from), string(a.to), a.message); err != nil {
			log.Warn("anomaly append failed", "call_sid", callSID, "err", err)
		}
	}
}

// ListByUser returns the user's call records, newest first.
func (s *Ingestor) ListByUser(ctx context.Context, userID string, limit int) ([]CallRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.records.ListByUser(ctx, userID, limit)
}
