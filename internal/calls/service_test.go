package calls

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"voiceai-platform/internal/anomaly"
	"voiceai-platform/internal/conversations"
)

func newTestIngestor() (*Ingestor, *MemoryRepo, *conversations.MemoryRepo, *anomaly.MemoryRepo) {
	records := NewMemoryRepo()
	turns := conversations.NewMemoryRepo()
	anomalies := anomaly.NewMemoryRepo()
	svc := NewIngestor(records, turns, anomaly.NewService(anomalies))

	base := time.Unix(1700000000, 0).UTC()
	tick := 0
	svc.clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("turn-%d", n)
	}
	return svc, records, turns, anomalies
}

func intPtr(n int) *int { return &n }

func TestIngest_RejectsMissingCallSID(t *testing.T) {
	svc, _, _, _ := newTestIngestor()
	_, err := svc.Ingest(context.Background(), CallEvent{Status: CallStatusInitiated})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	_, err = svc.Ingest(context.Background(), CallEvent{CallSID: "  ", Status: CallStatusInitiated})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for blank call_sid, got %v", err)
	}
}

func TestIngest_RejectsMissingOrUnknownStatus(t *testing.T) {
	svc, _, _, _ := newTestIngestor()
	_, err := svc.Ingest(context.Background(), CallEvent{CallSID: "CA1"})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	_, err = svc.Ingest(context.Background(), CallEvent{CallSID: "CA1", Status: "warp-speed"})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for unknown status, got %v", err)
	}
}

func TestIngest_FreshCallSIDCreatesRecord(t *testing.T) {
	svc, records, _, _ := newTestIngestor()

	res, err := svc.Ingest(context.Background(), CallEvent{
		CallSID: "CA1", Status: CallStatusInitiated, UserID: "U1", PhoneNumber: "+15550001",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Record.Status != CallStatusInitiated {
		t.Fatalf("expected initiated, got %q", res.Record.Status)
	}
	if res.Turn != nil {
		t.Fatalf("no turn expected for non-terminal event")
	}
	if len(records.Records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records.Records))
	}
}

func TestIngest_CompletedWithTranscriptDerivesOneTurn(t *testing.T) {
	svc, _, turns, _ := newTestIngestor()
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusInitiated, UserID: "U1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	completed := CallEvent{
		CallSID: "CA1", Status: CallStatusCompleted, UserID: "U1",
		Transcript: "hello there", DurationSeconds: intPtr(42),
	}
	res, err := svc.Ingest(ctx, completed)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Record.Status != CallStatusCompleted {
		t.Fatalf("expected completed, got %q", res.Record.Status)
	}
	if res.Record.DurationSeconds == nil || *res.Record.DurationSeconds != 42 {
		t.Fatalf("expected duration 42, got %v", res.Record.DurationSeconds)
	}
	if res.Record.Transcript != "hello there" {
		t.Fatalf("expected transcript, got %q", res.Record.Transcript)
	}
	if res.Turn == nil {
		t.Fatalf("expected derived turn")
	}
	if res.Turn.Role != conversations.RoleUser || res.Turn.Message != "hello there" {
		t.Fatalf("unexpected turn: %+v", res.Turn)
	}
	if sid, _ := res.Turn.Metadata[conversations.MetaKeyCallSID].(string); sid != "CA1" {
		t.Fatalf("expected call_sid tag, got %v", res.Turn.Metadata)
	}

	// Redelivery of the identical terminal event must not create a second turn.
	res2, err := svc.Ingest(ctx, completed)
	if err != nil {
		t.Fatalf("unexpected err on redelivery: %v", err)
	}
	if res2.Turn != nil {
		t.Fatalf("redelivery must not derive a second turn")
	}
	if got, _ := turns.CountByUser(ctx, "U1"); got != 1 {
		t.Fatalf("expected exactly one turn, got %d", got)
	}
}

func TestIngest_NoTurnWithoutTranscriptOrUser(t *testing.T) {
	svc, _, turns, _ := newTestIngestor()
	ctx := context.Background()

	// Completed without transcript.
	res, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusCompleted, UserID: "U1"})
	if err != nil || res.Turn != nil {
		t.Fatalf("expected no turn, got turn=%v err=%v", res.Turn, err)
	}

	// Completed with transcript but no owner.
	res, err = svc.Ingest(ctx, CallEvent{CallSID: "CA2", Status: CallStatusCompleted, Transcript: "hi"})
	if err != nil || res.Turn != nil {
		t.Fatalf("expected no turn, got turn=%v err=%v", res.Turn, err)
	}

	if len(turns.Turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns.Turns))
	}
}

func TestIngest_FirstTerminalWins(t *testing.T) {
	svc, _, _, anomalies := newTestIngestor()
	ctx := context.Background()

	first := CallEvent{
		CallSID: "CA1", Status: CallStatusCompleted, UserID: "U1",
		DurationSeconds: intPtr(42), RecordingURL: "https://rec/1", Transcript: "hello there",
	}
	if _, err := svc.Ingest(ctx, first); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	second := CallEvent{
		CallSID: "CA1", Status: CallStatusFailed, UserID: "U1",
		DurationSeconds: intPtr(99), RecordingURL: "https://rec/2", Transcript: "goodbye",
	}
	res, err := svc.Ingest(ctx, second)
	if err != nil {
		t.Fatalf("terminal conflict must be absorbed, got err: %v", err)
	}
	rec := res.Record
	if rec.Status != CallStatusCompleted {
		t.Fatalf("expected first terminal status to stick, got %q", rec.Status)
	}
	if *rec.DurationSeconds != 42 || rec.RecordingURL != "https://rec/1" || rec.Transcript != "hello there" {
		t.Fatalf("terminal fields were overwritten: %+v", rec)
	}

	evs := anomalies.Events()
	if len(evs) != 1 || evs[0].Type != anomaly.EventTypeTerminalOverwrite {
		t.Fatalf("expected one terminal_overwrite anomaly, got %+v", evs)
	}
}

func TestIngest_DuplicateTerminalLogsAnomaly(t *testing.T) {
	svc, _, _, anomalies := newTestIngestor()
	ctx := context.Background()

	ev := CallEvent{CallSID: "CA1", Status: CallStatusNoAnswer, UserID: "U1"}
	if _, err := svc.Ingest(ctx, ev); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Ingest(ctx, ev); err != nil {
		t.Fatalf("redelivery must succeed, got %v", err)
	}

	evs := anomalies.Events()
	if len(evs) != 1 || evs[0].Type != anomaly.EventTypeDuplicateTerminal {
		t.Fatalf("expected one duplicate_terminal anomaly, got %+v", evs)
	}
}

func TestIngest_TerminalToNonTerminalRejected(t *testing.T) {
	svc, _, _, anomalies := newTestIngestor()
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusCanceled, UserID: "U1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	res, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusRinging})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Record.Status != CallStatusCanceled {
		t.Fatalf("terminal status must not regress, got %q", res.Record.Status)
	}
	if len(anomalies.Events()) != 1 {
		t.Fatalf("expected one anomaly, got %d", len(anomalies.Events()))
	}
}

func TestIngest_OutOfOrderNonTerminalKeepsStatusMergesFields(t *testing.T) {
	svc, _, _, anomalies := newTestIngestor()
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusInProgress, UserID: "U1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	res, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusRinging, PhoneNumber: "+15550001"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Record.Status != CallStatusInProgress {
		t.Fatalf("status must not move backward, got %q", res.Record.Status)
	}
	if res.Record.PhoneNumber != "+15550001" {
		t.Fatalf("late fields should still merge, got %q", res.Record.PhoneNumber)
	}
	evs := anomalies.Events()
	if len(evs) != 1 || evs[0].Type != anomaly.EventTypeOutOfOrderStatus {
		t.Fatalf("expected one out_of_order_status anomaly, got %+v", evs)
	}
}

func TestIngest_LateTranscriptAfterTerminalFillsAndDerives(t *testing.T) {
	// Some providers deliver the transcription in a second completed callback.
	// A set field is frozen; an unset one may still be filled, and the turn is
	// derived then.
	svc, _, turns, _ := newTestIngestor()
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusCompleted, UserID: "U1", DurationSeconds: intPtr(30)}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	res, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusCompleted, Transcript: "late words"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Record.Transcript != "late words" {
		t.Fatalf("unset transcript should fill, got %q", res.Record.Transcript)
	}
	if res.Turn == nil || res.Turn.Message != "late words" {
		t.Fatalf("expected turn derived from late transcript, got %+v", res.Turn)
	}
	if got, _ := turns.CountByUser(ctx, "U1"); got != 1 {
		t.Fatalf("expected one turn, got %d", got)
	}
}

func TestIngest_StorageErrorsPropagate(t *testing.T) {
	svc, records, turns, _ := newTestIngestor()
	ctx := context.Background()

	boom := errors.New("connection reset")
	records.FailNext = boom
	if _, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusInitiated}); !errors.Is(err, boom) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}

	// Failure inserting the derived turn must also surface so the provider
	// retries the whole delivery.
	turns.FailNext = boom
	_, err := svc.Ingest(ctx, CallEvent{CallSID: "CA2", Status: CallStatusCompleted, UserID: "U1", Transcript: "hi"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected turn insert error to propagate, got %v", err)
	}
}

func TestIngest_ScenarioInitiatedThenCompleted(t *testing.T) {
	svc, _, turns, _ := newTestIngestor()
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, CallEvent{CallSID: "CA1", Status: CallStatusInitiated, UserID: "U1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	ev := CallEvent{CallSID: "CA1", Status: CallStatusCompleted, Transcript: "hello there", UserID: "U1", DurationSeconds: intPtr(42)}
	res, err := svc.Ingest(ctx, ev)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Record.Status != CallStatusCompleted || *res.Record.DurationSeconds != 42 || res.Record.Transcript != "hello there" {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
	if res.Turn == nil {
		t.Fatalf("expected derived turn")
	}

	if _, err := svc.Ingest(ctx, ev); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got, _ := turns.CountByUser(ctx, "U1"); got != 1 {
		t.Fatalf("expected exactly one turn after redelivery, got %d", got)
	}
}
