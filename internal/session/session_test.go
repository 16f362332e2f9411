package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acadex/examroom-backend/internal/clock"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func testExam(durationMinutes, questions int) *model.Exam {
	return &model.Exam{
		ID:              uuid.New(),
		Title:           "Unit Test Exam",
		DurationMinutes: durationMinutes,
		Status:          model.ExamStatusPublished,
		Questions:       makeQuestions(questions),
	}
}

func TestSessionLifecycle(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	exam := testExam(45, 3)
	sess := New(exam, 7, clk, zerolog.Nop())

	// Mutations before start are no-ops.
	if sess.SetAnswer(exam.Questions[0].ID, "early") {
		t.Fatal("SetAnswer must be a no-op before start")
	}
	if snap, ok := sess.Submit(); ok || snap != nil {
		t.Fatal("Submit must be a no-op before start")
	}

	sess.Start(start, nil)
	if sess.Status() != model.SessionStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", sess.Status())
	}

	if !sess.SetAnswer(exam.Questions[0].ID, "answer one") {
		t.Fatal("SetAnswer must succeed while in progress")
	}
	clk.Advance(5 * time.Minute)

	snap, ok := sess.Submit()
	if !ok {
		t.Fatal("Submit must succeed while in progress")
	}
	if snap.Trigger != model.SubmitTriggerManual {
		t.Fatalf("trigger = %s, want manual", snap.Trigger)
	}
	if snap.ElapsedSeconds != 5*60 {
		t.Fatalf("elapsed = %d, want %d", snap.ElapsedSeconds, 5*60)
	}
	if len(snap.Answers) != 1 {
		t.Fatalf("snapshot answers = %d, want 1", len(snap.Answers))
	}

	// SUBMITTED is terminal: editing controls are inert.
	if sess.SetAnswer(exam.Questions[1].ID, "late") {
		t.Fatal("SetAnswer must be a no-op after submission")
	}
	if sess.ToggleFlag(exam.Questions[1].ID) || sess.GoTo(1) || sess.Next() {
		t.Fatal("all mutations must be no-ops after submission")
	}
	if _, ok := sess.Submit(); ok {
		t.Fatal("double submit must be a no-op")
	}
}

func TestExpiryIdempotentAndWinsOverManualSubmit(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	exam := testExam(30, 2)
	sess := New(exam, 7, clk, zerolog.Nop())
	sess.Start(start, nil)
	sess.SetAnswer(exam.Questions[0].ID, "kept")

	// Nothing due yet.
	if _, fired := sess.ExpireIfDue(); fired {
		t.Fatal("ExpireIfDue fired before the deadline")
	}

	clk.Advance(31 * time.Minute)

	snap, fired := sess.ExpireIfDue()
	if !fired {
		t.Fatal("ExpireIfDue must fire after the deadline")
	}
	if snap.Trigger != model.SubmitTriggerTimeout {
		t.Fatalf("trigger = %s, want timeout", snap.Trigger)
	}
	if snap.ElapsedSeconds != 30*60 {
		t.Fatalf("elapsed = %d, want full duration", snap.ElapsedSeconds)
	}

	// Second call: same observable effect as one call.
	if _, fired := sess.ExpireIfDue(); fired {
		t.Fatal("ExpireIfDue must not double-fire")
	}
	if sess.Status() != model.SessionStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", sess.Status())
	}

	// Expiry during an open confirmation dialog: a fresh session where the
	// student confirms after the deadline still records the timeout trigger.
	clk2 := clock.NewFake(start)
	sess2 := New(testExam(30, 2), 8, clk2, zerolog.Nop())
	sess2.Start(start, nil)
	clk2.Advance(31 * time.Minute)
	snap2, ok := sess2.Submit()
	if !ok || snap2.Trigger != model.SubmitTriggerTimeout {
		t.Fatalf("late manual submit must carry the timeout trigger, got %+v", snap2)
	}
}

func TestSessionReloadRecovery(t *testing.T) {
	// Scenario: 45 minute exam, Q1 answered and Q3 flagged, tab closed and
	// reopened after 10 simulated minutes.
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	exam := testExam(45, 3)

	first := New(exam, 7, clk, zerolog.Nop())
	first.Start(start, nil)
	first.SetAnswer(exam.Questions[0].ID, "my answer")
	first.ToggleFlag(exam.Questions[2].ID)
	saved, _, ok := first.flushState()
	if !ok {
		t.Fatal("expected dirty state to flush")
	}

	clk.Advance(10 * time.Minute)

	reopened := New(exam, 7, clk, zerolog.Nop())
	reopened.Start(start, saved)

	if got := int(reopened.Remaining() / time.Second); got != 35*60 {
		t.Fatalf("remaining after reload = %ds, want %ds", got, 35*60)
	}
	if got := reopened.AnsweredCount(); got != 1 {
		t.Fatalf("AnsweredCount after reload = %d, want 1", got)
	}
	if got := reopened.FlaggedCount(); got != 1 {
		t.Fatalf("FlaggedCount after reload = %d, want 1", got)
	}
	a, _ := reopened.store.Get(exam.Questions[0].ID)
	if a.Value != "my answer" {
		t.Fatalf("Q1 answer lost on reload: %+v", a)
	}
}

type fakeSink struct {
	writes int
	fail   bool
	last   map[uuid.UUID]model.Answer
}

func (f *fakeSink) WriteAnswers(_ context.Context, _ uuid.UUID, _ int, answers map[uuid.UUID]model.Answer) error {
	f.writes++
	if f.fail {
		return errors.New("storage unavailable")
	}
	f.last = answers
	return nil
}

func TestAutosaverFlushBestEffort(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	exam := testExam(45, 2)
	sess := New(exam, 7, clk, zerolog.Nop())
	sess.Start(start, nil)

	sink := &fakeSink{fail: true}
	saver := NewAutosaver(sess, sink, time.Second, zerolog.Nop())

	sess.SetAnswer(exam.Questions[0].ID, "v1")

	// Failed write: swallowed, store stays dirty for the next tick.
	saver.Flush(context.Background())
	if sink.writes != 1 {
		t.Fatalf("writes = %d, want 1", sink.writes)
	}
	if !sess.store.Dirty() {
		t.Fatal("store must stay dirty after a failed write")
	}

	// Next tick succeeds and clears dirtiness.
	sink.fail = false
	saver.Flush(context.Background())
	if sess.store.Dirty() {
		t.Fatal("store must be clean after a successful write")
	}
	if got := sink.last[exam.Questions[0].ID].Value; got != "v1" {
		t.Fatalf("persisted value = %q, want v1", got)
	}

	// Clean store: nothing to do.
	saver.Flush(context.Background())
	if sink.writes != 2 {
		t.Fatalf("writes = %d, want 2 (no flush when clean)", sink.writes)
	}
}

func TestAutosaverStopsAfterSubmission(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	exam := testExam(45, 1)
	sess := New(exam, 7, clk, zerolog.Nop())
	sess.Start(start, nil)
	sess.SetAnswer(exam.Questions[0].ID, "final")
	sess.Submit()

	sink := &fakeSink{}
	saver := NewAutosaver(sess, sink, time.Second, zerolog.Nop())

	// Submitted session: flushState refuses, no write can land.
	saver.Flush(context.Background())
	if sink.writes != 0 {
		t.Fatalf("writes = %d, want 0 after submission", sink.writes)
	}
}
