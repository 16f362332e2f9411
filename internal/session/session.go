package session

import (
	"sync"
	"time"

	"github.com/acadex/examroom-backend/internal/clock"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Snapshot is the final state handed to the submission pipeline when an
// attempt ends. Both submit paths (manual and timeout) produce the same
// shape; only Trigger differs.
type Snapshot struct {
	ExamID         uuid.UUID                  `json:"exam_id"`
	StudentID      int                        `json:"student_id"`
	Answers        map[uuid.UUID]model.Answer `json:"answers"`
	ElapsedSeconds int                        `json:"elapsed_seconds"`
	Trigger        model.SubmitTrigger        `json:"trigger"`
	ViolationCount int                        `json:"violation_count"`
	SubmittedAt    time.Time                  `json:"submitted_at"`
}

// Session is the state machine for one exam attempt:
// NOT_STARTED -> IN_PROGRESS -> SUBMITTED. SUBMITTED is terminal. Mutations
// outside IN_PROGRESS are logged no-ops, never errors: races between timer
// expiry and user actions are expected and must degrade gracefully.
//
// All methods are safe for concurrent use; the autosaver and the expiry
// watcher run on their own goroutines.
type Session struct {
	mu sync.Mutex

	exam      *model.Exam
	studentID int
	status    model.SessionStatus

	store *AnswerStore
	timer *Timer
	nav   *Navigator

	clk        clock.Clock
	log        zerolog.Logger
	violations int
	expired    bool
}

// New creates a NOT_STARTED session for one (student, exam) attempt.
func New(exam *model.Exam, studentID int, clk clock.Clock, log zerolog.Logger) *Session {
	store := NewAnswerStore()
	return &Session{
		exam:      exam,
		studentID: studentID,
		status:    model.SessionStatusNotStarted,
		store:     store,
		nav:       NewNavigator(exam.Questions, store),
		clk:       clk,
		log: log.With().
			Str("exam_id", exam.ID.String()).
			Int("student_id", studentID).
			Logger(),
	}
}

// Start transitions to IN_PROGRESS. startedAt is the authoritative attempt
// start (from the session record, not the client); saved is the most recent
// autosave snapshot, or nil for a fresh attempt. Starting twice is a no-op.
func (s *Session) Start(startedAt time.Time, saved map[uuid.UUID]model.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.SessionStatusNotStarted {
		s.log.Debug().Str("status", string(s.status)).Msg("Start ignored: session already started")
		return
	}

	if saved != nil {
		s.store = Hydrate(saved)
		s.nav = NewNavigator(s.exam.Questions, s.store)
	}
	s.timer = NewTimer(startedAt, s.exam.DurationMinutes, s.clk)
	s.status = model.SessionStatusInProgress
}

// Status returns the current lifecycle state.
func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Remaining returns the time left, zero when not in progress.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress {
		return 0
	}
	return s.timer.Remaining()
}

// SetAnswer upserts an answer, preserving its flag. Returns false (no-op)
// unless the session is IN_PROGRESS.
func (s *Session) SetAnswer(questionID uuid.UUID, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress {
		s.log.Debug().Str("q_id", questionID.String()).Msg("SetAnswer ignored: session not in progress")
		return false
	}
	s.store.Set(questionID, value)
	return true
}

// ToggleFlag flips the flagged bit, preserving the value. No-op unless
// IN_PROGRESS.
func (s *Session) ToggleFlag(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress {
		s.log.Debug().Str("q_id", questionID.String()).Msg("ToggleFlag ignored: session not in progress")
		return false
	}
	s.store.ToggleFlag(questionID)
	return true
}

// GoTo navigates to question index i under the navigation policy.
func (s *Session) GoTo(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress {
		return false
	}
	if !s.nav.GoTo(i) {
		s.log.Debug().Int("target", i).Int("current", s.nav.Current()).Msg("Navigation rejected")
		return false
	}
	return true
}

// Next advances to the next question under the forward-gating policy.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress {
		return false
	}
	return s.nav.Next()
}

// Prev moves one question backward.
func (s *Session) Prev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress {
		return false
	}
	return s.nav.Prev()
}

// CurrentIndex returns the question index in view.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Current()
}

// AnsweredCount returns the count of non-empty answers.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AnsweredCount()
}

// FlaggedCount returns the count of flagged answers.
func (s *Session) FlaggedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.FlaggedCount()
}

// RecordViolation increments the proctoring violation counter and returns
// the new total. Counted even after submission so late reports are not lost.
func (s *Session) RecordViolation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations++
	return s.violations
}

// Submit ends the attempt on explicit student confirmation. Time-expiry
// always wins: if the deadline passed while the confirmation dialog was
// open, the snapshot is produced with the timeout trigger instead. Returns
// (nil, false) if the session is not IN_PROGRESS.
func (s *Session) Submit() (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress {
		s.log.Debug().Str("status", string(s.status)).Msg("Submit ignored: session not in progress")
		return nil, false
	}
	trigger := model.SubmitTriggerManual
	if s.timer.Expired() {
		trigger = model.SubmitTriggerTimeout
	}
	return s.finish(trigger), true
}

// ExpireIfDue performs the timeout transition if the deadline has passed.
// It fires at most once: calling it again, or after a manual submit, has no
// observable effect. Returns (nil, false) when nothing was due.
func (s *Session) ExpireIfDue() (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress || s.expired {
		return nil, false
	}
	if !s.timer.Expired() {
		return nil, false
	}
	s.expired = true
	s.log.Info().Msg("Exam time expired, forcing submission")
	return s.finish(model.SubmitTriggerTimeout), true
}

// finish is the single terminal transition both submit paths converge on.
// Caller holds s.mu.
func (s *Session) finish(trigger model.SubmitTrigger) *Snapshot {
	s.status = model.SessionStatusSubmitted
	return &Snapshot{
		ExamID:         s.exam.ID,
		StudentID:      s.studentID,
		Answers:        s.store.Snapshot(),
		ElapsedSeconds: s.timer.ElapsedSeconds(),
		Trigger:        trigger,
		ViolationCount: s.violations,
		SubmittedAt:    s.clk.Now(),
	}
}

// flushState returns a snapshot of the answers for autosaving, along with
// the dirty generation it covers. ok is false when there is nothing to save.
// Caller persists outside the lock and then calls markSaved.
func (s *Session) flushState() (answers map[uuid.UUID]model.Answer, gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.SessionStatusInProgress || !s.store.Dirty() {
		return nil, 0, false
	}
	return s.store.Snapshot(), s.store.dirtyGen, true
}

// markSaved records a successful autosave of the given generation.
func (s *Session) markSaved(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.markSaved(gen)
}
