package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam attempt states.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
)

// SubmitTrigger records which path ended an attempt, for audit purposes.
type SubmitTrigger string

const (
	SubmitTriggerManual  SubmitTrigger = "manual"
	SubmitTriggerTimeout SubmitTrigger = "timeout"
)

// Answer is a student's current answer for one question. An empty trimmed
// value is equivalent to "unanswered" for navigation and counting purposes.
type Answer struct {
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
	Flagged    bool      `json:"flagged"`
}

// Empty reports whether the answer counts as unanswered.
func (a Answer) Empty() bool {
	return strings.TrimSpace(a.Value) == ""
}

// ExamSession represents a student's exam attempt. Exactly one session per
// (student, exam) attempt is active at a time.
type ExamSession struct {
	ID             uuid.UUID      `json:"id"`
	ExamID         uuid.UUID      `json:"exam_id"`
	StudentID      int            `json:"student_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	Status         SessionStatus  `json:"status"`
	ElapsedSeconds *int           `json:"elapsed_seconds,omitempty"`
	SubmitTrigger  *SubmitTrigger `json:"submit_trigger,omitempty"`
	ViolationCount int            `json:"violation_count"`
}

// ViolationEvent is a proctoring violation report queued for persistence.
type ViolationEvent struct {
	ExamID     uuid.UUID `json:"exam_id"`
	StudentID  int       `json:"student_id"`
	Count      int       `json:"count"`
	ReportedAt time.Time `json:"reported_at"`
}

// AutosaveBatch is one autosave flush queued for the persistence worker.
type AutosaveBatch struct {
	ExamID    uuid.UUID `json:"exam_id"`
	StudentID int       `json:"student_id"`
	Answers   []Answer  `json:"answers"`
}

// ExamSessionState is what the client receives on reload recovery: the
// autosaved answers plus remaining time recomputed from the wall clock.
type ExamSessionState struct {
	ExamID           uuid.UUID         `json:"exam_id"`
	StudentID        int               `json:"student_id"`
	Status           SessionStatus     `json:"status"`
	AutosavedAnswers map[string]Answer `json:"autosaved_answers"`
	RemainingSeconds float64           `json:"remaining_seconds"`
}
