package model

import (
	"time"

	"github.com/google/uuid"
)

// GradingStatus is the derived status of a submission. It is never stored:
// it must be recomputed from current response state on every read.
type GradingStatus string

const (
	GradingStatusPending   GradingStatus = "PENDING"
	GradingStatusPartial   GradingStatus = "PARTIAL"
	GradingStatusCompleted GradingStatus = "COMPLETED"
)

// Response is one answered question inside a submitted attempt, as seen by
// the grader. MarksObtained is nil until a grade is saved. For multiple
// choice, marks are system-computed at submission time and IsGraded is
// always true; the grading flow never mutates them.
type Response struct {
	ID              uuid.UUID    `json:"id"`
	SessionID       uuid.UUID    `json:"session_id"`
	QuestionID      uuid.UUID    `json:"question_id"`
	QuestionType    QuestionType `json:"question_type"`
	Prompt          string       `json:"prompt"`
	MaxMarks        int          `json:"max_marks"`
	StudentAnswer   string       `json:"student_answer"`
	Flagged         bool         `json:"flagged"`
	MarksObtained   *int         `json:"marks_obtained"`
	IsGraded        bool         `json:"is_graded"`
	TeacherFeedback *string      `json:"teacher_feedback"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Submission is a finished attempt with its ordered responses.
type Submission struct {
	SessionID      uuid.UUID     `json:"session_id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	StudentID      int           `json:"student_id"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	ElapsedSeconds int           `json:"elapsed_seconds"`
	SubmitTrigger  SubmitTrigger `json:"submit_trigger"`
	ViolationCount int           `json:"violation_count"`
	Responses      []Response    `json:"responses"`
}

// GradeUpdate is one entry of a batch grade save. The batch is applied
// all-or-nothing.
type GradeUpdate struct {
	ResponseID      uuid.UUID `json:"response_id"`
	MarksObtained   int       `json:"marks_obtained"`
	TeacherFeedback *string   `json:"teacher_feedback"`
}
