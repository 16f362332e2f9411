// Package grading derives grading status from response state. Status is
// never stored: database nullability of marks_obtained plus is_graded is the
// only source of truth, and every read recomputes from it. A redundant
// stored enum would drift the moment a single grade is saved.
package grading

import (
	"github.com/acadex/examroom-backend/internal/model"
)

// IsGraded reports whether one response counts as graded. Multiple choice
// responses are always graded: their marks are system-computed at
// submission time and the grading flow never touches them.
func IsGraded(r model.Response) bool {
	if r.QuestionType == model.QuestionTypeMultipleChoice {
		return true
	}
	return r.IsGraded && r.MarksObtained != nil
}

// Classify derives a submission's status from its responses: COMPLETED iff
// every response is graded, PENDING iff none is (including the empty list),
// PARTIAL otherwise.
func Classify(responses []model.Response) model.GradingStatus {
	if len(responses) == 0 {
		return model.GradingStatusPending
	}
	graded := 0
	for _, r := range responses {
		if IsGraded(r) {
			graded++
		}
	}
	switch graded {
	case len(responses):
		return model.GradingStatusCompleted
	case 0:
		return model.GradingStatusPending
	default:
		return model.GradingStatusPartial
	}
}

// Tally holds aggregate counts over a batch of submissions.
type Tally struct {
	Pending   int `json:"pending"`
	Partial   int `json:"partial"`
	Completed int `json:"completed"`
}

// TallySubmissions classifies each submission from current response state
// and counts the outcomes.
func TallySubmissions(subs []model.Submission) Tally {
	var t Tally
	for _, s := range subs {
		switch Classify(s.Responses) {
		case model.GradingStatusCompleted:
			t.Completed++
		case model.GradingStatusPartial:
			t.Partial++
		default:
			t.Pending++
		}
	}
	return t
}

// TotalMarks sums obtained marks over graded responses.
func TotalMarks(responses []model.Response) int {
	total := 0
	for _, r := range responses {
		if r.MarksObtained != nil {
			total += *r.MarksObtained
		}
	}
	return total
}

// MaxMarks sums the maximum obtainable marks.
func MaxMarks(responses []model.Response) int {
	total := 0
	for _, r := range responses {
		total += r.MaxMarks
	}
	return total
}
