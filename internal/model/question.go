package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeCoding         QuestionType = "coding"
)

// TestCase is a declared input/expected-output pair for a coding question.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Question represents a single exam question. Type-specific fields are
// populated only for the matching QuestionType: Options for multiple choice,
// Language/StarterCode/TestCases for coding.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	OrderNum      int          `json:"order_num"`
	Type          QuestionType `json:"question_type"`
	Prompt        string       `json:"prompt"`
	Points        int          `json:"points"`
	Options       []string     `json:"options,omitempty"`
	CorrectOption string       `json:"correct_option,omitempty"`
	Language      string       `json:"language,omitempty"`
	StarterCode   string       `json:"starter_code,omitempty"`
	TestCases     []TestCase   `json:"test_cases,omitempty"`
}

// QuestionForStudent is a question stripped of the correct answer, sent to students.
type QuestionForStudent struct {
	ID          uuid.UUID    `json:"id"`
	OrderNum    int          `json:"order_num"`
	Type        QuestionType `json:"question_type"`
	Prompt      string       `json:"prompt"`
	Points      int          `json:"points"`
	Options     []string     `json:"options,omitempty"`
	Language    string       `json:"language,omitempty"`
	StarterCode string       `json:"starter_code,omitempty"`
	TestCases   []TestCase   `json:"test_cases,omitempty"`
}

// ForStudent strips grading-only fields from a question.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:          q.ID,
		OrderNum:    q.OrderNum,
		Type:        q.Type,
		Prompt:      q.Prompt,
		Points:      q.Points,
		Options:     q.Options,
		Language:    q.Language,
		StarterCode: q.StarterCode,
		TestCases:   q.TestCases,
	}
}
