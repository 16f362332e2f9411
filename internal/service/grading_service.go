package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/acadex/examroom-backend/internal/grading"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

var (
	// ErrSubmissionNotFound is returned when no submitted attempt matches.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrUnknownResponse is returned when a draft targets a response that is
	// not part of the open submission.
	ErrUnknownResponse = errors.New("response not in submission")
	// ErrNotGradable is returned when a mark targets a multiple choice
	// response, whose marks are system-computed.
	ErrNotGradable = errors.New("response is not manually gradable")
	// ErrMarksOutOfRange is returned when a mark falls outside [0, max].
	ErrMarksOutOfRange = errors.New("marks out of range")
)

// SubmissionStore is the persistence surface the grading flow needs.
type SubmissionStore interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error)
	UpdateGrades(ctx context.Context, sessionID uuid.UUID, updates []model.GradeUpdate) error
}

// SubmissionSummary is one row of the grading overview list.
type SubmissionSummary struct {
	SessionID      uuid.UUID           `json:"session_id"`
	StudentID      int                 `json:"student_id"`
	Status         model.GradingStatus `json:"status"`
	TotalMarks     int                 `json:"total_marks"`
	MaxMarks       int                 `json:"max_marks"`
	SubmitTrigger  model.SubmitTrigger `json:"submit_trigger"`
	ViolationCount int                 `json:"violation_count"`
	SubmittedAt    string              `json:"submitted_at"`
}

// GradingService opens grading sessions over submitted attempts and serves
// the grading overview.
type GradingService struct {
	store SubmissionStore
	log   zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(store SubmissionStore, log zerolog.Logger) *GradingService {
	return &GradingService{
		store: store,
		log:   log.With().Str("component", "grading_service").Logger(),
	}
}

// ListSubmissions returns the grading overview for one exam: every submission
// with its status derived from current response state, plus aggregate counts.
func (s *GradingService) ListSubmissions(ctx context.Context, examID uuid.UUID) ([]SubmissionSummary, grading.Tally, error) {
	subs, err := s.store.ListByExam(ctx, examID)
	if err != nil {
		return nil, grading.Tally{}, fmt.Errorf("list submissions: %w", err)
	}

	summaries := make([]SubmissionSummary, len(subs))
	for i, sub := range subs {
		summaries[i] = SubmissionSummary{
			SessionID:      sub.SessionID,
			StudentID:      sub.StudentID,
			Status:         grading.Classify(sub.Responses),
			TotalMarks:     grading.TotalMarks(sub.Responses),
			MaxMarks:       grading.MaxMarks(sub.Responses),
			SubmitTrigger:  sub.SubmitTrigger,
			ViolationCount: sub.ViolationCount,
			SubmittedAt:    sub.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return summaries, grading.TallySubmissions(subs), nil
}

// Open loads a submission into a grading session the teacher can stage
// drafts against.
func (s *GradingService) Open(ctx context.Context, sessionID uuid.UUID) (*GradingSession, error) {
	sub, err := s.store.GetBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &GradingSession{
		store:      s.store,
		log:        s.log,
		submission: sub,
		drafts:     make(map[uuid.UUID]*draftGrade),
	}, nil
}

type draftGrade struct {
	marks    *int
	feedback *string
}

// GradingSession holds one submission plus the teacher's staged drafts.
// Drafts live only in memory until Save; a crash before Save loses them but
// never produces a half-applied grade batch.
type GradingSession struct {
	mu sync.Mutex

	store      SubmissionStore
	log        zerolog.Logger
	submission *model.Submission
	drafts     map[uuid.UUID]*draftGrade
}

// Submission returns the loaded submission.
func (g *GradingSession) Submission() *model.Submission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submission
}

// Status derives the grading status from saved state. Unsaved drafts do not
// count.
func (g *GradingSession) Status() model.GradingStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return grading.Classify(g.submission.Responses)
}

// SetMark stages a mark draft. Rejected before any persistence when the
// response is multiple choice or the mark is outside [0, max_marks].
func (g *GradingSession) SetMark(responseID uuid.UUID, marks int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	resp := g.find(responseID)
	if resp == nil {
		return ErrUnknownResponse
	}
	if resp.QuestionType == model.QuestionTypeMultipleChoice {
		return ErrNotGradable
	}
	if marks < 0 || marks > resp.MaxMarks {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrMarksOutOfRange, marks, resp.MaxMarks)
	}

	g.draft(responseID).marks = &marks
	return nil
}

// SetFeedback stages a feedback draft. Feedback is allowed on any manually
// gradable response, with or without a mark.
func (g *GradingSession) SetFeedback(responseID uuid.UUID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	resp := g.find(responseID)
	if resp == nil {
		return ErrUnknownResponse
	}
	if resp.QuestionType == model.QuestionTypeMultipleChoice {
		return ErrNotGradable
	}

	g.draft(responseID).feedback = &text
	return nil
}

// Save applies every draft holding a mark as one all-or-nothing batch, then
// reloads the submission and returns its newly derived status. On failure no
// draft is cleared, so the save can be retried as-is.
func (g *GradingSession) Save(ctx context.Context) (model.GradingStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var updates []model.GradeUpdate
	for id, d := range g.drafts {
		if d.marks == nil {
			continue
		}
		updates = append(updates, model.GradeUpdate{
			ResponseID:      id,
			MarksObtained:   *d.marks,
			TeacherFeedback: d.feedback,
		})
	}
	if len(updates) == 0 {
		return grading.Classify(g.submission.Responses), nil
	}

	if err := g.store.UpdateGrades(ctx, g.submission.SessionID, updates); err != nil {
		return "", fmt.Errorf("save grades: %w", err)
	}

	fresh, err := g.store.GetBySession(ctx, g.submission.SessionID)
	if err != nil {
		return "", fmt.Errorf("reload submission: %w", err)
	}
	g.submission = fresh
	for _, u := range updates {
		delete(g.drafts, u.ResponseID)
	}

	status := grading.Classify(fresh.Responses)
	g.log.Info().
		Str("session_id", fresh.SessionID.String()).
		Int("updates", len(updates)).
		Str("status", string(status)).
		Msg("Grades saved")
	return status, nil
}

func (g *GradingSession) find(responseID uuid.UUID) *model.Response {
	for i := range g.submission.Responses {
		if g.submission.Responses[i].ID == responseID {
			return &g.submission.Responses[i]
		}
	}
	return nil
}

func (g *GradingSession) draft(responseID uuid.UUID) *draftGrade {
	d, ok := g.drafts[responseID]
	if !ok {
		d = &draftGrade{}
		g.drafts[responseID] = d
	}
	return d
}
