package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/acadex/examroom-backend/internal/model"
	"github.com/acadex/examroom-backend/internal/response"
	"github.com/acadex/examroom-backend/internal/service"
	"github.com/acadex/examroom-backend/internal/validator"
)

var testSetup sync.Once

// stubSubmissionStore records every grade batch and applies it so a reload
// after Save sees the new marks.
type stubSubmissionStore struct {
	submission *model.Submission
	batches    [][]model.GradeUpdate
}

func (s *stubSubmissionStore) GetBySession(_ context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	if s.submission == nil || s.submission.SessionID != sessionID {
		return nil, pgx.ErrNoRows
	}
	copied := *s.submission
	copied.Responses = append([]model.Response(nil), s.submission.Responses...)
	return &copied, nil
}

func (s *stubSubmissionStore) ListByExam(_ context.Context, _ uuid.UUID) ([]model.Submission, error) {
	if s.submission == nil {
		return nil, nil
	}
	return []model.Submission{*s.submission}, nil
}

func (s *stubSubmissionStore) UpdateGrades(_ context.Context, _ uuid.UUID, updates []model.GradeUpdate) error {
	s.batches = append(s.batches, updates)
	for _, u := range updates {
		for i := range s.submission.Responses {
			r := &s.submission.Responses[i]
			if r.ID != u.ResponseID {
				continue
			}
			marks := u.MarksObtained
			r.MarksObtained = &marks
			r.TeacherFeedback = u.TeacherFeedback
			r.IsGraded = true
		}
	}
	return nil
}

// submittedAttempt has an auto-graded multiple choice response and one
// ungraded short answer, so its derived status starts as PARTIAL.
func submittedAttempt() (*model.Submission, uuid.UUID) {
	sessionID := uuid.New()
	shortID := uuid.New()
	autoMarks := 5

	return &model.Submission{
		SessionID:   sessionID,
		ExamID:      uuid.New(),
		StudentID:   42,
		SubmittedAt: time.Now(),
		Responses: []model.Response{
			{
				ID: uuid.New(), SessionID: sessionID,
				QuestionType: model.QuestionTypeMultipleChoice,
				MaxMarks:     5, MarksObtained: &autoMarks, IsGraded: true,
			},
			{
				ID: shortID, SessionID: sessionID,
				QuestionType: model.QuestionTypeShortAnswer,
				MaxMarks:     10, StudentAnswer: "photosynthesis",
			},
		},
	}, shortID
}

func newGradingRouter(store *stubSubmissionStore) *gin.Engine {
	testSetup.Do(func() {
		gin.SetMode(gin.TestMode)
		validator.Setup()
	})
	h := NewGradingHandler(
		service.NewGradingService(store, zerolog.Nop()),
		nil, nil, zerolog.Nop(),
	)
	r := gin.New()
	r.PATCH("/submissions/:session_id/grades", h.SaveGrades)
	return r
}

func saveGrades(t *testing.T, r *gin.Engine, sessionID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(
		http.MethodPatch,
		"/submissions/"+sessionID.String()+"/grades",
		bytes.NewBufferString(body),
	)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type saveGradesEnvelope struct {
	Data struct {
		Status model.GradingStatus `json:"status"`
	} `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func TestSaveGradesFeedbackOnlyEntryDoesNotWriteMarks(t *testing.T) {
	sub, shortID := submittedAttempt()
	store := &stubSubmissionStore{submission: sub}
	r := newGradingRouter(store)

	body := `{"grades":[{"response_id":"` + shortID.String() + `","feedback":"expand on step two"}]}`
	rec := saveGrades(t, r, sub.SessionID, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(store.batches) != 0 {
		t.Fatalf("feedback-only save must not write grades, got %d batches", len(store.batches))
	}
	if sub.Responses[1].IsGraded || sub.Responses[1].MarksObtained != nil {
		t.Fatalf("feedback-only entry must not grade the response: %+v", sub.Responses[1])
	}

	var env saveGradesEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Status != model.GradingStatusPartial {
		t.Fatalf("status = %s, want PARTIAL", env.Data.Status)
	}
}

func TestSaveGradesRejectsNonIntegerMarks(t *testing.T) {
	sub, shortID := submittedAttempt()
	store := &stubSubmissionStore{submission: sub}
	r := newGradingRouter(store)

	body := `{"grades":[{"response_id":"` + shortID.String() + `","marks":7.5}]}`
	rec := saveGrades(t, r, sub.SessionID, body)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body: %s", rec.Code, rec.Body.String())
	}
	var env saveGradesEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil || env.Error.Code != response.ErrMarksNotInteger {
		t.Fatalf("error = %+v, want code %s", env.Error, response.ErrMarksNotInteger)
	}
	if len(store.batches) != 0 {
		t.Fatalf("rejected batch must not reach the store, got %d batches", len(store.batches))
	}
}

func TestSaveGradesPersistsMarksWithFeedback(t *testing.T) {
	sub, shortID := submittedAttempt()
	store := &stubSubmissionStore{submission: sub}
	r := newGradingRouter(store)

	body := `{"grades":[{"response_id":"` + shortID.String() + `","marks":8,"feedback":"close enough"}]}`
	rec := saveGrades(t, r, sub.SessionID, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(store.batches) != 1 || len(store.batches[0]) != 1 {
		t.Fatalf("batches = %+v, want exactly one single-entry batch", store.batches)
	}
	u := store.batches[0][0]
	if u.ResponseID != shortID || u.MarksObtained != 8 {
		t.Fatalf("update = %+v, want marks 8 on the short answer", u)
	}
	if u.TeacherFeedback == nil || *u.TeacherFeedback != "close enough" {
		t.Fatalf("feedback = %v, want to ride along with the mark", u.TeacherFeedback)
	}

	var env saveGradesEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Status != model.GradingStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED once every response is graded", env.Data.Status)
	}
}
