package handler

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acadex/examroom-backend/internal/grading"
	"github.com/acadex/examroom-backend/internal/judge"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/acadex/examroom-backend/internal/response"
	"github.com/acadex/examroom-backend/internal/service"
	"github.com/acadex/examroom-backend/internal/validator"
)

// GradingHandler serves the teacher grading flow: the submissions overview,
// single submission detail, batch grade saves, and code verification runs.
type GradingHandler struct {
	gradingService *service.GradingService
	examService    *service.ExamService
	judge          *judge.Client
	log            zerolog.Logger
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(
	gradingService *service.GradingService,
	examService *service.ExamService,
	judgeClient *judge.Client,
	log zerolog.Logger,
) *GradingHandler {
	return &GradingHandler{
		gradingService: gradingService,
		examService:    examService,
		judge:          judgeClient,
		log:            log.With().Str("component", "grading_handler").Logger(),
	}
}

// ListSubmissions godoc
// GET /api/v1/teacher/exams/:exam_id/submissions
// Returns every submission for the exam with its derived grading status,
// plus aggregate counts.
func (h *GradingHandler) ListSubmissions(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	summaries, tally, err := h.gradingService.ListSubmissions(c.Request.Context(), examID)
	if err != nil {
		h.log.Error().Err(err).Msg("List submissions failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"submissions": summaries,
		"tally":       tally,
	})
}

// GetSubmission godoc
// GET /api/v1/teacher/submissions/:session_id
// Returns one submission with its responses, derived status and mark totals.
func (h *GradingHandler) GetSubmission(c *gin.Context) {
	gs, ok := h.openSession(c)
	if !ok {
		return
	}

	sub := gs.Submission()
	response.Success(c, http.StatusOK, gin.H{
		"submission":  sub,
		"status":      gs.Status(),
		"total_marks": grading.TotalMarks(sub.Responses),
		"max_marks":   grading.MaxMarks(sub.Responses),
	})
}

// gradeEntry carries one grade in a batch save. Marks is a pointer: an
// entry without it is a feedback-only edit, never a zero mark. Present
// marks arrive as a JSON number and integrality is checked explicitly so
// 7.5 is rejected up front rather than silently truncated.
type gradeEntry struct {
	ResponseID string   `json:"response_id" binding:"required,uuid"`
	Marks      *float64 `json:"marks"`
	Feedback   *string  `json:"feedback"`
}

type saveGradesRequest struct {
	Grades []gradeEntry `json:"grades" binding:"required,min=1,dive"`
}

// SaveGrades godoc
// PATCH /api/v1/teacher/submissions/:session_id/grades
// Applies a batch of grades all-or-nothing and returns the newly derived
// grading status. Any invalid entry rejects the whole batch before anything
// is written.
func (h *GradingHandler) SaveGrades(c *gin.Context) {
	var req saveGradesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	gs, ok := h.openSession(c)
	if !ok {
		return
	}

	for _, entry := range req.Grades {
		responseID, err := uuid.Parse(entry.ResponseID)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		if entry.Marks != nil {
			if *entry.Marks != math.Trunc(*entry.Marks) {
				response.Fail(c, http.StatusUnprocessableEntity, response.ErrMarksNotInteger)
				return
			}
			if err := gs.SetMark(responseID, int(*entry.Marks)); err != nil {
				h.failGradeEntry(c, err)
				return
			}
		}
		if entry.Feedback != nil {
			if err := gs.SetFeedback(responseID, *entry.Feedback); err != nil {
				h.failGradeEntry(c, err)
				return
			}
		}
	}

	status, err := gs.Save(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Save grades failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": status})
}

// verifyRunRequest selects the coding response to re-run.
type verifyRunRequest struct {
	ResponseID string `json:"response_id" binding:"required,uuid"`
}

// VerifyRun godoc
// POST /api/v1/teacher/submissions/:session_id/verify-run
// Re-executes a coding response against its question's test cases so the
// grader can see current pass/fail results instead of trusting a stale run.
func (h *GradingHandler) VerifyRun(c *gin.Context) {
	var req verifyRunRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	gs, ok := h.openSession(c)
	if !ok {
		return
	}
	sub := gs.Submission()

	responseID, err := uuid.Parse(req.ResponseID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var target *model.Response
	for i := range sub.Responses {
		if sub.Responses[i].ID == responseID {
			target = &sub.Responses[i]
			break
		}
	}
	if target == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if target.QuestionType != model.QuestionTypeCoding {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidPayload)
		return
	}

	exam, err := h.examService.GetExam(c.Request.Context(), sub.ExamID)
	if err != nil {
		h.log.Error().Err(err).Msg("Get exam failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	var question *model.Question
	for i := range exam.Questions {
		if exam.Questions[i].ID == target.QuestionID {
			question = &exam.Questions[i]
			break
		}
	}
	if question == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	result, err := h.judge.Run(c.Request.Context(), judge.RunRequest{
		Code:      target.StudentAnswer,
		Language:  question.Language,
		TestCases: question.TestCases,
	})
	if err != nil {
		if errors.Is(err, judge.ErrUnsupportedLanguage) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrLanguageNotAllowed)
			return
		}
		h.log.Error().Err(err).Msg("Verify run failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *GradingHandler) openSession(c *gin.Context) (*service.GradingSession, bool) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	gs, err := h.gradingService.Open(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return nil, false
		}
		h.log.Error().Err(err).Msg("Open grading session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return nil, false
	}
	return gs, true
}

func (h *GradingHandler) failGradeEntry(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMarksOutOfRange):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrMarksOutOfRange)
	case errors.Is(err, service.ErrNotGradable):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNotGradable)
	case errors.Is(err, service.ErrUnknownResponse):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		h.log.Error().Err(err).Msg("Stage grade failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
