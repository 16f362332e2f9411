package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acadex/examroom-backend/internal/judge"
	"github.com/acadex/examroom-backend/internal/middleware"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/acadex/examroom-backend/internal/response"
	"github.com/acadex/examroom-backend/internal/service"
	"github.com/acadex/examroom-backend/internal/validator"
)

// StudentPortalHandler serves the HTTP side of an exam attempt: joining,
// fetching the paper, reload recovery, and code runs. The live mutations go
// over the WebSocket stream.
type StudentPortalHandler struct {
	examService    *service.ExamService
	sessionService *service.SessionService
	judge          *judge.Client
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	examService *service.ExamService,
	sessionService *service.SessionService,
	judgeClient *judge.Client,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService:    examService,
		sessionService: sessionService,
		judge:          judgeClient,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// JoinExam godoc
// POST /api/v1/student/exams/:exam_id/join
// Starts or resumes the student's attempt. Idempotent: repeated calls return
// the same attempt with its original start time.
func (h *StudentPortalHandler) JoinExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.StartExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusForbidden, response.ErrExamNotAvailable)
		case errors.Is(err, service.ErrSessionCompleted):
			response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
		default:
			h.log.Error().Err(err).Msg("Join exam failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the student-facing exam payload. Correct answers never leave the
// server.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	if !h.requireActiveSession(c, examID, claims.UserID) {
		return
	}

	payload, err := h.examService.GetExamPayload(c.Request.Context(), examID)
	if err != nil {
		h.log.Error().Err(err).Msg("Get exam payload failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetExamState godoc
// GET /api/v1/student/exams/:exam_id/state
// Reload recovery: autosaved answers plus the remaining time recomputed from
// the authoritative start timestamp.
func (h *StudentPortalHandler) GetExamState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetExamState(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		case errors.Is(err, service.ErrSessionCompleted):
			response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
		default:
			h.log.Error().Err(err).Msg("Get exam state failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, state)
}

// runCodeRequest is the body for a student code run.
type runCodeRequest struct {
	QuestionID  string `json:"question_id" binding:"required,uuid"`
	Code        string `json:"code" binding:"required"`
	Mode        string `json:"mode" binding:"omitempty,oneof=adhoc testcases"`
	CustomInput string `json:"custom_input"`
}

// RunCode godoc
// POST /api/v1/student/exams/:exam_id/run
// Executes the student's code on the judge: ad hoc against custom input, or
// against the question's declared test cases. The test cases themselves are
// resolved server-side and never trusted from the client.
func (h *StudentPortalHandler) RunCode(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	if !h.requireActiveSession(c, examID, claims.UserID) {
		return
	}

	var req runCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, ok := h.findCodingQuestion(c, examID, req.QuestionID)
	if !ok {
		return
	}

	runReq := judge.RunRequest{
		Code:        req.Code,
		Language:    question.Language,
		CustomInput: req.CustomInput,
	}
	if req.Mode == "testcases" {
		runReq.TestCases = question.TestCases
		runReq.CustomInput = ""
	}

	result, err := h.judge.Run(c.Request.Context(), runReq)
	if err != nil {
		if errors.Is(err, judge.ErrUnsupportedLanguage) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrLanguageNotAllowed)
			return
		}
		h.log.Error().Err(err).Msg("Code run failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Transport failures are data, not errors: the client shows "judge
	// unavailable" instead of "wrong answer".
	response.Success(c, http.StatusOK, result)
}

func (h *StudentPortalHandler) findCodingQuestion(c *gin.Context, examID uuid.UUID, rawQID string) (*model.Question, bool) {
	qid, err := uuid.Parse(rawQID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	exam, err := h.examService.GetExam(c.Request.Context(), examID)
	if err != nil {
		h.log.Error().Err(err).Msg("Get exam failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return nil, false
	}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		if q.ID == qid {
			if q.Type != model.QuestionTypeCoding {
				response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidPayload)
				return nil, false
			}
			return q, true
		}
	}

	response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	return nil, false
}

func (h *StudentPortalHandler) requireActiveSession(c *gin.Context, examID uuid.UUID, studentID int) bool {
	if _, err := h.sessionService.VerifyActiveSession(c.Request.Context(), examID, studentID); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusForbidden, response.ErrSessionNotActive)
		case errors.Is(err, service.ErrSessionCompleted):
			response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
		default:
			h.log.Error().Err(err).Msg("Verify session failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return false
	}
	return true
}

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}
