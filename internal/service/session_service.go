package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/acadex/examroom-backend/internal/clock"
	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/acadex/examroom-backend/internal/repository"
	"github.com/acadex/examroom-backend/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrExamNotFound is returned when the exam does not exist.
	ErrExamNotFound = errors.New("exam not found")
	// ErrExamNotAvailable is returned for exams that are not published.
	ErrExamNotAvailable = errors.New("exam not available")
	// ErrSessionNotFound is returned when the student has no attempt yet.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCompleted is returned when the attempt was already submitted.
	// A new attempt requires explicit authorization from the teaching side.
	ErrSessionCompleted = errors.New("session already submitted")
)

// SessionService orchestrates exam attempts: the idempotent join, reload
// recovery, and handing finished attempts to the persistence pipeline.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	examRepo    *repository.ExamRepository
	examSvc     *ExamService
	rdb         *redis.Client
	clk         clock.Clock
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	examRepo *repository.ExamRepository,
	examSvc *ExamService,
	rdb *redis.Client,
	clk clock.Clock,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		examRepo:    examRepo,
		examSvc:     examSvc,
		rdb:         rdb,
		clk:         clk,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// StartExam joins a student to an exam. The operation is idempotent: a first
// call creates the attempt and stamps started_at server-side, any later call
// returns the same attempt with its original start time, so a reload never
// grants extra time. Submitted attempts cannot be re-joined.
func (s *SessionService) StartExam(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	sess := &model.ExamSession{ExamID: examID, StudentID: studentID}
	err = s.sessionRepo.Create(ctx, sess)
	if err == nil {
		sess.Status = model.SessionStatusInProgress
		s.cacheStart(ctx, examID, studentID, sess.StartedAt)
		s.log.Info().
			Str("exam_id", examID.String()).
			Int("student_id", studentID).
			Msg("Exam attempt started")
		return sess, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("create session: %w", err)
	}

	// Lost the insert race or a session already exists: resume it.
	existing, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if existing.Status == model.SessionStatusSubmitted {
		return nil, ErrSessionCompleted
	}
	s.cacheStart(ctx, examID, studentID, existing.StartedAt)
	return existing, nil
}

// VerifyActiveSession checks that the student holds an IN_PROGRESS attempt
// for the exam. Used by every in-attempt endpoint before doing work.
func (s *SessionService) VerifyActiveSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusSubmitted {
		return nil, ErrSessionCompleted
	}
	return sess, nil
}

// GetExamState returns the reload-recovery state: autosaved answers and the
// remaining time recomputed from the authoritative start timestamp. The
// remaining time never grows across reloads because it is derived, not
// client-reported.
func (s *SessionService) GetExamState(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSessionState, error) {
	sess, err := s.VerifyActiveSession(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	answers, err := s.SavedAnswers(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	duration, err := s.examSvc.GetDuration(ctx, examID)
	if err != nil {
		return nil, err
	}

	startedAt, err := s.sessionStart(ctx, examID, studentID, sess)
	if err != nil {
		return nil, err
	}

	remaining := time.Duration(duration)*time.Minute - s.clk.Now().Sub(startedAt)
	if remaining < 0 {
		remaining = 0
	}

	state := &model.ExamSessionState{
		ExamID:           examID,
		StudentID:        studentID,
		Status:           sess.Status,
		AutosavedAnswers: make(map[string]model.Answer, len(answers)),
		RemainingSeconds: remaining.Seconds(),
	}
	for id, a := range answers {
		state.AutosavedAnswers[id.String()] = a
	}
	return state, nil
}

// SavedAnswers loads the autosaved answers for an attempt from Redis.
// A fresh attempt returns an empty map.
func (s *SessionService) SavedAnswers(ctx context.Context, examID uuid.UUID, studentID int) (map[uuid.UUID]model.Answer, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(examID.String(), studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	answers := make(map[uuid.UUID]model.Answer, len(raw))
	for key, val := range raw {
		qid, err := uuid.Parse(key)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Skipping malformed answer key")
			continue
		}
		var a model.Answer
		if err := json.Unmarshal([]byte(val), &a); err != nil {
			s.log.Warn().Str("key", key).Msg("Skipping malformed answer value")
			continue
		}
		a.QuestionID = qid
		answers[qid] = a
	}
	return answers, nil
}

// FinalizeSubmission enqueues a finished attempt for the submission worker.
// The caller's session object has already made the terminal transition; from
// here the attempt is durable in Redis until the worker lands it in Postgres.
func (s *SessionService) FinalizeSubmission(ctx context.Context, snap *session.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}
	s.log.Info().
		Str("exam_id", snap.ExamID.String()).
		Int("student_id", snap.StudentID).
		Str("trigger", string(snap.Trigger)).
		Msg("Submission enqueued")
	return nil
}

// QueueViolation enqueues a proctoring violation report for async persistence.
func (s *SessionService) QueueViolation(ctx context.Context, examID uuid.UUID, studentID int, count int) error {
	payload, err := json.Marshal(model.ViolationEvent{
		ExamID:     examID,
		StudentID:  studentID,
		Count:      count,
		ReportedAt: s.clk.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err()
}

// sessionStart returns the attempt's start timestamp, Redis-first with the
// session row as source of truth. A cache miss self-heals from the row we
// already hold.
func (s *SessionService) sessionStart(ctx context.Context, examID uuid.UUID, studentID int, sess *model.ExamSession) (time.Time, error) {
	key := config.CacheKey.StudentSessionStartKey(examID.String(), studentID)

	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		if unix, convErr := strconv.ParseInt(val, 10, 64); convErr == nil {
			return time.Unix(unix, 0), nil
		}
	} else if err != redis.Nil {
		return time.Time{}, fmt.Errorf("get session start: %w", err)
	}

	s.cacheStart(ctx, examID, studentID, sess.StartedAt)
	return sess.StartedAt, nil
}

func (s *SessionService) cacheStart(ctx context.Context, examID uuid.UUID, studentID int, startedAt time.Time) {
	key := config.CacheKey.StudentSessionStartKey(examID.String(), studentID)
	if err := s.rdb.Set(ctx, key, startedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache session start")
	}
}
