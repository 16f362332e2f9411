package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/acadex/examroom-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExamService serves exam definitions and maintains the Redis payload cache
// students read during an attempt.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam retrieves a full exam definition, correct answers included.
// Grading and submission finalization use this; never hand it to students.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, examID)
}

// GetExamPayload returns the student-facing exam payload from Redis,
// rebuilding the cache from PostgreSQL on a miss.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		payload := &model.ExamPayload{}
		if err := json.Unmarshal([]byte(raw), payload); err == nil {
			return payload, nil
		}
		// Corrupted cache entry: fall through and rebuild.
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupted payload cache, rebuilding")
	} else if err != redis.Nil {
		return nil, fmt.Errorf("get payload cache: %w", err)
	}

	return s.RefreshCache(ctx, examID)
}

// GetDuration returns the exam duration in minutes, Redis-first with a
// PostgreSQL fallback that self-heals the cache.
func (s *ExamService) GetDuration(ctx context.Context, examID uuid.UUID) (int, error) {
	key := config.CacheKey.ExamDurationKey(examID.String())

	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		if minutes, convErr := strconv.Atoi(val); convErr == nil {
			return minutes, nil
		}
	} else if err != redis.Nil {
		return 0, fmt.Errorf("get duration cache: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("get exam: %w", err)
	}
	_ = s.rdb.Set(ctx, key, exam.DurationMinutes, 0)
	return exam.DurationMinutes, nil
}

// RefreshCache rebuilds the payload and duration cache entries for an exam.
func (s *ExamService) RefreshCache(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	payload := &model.ExamPayload{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Duration:  exam.DurationMinutes,
		Questions: make([]model.QuestionForStudent, len(exam.Questions)),
	}
	for i := range exam.Questions {
		payload.Questions[i] = exam.Questions[i].ForStudent()
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(examID.String()), encoded, 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(examID.String()), exam.DurationMinutes, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("cache payload: %w", err)
	}

	return payload, nil
}

// PrewarmAllCaches loads every published exam into Redis before traffic is
// accepted, avoiding lazy-load races under a thundering herd at exam start.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	for _, id := range ids {
		if _, err := s.RefreshCache(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Prewarm failed for exam")
			continue
		}
	}

	s.log.Info().Int("count", len(ids)).Msg("Exam caches prewarmed")
	return nil
}
