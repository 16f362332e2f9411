package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisSnapshotStore lands autosave flushes in two places in one round trip:
// the per-attempt answer hash that serves reload recovery immediately, and
// the persistence queue the answer worker drains into PostgreSQL.
type RedisSnapshotStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisSnapshotStore creates a new RedisSnapshotStore.
func NewRedisSnapshotStore(rdb *redis.Client, log zerolog.Logger) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		rdb: rdb,
		log: log.With().Str("component", "snapshot_store").Logger(),
	}
}

// WriteAnswers overwrites the autosaved answers for one attempt and enqueues
// the batch for durable persistence. Last write wins.
func (s *RedisSnapshotStore) WriteAnswers(ctx context.Context, examID uuid.UUID, studentID int, answers map[uuid.UUID]model.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(answers))
	batch := model.AutosaveBatch{ExamID: examID, StudentID: studentID}
	for qid, a := range answers {
		encoded, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal answer %s: %w", qid, err)
		}
		fields[qid.String()] = encoded
		batch.Answers = append(batch.Answers, a)
	}

	queued, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, config.CacheKey.StudentAnswersKey(examID.String(), studentID), fields)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, queued)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write autosave: %w", err)
	}
	return nil
}
