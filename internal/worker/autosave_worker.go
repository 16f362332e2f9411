package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AutosaveWorker consumes persist_answers_queue and UPSERTs answer batches to
// PostgreSQL. Redis already holds the answers for reload recovery; this
// worker only makes them durable, so it can lag without affecting students.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var batch model.AutosaveBatch
	if err := json.Unmarshal([]byte(result[1]), &batch); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistBatch(ctx, &batch); err != nil {
		w.log.Error().Err(err).
			Int("student_id", batch.StudentID).
			Str("exam_id", batch.ExamID.String()).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AutosaveWorker) persistBatch(ctx context.Context, b *model.AutosaveBatch) error {
	for _, a := range b.Answers {
		// UPSERT the answer — creates or updates without locking.
		_, err := w.pool.Exec(ctx,
			`INSERT INTO student_answers (exam_id, student_id, question_id, answer, flagged)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (exam_id, student_id, question_id) DO UPDATE
			 SET answer = EXCLUDED.answer, flagged = EXCLUDED.flagged, updated_at = NOW()`,
			b.ExamID, b.StudentID, a.QuestionID, a.Value, a.Flagged,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var batch model.AutosaveBatch
		if err := json.Unmarshal([]byte(result), &batch); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistBatch(ctx, &batch); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
