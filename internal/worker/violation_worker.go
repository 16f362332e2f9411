package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ViolationBatchSize    = 50
	ViolationBatchTimeout = 2 * time.Second
	ViolationPollTimeout  = 1 * time.Second
)

// ViolationWorker consumes persist_violations_queue and batches proctoring
// violation counts into exam_sessions. Counts are monotone: GREATEST keeps
// the row from moving backwards when reports arrive out of order.
type ViolationWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
}

// Start begins the worker loop with size/time batching. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*model.ViolationEvent, 0, ViolationBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ViolationBatchSize || time.Since(lastFlush) >= ViolationBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ViolationPollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var ev model.ViolationEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &ev)
		}
	}
}

func (w *ViolationWorker) flushSafe(ctx context.Context, batch []*model.ViolationEvent) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdateCounts(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk violation update failed, using fallback")

		for _, ev := range batch {
			if err := w.persistSingle(ctx, ev); err != nil {
				w.log.Error().Err(err).Msg("Single violation update failed, requeueing")
				raw, _ := json.Marshal(ev)
				w.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, raw)
			}
		}
	}
}

// bulkUpdateCounts applies the whole batch in one UPDATE via UNNEST.
func (w *ViolationWorker) bulkUpdateCounts(ctx context.Context, batch []*model.ViolationEvent) error {
	n := len(batch)

	examIDs := make([]uuid.UUID, 0, n)
	students := make([]int, 0, n)
	counts := make([]int, 0, n)
	for _, ev := range batch {
		examIDs = append(examIDs, ev.ExamID)
		students = append(students, ev.StudentID)
		counts = append(counts, ev.Count)
	}

	query := `
		UPDATE exam_sessions AS s
		SET violation_count = GREATEST(s.violation_count, t.count)
		FROM (
			SELECT u.exam_id, u.student_id, u.count
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::int[]
			) AS u (exam_id, student_id, count)
		) AS t
		WHERE s.exam_id = t.exam_id
		  AND s.student_id = t.student_id
	`

	_, err := w.pool.Exec(ctx, query, examIDs, students, counts)
	return err
}

func (w *ViolationWorker) persistSingle(ctx context.Context, ev *model.ViolationEvent) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET violation_count = GREATEST(violation_count, $1)
		 WHERE exam_id = $2 AND student_id = $3`,
		ev.Count, ev.ExamID, ev.StudentID,
	)
	return err
}
