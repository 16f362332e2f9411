package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/acadex/examroom-backend/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const submissionPollTimeout = time.Second

// SubmissionWorker consumes persist_submissions_queue and lands finished
// attempts in PostgreSQL: it finalizes the session row and materializes one
// response row per question, auto-grading multiple choice in the same
// statement. Each snapshot is applied in a single transaction; a crash
// between queue pop and commit loses at most one snapshot, which the requeue
// on failure covers for every error short of process death.
type SubmissionWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "submission_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, submissionPollTimeout, config.WorkerKey.PersistSubmissionsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handleRaw(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *SubmissionWorker) handleRaw(ctx context.Context, raw string) error {
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// Malformed payloads are dropped, not requeued: they can never succeed.
		w.log.Error().Err(err).Msg("Unmarshal error, dropping item")
		return nil
	}

	if err := w.persistSnapshot(ctx, &snap); err != nil {
		return err
	}

	w.clearAttemptCache(ctx, &snap)
	w.log.Info().
		Str("exam_id", snap.ExamID.String()).
		Int("student_id", snap.StudentID).
		Str("trigger", string(snap.Trigger)).
		Msg("Submission persisted")
	return nil
}

func (w *SubmissionWorker) persistSnapshot(ctx context.Context, snap *session.Snapshot) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Finalize only an IN_PROGRESS row: a duplicate snapshot (e.g. requeued
	// after a crash post-commit) finds the session already SUBMITTED and
	// becomes a no-op.
	var sessionID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET status = $1,
		     finished_at = $2,
		     elapsed_seconds = $3,
		     submit_trigger = $4,
		     violation_count = GREATEST(violation_count, $5)
		 WHERE exam_id = $6 AND student_id = $7 AND status = $8
		 RETURNING id`,
		model.SessionStatusSubmitted, snap.SubmittedAt, snap.ElapsedSeconds,
		snap.Trigger, snap.ViolationCount, snap.ExamID, snap.StudentID,
		model.SessionStatusInProgress,
	).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	n := len(snap.Answers)
	questionIDs := make([]uuid.UUID, 0, n)
	values := make([]string, 0, n)
	flags := make([]bool, 0, n)
	for qid, a := range snap.Answers {
		questionIDs = append(questionIDs, qid)
		values = append(values, a.Value)
		flags = append(flags, a.Flagged)
	}

	// One response row per exam question, answered or not. Multiple choice
	// is graded inline against correct_option; everything else stays
	// ungraded for the manual flow.
	_, err = tx.Exec(ctx,
		`INSERT INTO responses
		     (session_id, question_id, question_type, max_marks,
		      student_answer, flagged, marks_obtained, is_graded)
		 SELECT $1, q.id, q.question_type, q.points,
		        COALESCE(a.answer, ''),
		        COALESCE(a.flagged, FALSE),
		        CASE WHEN q.question_type = $2 THEN
		            CASE WHEN TRIM(COALESCE(a.answer, '')) = q.correct_option
		                 THEN q.points ELSE 0 END
		        END,
		        q.question_type = $2
		 FROM questions q
		 LEFT JOIN UNNEST($4::uuid[], $5::text[], $6::boolean[])
		      AS a (question_id, answer, flagged)
		   ON a.question_id = q.id
		 WHERE q.exam_id = $3
		 ON CONFLICT (session_id, question_id) DO NOTHING`,
		sessionID, model.QuestionTypeMultipleChoice, snap.ExamID,
		questionIDs, values, flags,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// clearAttemptCache removes the Redis recovery state once the attempt is
// durable in PostgreSQL.
func (w *SubmissionWorker) clearAttemptCache(ctx context.Context, snap *session.Snapshot) {
	pipe := w.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.StudentAnswersKey(snap.ExamID.String(), snap.StudentID))
	pipe.Del(ctx, config.CacheKey.StudentSessionStartKey(snap.ExamID.String(), snap.StudentID))
	_, _ = pipe.Exec(ctx)
}

// drain processes all remaining items in the queue before shutdown.
func (w *SubmissionWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSubmissionsQueue).Result()
		if err != nil {
			break
		}

		if err := w.handleRaw(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
