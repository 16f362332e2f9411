package session

import (
	"context"
	"time"

	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotStore is the durable recovery surface for autosaved answers.
// Writes are last-write-wins; there is no merge logic.
type SnapshotStore interface {
	WriteAnswers(ctx context.Context, examID uuid.UUID, studentID int, answers map[uuid.UUID]model.Answer) error
}

// Autosaver periodically flushes a dirty answer store to a SnapshotStore.
// It is best-effort: a failed write never interrupts the exam, the store
// simply stays dirty and the write is retried on the next tick. The task is
// tied to the session's lifetime — it stops when the context is cancelled or
// when the session leaves IN_PROGRESS, so no write can land after submission.
type Autosaver struct {
	sess     *Session
	sink     SnapshotStore
	interval time.Duration
	log      zerolog.Logger
}

// NewAutosaver creates an autosaver for one session.
func NewAutosaver(sess *Session, sink SnapshotStore, interval time.Duration, log zerolog.Logger) *Autosaver {
	return &Autosaver{
		sess:     sess,
		sink:     sink,
		interval: interval,
		log:      log.With().Str("component", "autosaver").Logger(),
	}
}

// Run loops until cancelled or the session ends. Call in a goroutine.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final best-effort flush so a clean disconnect loses nothing.
			a.Flush(context.Background())
			return
		case <-ticker.C:
			if a.sess.Status() == model.SessionStatusSubmitted {
				return
			}
			a.Flush(ctx)
		}
	}
}

// Flush writes the current answers if the store is dirty. Errors are
// swallowed after logging; the dirty state is preserved for retry.
func (a *Autosaver) Flush(ctx context.Context) {
	answers, gen, ok := a.sess.flushState()
	if !ok {
		return
	}

	if err := a.sink.WriteAnswers(ctx, a.sess.exam.ID, a.sess.studentID, answers); err != nil {
		a.log.Warn().Err(err).Msg("Autosave write failed, will retry next tick")
		return
	}
	a.sess.markSaved(gen)
}
