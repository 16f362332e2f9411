package session

import (
	"time"

	"github.com/acadex/examroom-backend/internal/clock"
)

// Timer derives the remaining time of an attempt from absolute timestamps.
// It never accumulates decrements: remaining = startedAt + duration - now,
// clamped at zero. This survives reloads and process restarts, and a missing
// startedAt fails safe toward immediate expiry rather than extending the exam.
type Timer struct {
	startedAt time.Time
	duration  time.Duration
	clk       clock.Clock
}

// NewTimer creates a timer for an attempt that started at startedAt.
func NewTimer(startedAt time.Time, durationMinutes int, clk clock.Clock) *Timer {
	return &Timer{
		startedAt: startedAt,
		duration:  time.Duration(durationMinutes) * time.Minute,
		clk:       clk,
	}
}

// Remaining returns the time left, never negative. A zero startedAt is
// treated as corrupted session state and reports immediate expiry.
func (t *Timer) Remaining() time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	remaining := t.startedAt.Add(t.duration).Sub(t.clk.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingSeconds returns Remaining truncated to whole seconds.
func (t *Timer) RemainingSeconds() int {
	return int(t.Remaining() / time.Second)
}

// Expired reports whether the deadline has passed.
func (t *Timer) Expired() bool {
	return t.Remaining() == 0
}

// Elapsed returns duration minus remaining, in whole seconds. At the moment
// of a timeout submission this equals the full exam length.
func (t *Timer) ElapsedSeconds() int {
	return int((t.duration - t.Remaining()) / time.Second)
}
