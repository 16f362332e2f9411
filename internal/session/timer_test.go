package session

import (
	"testing"
	"time"

	"github.com/acadex/examroom-backend/internal/clock"
)

func TestTimerRemainingRecomputedFromWallClock(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	timer := NewTimer(start, 45, clk)

	if got := timer.RemainingSeconds(); got != 45*60 {
		t.Fatalf("RemainingSeconds at start = %d, want %d", got, 45*60)
	}

	clk.Advance(10 * time.Minute)
	if got := timer.RemainingSeconds(); got != 35*60 {
		t.Fatalf("RemainingSeconds after 10m = %d, want %d", got, 35*60)
	}

	// A fresh timer built from the same startedAt (page reload) must agree.
	reloaded := NewTimer(start, 45, clk)
	if got := reloaded.RemainingSeconds(); got != 35*60 {
		t.Fatalf("reloaded RemainingSeconds = %d, want %d", got, 35*60)
	}
}

func TestTimerMonotonicAndNeverNegative(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	timer := NewTimer(start, 1, clk)

	prev := timer.Remaining()
	for i := 0; i < 90; i++ {
		clk.Advance(time.Second)
		cur := timer.Remaining()
		if cur > prev {
			t.Fatalf("remaining increased from %v to %v", prev, cur)
		}
		if cur < 0 {
			t.Fatalf("remaining went negative: %v", cur)
		}
		prev = cur
	}

	if !timer.Expired() {
		t.Fatal("timer should be expired after 90s of a 60s exam")
	}
	if got := timer.ElapsedSeconds(); got != 60 {
		t.Fatalf("ElapsedSeconds after expiry = %d, want full duration 60", got)
	}
}

func TestTimerZeroStartedAtFailsSafe(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	timer := NewTimer(time.Time{}, 45, clk)

	if !timer.Expired() {
		t.Fatal("corrupted startedAt must report immediate expiry")
	}
	if got := timer.Remaining(); got != 0 {
		t.Fatalf("Remaining = %v, want 0", got)
	}
}
