package session

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestAnswerStorePreservesFlagAndValueIndependently(t *testing.T) {
	store := NewAnswerStore()
	q := uuid.New()

	store.Set(q, "first draft")
	store.ToggleFlag(q)

	a, ok := store.Get(q)
	if !ok || a.Value != "first draft" || !a.Flagged {
		t.Fatalf("after set+flag: got %+v", a)
	}

	// Updating the value must not clear the flag.
	store.Set(q, "second draft")
	a, _ = store.Get(q)
	if !a.Flagged || a.Value != "second draft" {
		t.Fatalf("set cleared flag or lost value: %+v", a)
	}

	// Unflagging must not touch the value.
	store.ToggleFlag(q)
	a, _ = store.Get(q)
	if a.Flagged || a.Value != "second draft" {
		t.Fatalf("toggle lost value: %+v", a)
	}
}

func TestAnswerStoreCounts(t *testing.T) {
	store := NewAnswerStore()
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()

	store.Set(q1, "answer")
	store.Set(q2, "   ") // whitespace-only counts as unanswered
	store.ToggleFlag(q3) // flag with no value

	if got := store.AnsweredCount(); got != 1 {
		t.Fatalf("AnsweredCount = %d, want 1", got)
	}
	if got := store.FlaggedCount(); got != 1 {
		t.Fatalf("FlaggedCount = %d, want 1", got)
	}
}

func TestAnswerStoreSnapshotHydrateRoundTrip(t *testing.T) {
	store := NewAnswerStore()
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	store.Set(q1, "alpha")
	store.ToggleFlag(q1)
	store.Set(q2, "")
	store.ToggleFlag(q3)

	snap := store.Snapshot()
	restored := Hydrate(snap)

	if !reflect.DeepEqual(restored.Snapshot(), snap) {
		t.Fatalf("hydrate(snapshot) mismatch:\n got  %+v\n want %+v", restored.Snapshot(), snap)
	}
	if restored.Dirty() {
		t.Fatal("hydrated store must start clean")
	}
}

func TestAnswerStoreDirtyGenerations(t *testing.T) {
	store := NewAnswerStore()
	q := uuid.New()

	if store.Dirty() {
		t.Fatal("fresh store must be clean")
	}

	store.Set(q, "a")
	genAtFlush := store.dirtyGen
	if !store.Dirty() {
		t.Fatal("store must be dirty after a mutation")
	}

	// A mutation landing between snapshot and save keeps the store dirty.
	store.Set(q, "b")
	store.markSaved(genAtFlush)
	if !store.Dirty() {
		t.Fatal("store must stay dirty when a newer mutation exists")
	}

	store.markSaved(store.dirtyGen)
	if store.Dirty() {
		t.Fatal("store must be clean after saving the latest generation")
	}
}
