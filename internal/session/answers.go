package session

import (
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
)

// AnswerStore maps question ids to the student's current answer and flag
// state. Answers are never deleted individually; the whole store is cleared
// when a new attempt starts. Dirtiness is tracked with a generation counter
// so a flush that races with a new mutation does not mark the store clean.
type AnswerStore struct {
	answers  map[uuid.UUID]model.Answer
	dirtyGen uint64
	savedGen uint64
}

// NewAnswerStore creates an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[uuid.UUID]model.Answer)}
}

// Hydrate builds a store from an autosaved snapshot. The restored store
// starts clean: nothing changed since the snapshot was taken.
func Hydrate(saved map[uuid.UUID]model.Answer) *AnswerStore {
	s := NewAnswerStore()
	for qid, a := range saved {
		a.QuestionID = qid
		s.answers[qid] = a
	}
	return s
}

// Set upserts the answer value for a question, preserving its flagged bit.
func (s *AnswerStore) Set(questionID uuid.UUID, value string) {
	a := s.answers[questionID]
	a.QuestionID = questionID
	a.Value = value
	s.answers[questionID] = a
	s.dirtyGen++
}

// ToggleFlag flips the flagged bit for a question, preserving its value.
func (s *AnswerStore) ToggleFlag(questionID uuid.UUID) {
	a := s.answers[questionID]
	a.QuestionID = questionID
	a.Flagged = !a.Flagged
	s.answers[questionID] = a
	s.dirtyGen++
}

// Get returns the answer for a question, if any.
func (s *AnswerStore) Get(questionID uuid.UUID) (model.Answer, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// AnsweredCount returns how many answers have a non-empty trimmed value.
// Derived on every call; nothing here can go stale.
func (s *AnswerStore) AnsweredCount() int {
	n := 0
	for _, a := range s.answers {
		if !a.Empty() {
			n++
		}
	}
	return n
}

// FlaggedCount returns how many answers are flagged for review.
func (s *AnswerStore) FlaggedCount() int {
	n := 0
	for _, a := range s.answers {
		if a.Flagged {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the current mapping.
func (s *AnswerStore) Snapshot() map[uuid.UUID]model.Answer {
	out := make(map[uuid.UUID]model.Answer, len(s.answers))
	for qid, a := range s.answers {
		out[qid] = a
	}
	return out
}

// Dirty reports whether there are mutations not yet flushed.
func (s *AnswerStore) Dirty() bool {
	return s.dirtyGen != s.savedGen
}

// markSaved clears dirtiness up to the given generation. A mutation that
// landed after the snapshot keeps the store dirty for the next tick.
func (s *AnswerStore) markSaved(gen uint64) {
	s.savedGen = gen
}
