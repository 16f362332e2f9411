package session

import (
	"testing"

	"github.com/acadex/examroom-backend/internal/model"
	"github.com/google/uuid"
)

func makeQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{ID: uuid.New(), OrderNum: i, Type: model.QuestionTypeShortAnswer, Points: 5}
	}
	return qs
}

func TestGoToLaw(t *testing.T) {
	qs := makeQuestions(5)
	store := NewAnswerStore()
	nav := NewNavigator(qs, store)

	// Skip-ahead past an unanswered gate is a no-op.
	if nav.GoTo(3) {
		t.Fatal("GoTo(3) must be rejected with nothing reached or answered")
	}
	if nav.Current() != 0 {
		t.Fatalf("index changed on rejected GoTo: %d", nav.Current())
	}

	// A question with a non-empty answer is navigable regardless of reach.
	store.Set(qs[3].ID, "prefilled")
	if !nav.GoTo(3) {
		t.Fatal("GoTo(3) must succeed once the target is answered")
	}
	if nav.MaxReached() != 3 {
		t.Fatalf("MaxReached = %d, want 3", nav.MaxReached())
	}

	// Free movement backward and into already-reached questions.
	for _, i := range []int{0, 1, 2, 3} {
		if !nav.GoTo(i) {
			t.Fatalf("GoTo(%d) within reach must succeed", i)
		}
	}

	// Out of range is a no-op.
	if nav.GoTo(-1) || nav.GoTo(5) {
		t.Fatal("out-of-range GoTo must be rejected")
	}
}

func TestNextBlockedOnEmptyCurrentAnswer(t *testing.T) {
	qs := makeQuestions(3)
	store := NewAnswerStore()
	nav := NewNavigator(qs, store)

	if nav.Next() {
		t.Fatal("Next must be blocked while the current answer is empty")
	}

	store.Set(qs[0].ID, "done")
	if !nav.Next() {
		t.Fatal("Next must succeed once the current answer is non-empty")
	}
	if nav.Current() != 1 || nav.MaxReached() != 1 {
		t.Fatalf("current=%d maxReached=%d, want 1/1", nav.Current(), nav.MaxReached())
	}

	// The Next gate applies even when the target was already reached.
	store.Set(qs[1].ID, "also done")
	nav.Next()            // reach index 2
	nav.GoTo(1)           // back to 1
	store.Set(qs[1].ID, "") // erase it
	if nav.Next() {
		t.Fatal("Next must re-block when the current answer was erased, even with index 2 already reached")
	}
	if !nav.GoTo(2) {
		t.Fatal("GoTo(2) must still succeed: index 2 was already reached")
	}
}

func TestNextOnLastQuestionIsNoop(t *testing.T) {
	qs := makeQuestions(2)
	store := NewAnswerStore()
	nav := NewNavigator(qs, store)

	store.Set(qs[0].ID, "x")
	nav.Next()

	// Last question: nothing to advance to, the student is never trapped.
	if nav.Next() {
		t.Fatal("Next on the last question must be a no-op")
	}
	if nav.Current() != 1 {
		t.Fatalf("current = %d, want 1", nav.Current())
	}
	if !nav.Prev() {
		t.Fatal("Prev from the last question must succeed")
	}
}
