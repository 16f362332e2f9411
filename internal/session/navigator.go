package session

import (
	"github.com/acadex/examroom-backend/internal/model"
)

// Navigator enforces which questions may be visited. Jumps via GoTo are
// free backward and into already-touched questions, but skip-ahead past an
// unanswered gate is rejected. Next is a separate, stricter check: it also
// blocks forward movement while the current answer is empty, even when the
// target index was already reached by some other path. The two rules are
// deliberately kept apart; merging them changes observable lockout behavior
// at exam boundaries.
type Navigator struct {
	questions  []model.Question
	store      *AnswerStore
	current    int
	maxReached int
}

// NewNavigator starts at question 0 with nothing beyond it reached.
func NewNavigator(questions []model.Question, store *AnswerStore) *Navigator {
	return &Navigator{questions: questions, store: store}
}

// Current returns the index of the question in view.
func (n *Navigator) Current() int { return n.current }

// MaxReached returns the highest index ever visited.
func (n *Navigator) MaxReached() int { return n.maxReached }

// GoTo moves to index i if it is navigable: the current index, any index up
// to the highest ever reached, or a question whose answer is non-empty.
// An illegal target is a no-op and returns false (index unchanged).
func (n *Navigator) GoTo(i int) bool {
	if i < 0 || i >= len(n.questions) {
		return false
	}
	if i != n.current && i > n.maxReached && !n.answered(i) {
		return false
	}
	n.current = i
	if i > n.maxReached {
		n.maxReached = i
	}
	return true
}

// Next advances one question. It is blocked while the current answer is
// empty, except on the last question where there is nothing to advance to
// and the student must never be trapped.
func (n *Navigator) Next() bool {
	if n.current >= len(n.questions)-1 {
		return false
	}
	if !n.answered(n.current) {
		return false
	}
	n.current++
	if n.current > n.maxReached {
		n.maxReached = n.current
	}
	return true
}

// Prev moves one question backward; always legal down to index 0.
func (n *Navigator) Prev() bool {
	return n.GoTo(n.current - 1)
}

func (n *Navigator) answered(i int) bool {
	a, ok := n.store.Get(n.questions[i].ID)
	return ok && !a.Empty()
}
