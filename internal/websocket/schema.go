package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionFlag      Action = "flag"
	ActionNavigate  Action = "navigate"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
	ActionViolation Action = "violation"
)

// Request carries every client message. Only the fields relevant to the
// action are populated; Action is always present.
type Request struct {
	Action Action `json:"action"`

	// answer / flag
	QID   string `json:"q_id,omitempty"`
	Value string `json:"value,omitempty"`

	// navigate: "next", "prev" or "goto"
	Direction string `json:"direction,omitempty"`
	Index     int    `json:"index,omitempty"`

	// violation
	Kind string `json:"kind,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventAck         Event = "ack"
	EventRejected    Event = "rejected"
	EventError       Event = "error"
	EventPong        Event = "pong"
	EventTimeExpired Event = "time_expired"
	EventSubmitted   Event = "submitted"
)

// AckResponse confirms a state-changing action and reports the new counters
// so the client never has to track them itself.
type AckResponse struct {
	Event         Event  `json:"event"`
	Action        Action `json:"action"`
	AnsweredCount int    `json:"answered_count"`
	FlaggedCount  int    `json:"flagged_count"`
	CurrentIndex  int    `json:"current_index"`
}

// RejectedResponse signals a legal-but-refused action, e.g. navigation past
// an unanswered question. Not an error: the connection stays healthy.
type RejectedResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// PongResponse answers a ping and carries the authoritative remaining time
// so clients can correct local countdown drift.
type PongResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// SubmittedResponse signals the terminal transition. Sent once per attempt,
// with EventTimeExpired preceding it when the timer forced the submission.
type SubmittedResponse struct {
	Event          Event  `json:"event"`
	Trigger        string `json:"trigger"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	AnsweredCount  int    `json:"answered_count"`
}

// TimeExpiredResponse notifies the client that the deadline passed and the
// attempt is being force-submitted.
type TimeExpiredResponse struct {
	Event Event `json:"event"`
}

// ErrorResponse reports a malformed or failed request.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
