package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/acadex/examroom-backend/internal/clock"
	"github.com/acadex/examroom-backend/internal/model"
	"github.com/acadex/examroom-backend/internal/session"
	ws "github.com/acadex/examroom-backend/internal/websocket"
)

func startedSession(t *testing.T) (*session.Session, []model.Question) {
	t.Helper()
	questions := []model.Question{
		{ID: uuid.New(), OrderNum: 1, Type: model.QuestionTypeShortAnswer},
		{ID: uuid.New(), OrderNum: 2, Type: model.QuestionTypeShortAnswer},
	}
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           "Midterm",
		DurationMinutes: 30,
		Questions:       questions,
	}
	now := time.Now()
	sess := session.New(exam, 7, clock.NewFake(now), zerolog.Nop())
	sess.Start(now, nil)
	return sess, questions
}

// dialAck runs fn server-side against an upgraded connection and returns the
// first event the client receives.
func dialAck(t *testing.T, fn func(conn *ws.Conn)) ws.AckResponse {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer raw.Close()
		fn(ws.NewConn(raw))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	var ack ws.AckResponse
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := client.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	return ack
}

func TestAckReportsSessionCounters(t *testing.T) {
	sess, questions := startedSession(t)
	if !sess.SetAnswer(questions[0].ID, "42") {
		t.Fatal("SetAnswer must succeed on an in-progress attempt")
	}
	if !sess.ToggleFlag(questions[0].ID) {
		t.Fatal("ToggleFlag must succeed on an in-progress attempt")
	}

	h := &WSHandler{log: zerolog.Nop()}
	ack := dialAck(t, func(conn *ws.Conn) {
		h.ack(conn, sess, ws.ActionAnswer)
	})

	if ack.Event != ws.EventAck {
		t.Fatalf("event = %q, want %q", ack.Event, ws.EventAck)
	}
	if ack.Action != ws.ActionAnswer {
		t.Fatalf("action = %q, want %q", ack.Action, ws.ActionAnswer)
	}
	if ack.AnsweredCount != 1 || ack.FlaggedCount != 1 {
		t.Fatalf("answered/flagged = %d/%d, want 1/1", ack.AnsweredCount, ack.FlaggedCount)
	}
	if ack.CurrentIndex != 0 {
		t.Fatalf("current_index = %d, want 0", ack.CurrentIndex)
	}
}

func TestAckCountersTrackErasedAnswer(t *testing.T) {
	sess, questions := startedSession(t)
	sess.SetAnswer(questions[0].ID, "draft")
	sess.SetAnswer(questions[0].ID, "") // erases it

	h := &WSHandler{log: zerolog.Nop()}
	ack := dialAck(t, func(conn *ws.Conn) {
		h.ack(conn, sess, ws.ActionAnswer)
	})

	if ack.AnsweredCount != 0 {
		t.Fatalf("AnsweredCount = %d, want 0 after erasing the only answer", ack.AnsweredCount)
	}
}
