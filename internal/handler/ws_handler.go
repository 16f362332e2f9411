package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/acadex/examroom-backend/internal/clock"
	"github.com/acadex/examroom-backend/internal/config"
	"github.com/acadex/examroom-backend/internal/middleware"
	"github.com/acadex/examroom-backend/internal/service"
	"github.com/acadex/examroom-backend/internal/session"
	ws "github.com/acadex/examroom-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the live exam stream. Each connection owns one in-memory
// attempt session backed by the autosaved Redis state, so a reconnect
// rebuilds exactly where the student left off.
type WSHandler struct {
	examService    *service.ExamService
	sessionService *service.SessionService
	snapshots      *service.RedisSnapshotStore
	clk            clock.Clock
	cfg            *config.Config
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	examService *service.ExamService,
	sessionService *service.SessionService,
	snapshots *service.RedisSnapshotStore,
	clk clock.Clock,
	cfg *config.Config,
	log zerolog.Logger,
) *WSHandler {
	return &WSHandler{
		examService:    examService,
		sessionService: sessionService,
		snapshots:      snapshots,
		clk:            clk,
		cfg:            cfg,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(cfg.AllowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket for the live attempt: answers, flags, navigation,
// violations and submission, with server-side expiry enforcement.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}
	studentID := claims.UserID

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(rawConn)
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	sess, err := h.buildSession(c.Request.Context(), examID, studentID, wsLog)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Session build rejected")
		conn.WriteError("no active attempt for this exam")
		return
	}

	wsLog.Info().Msg("Student connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	saver := session.NewAutosaver(sess, h.snapshots, h.cfg.AutosaveInterval, wsLog)
	go saver.Run(ctx)
	go h.watchExpiry(ctx, conn, sess, wsLog)

	for {
		var msg ws.Request
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, sess, &msg)
		case ws.ActionFlag:
			h.handleFlag(conn, sess, &msg)
		case ws.ActionNavigate:
			h.handleNavigate(conn, sess, &msg)
		case ws.ActionViolation:
			h.handleViolation(ctx, conn, sess, examID, studentID, &msg, wsLog)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{
				Event:            ws.EventPong,
				RemainingSeconds: sess.Remaining().Seconds(),
			})
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, conn, sess, wsLog) {
				return
			}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// buildSession reconstructs the in-memory attempt from the authoritative
// session row and the autosaved answers.
func (h *WSHandler) buildSession(ctx context.Context, examID uuid.UUID, studentID int, log zerolog.Logger) (*session.Session, error) {
	record, err := h.sessionService.VerifyActiveSession(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	exam, err := h.examService.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	saved, err := h.sessionService.SavedAnswers(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	sess := session.New(exam, studentID, h.clk, log)
	sess.Start(record.StartedAt, saved)
	return sess, nil
}

// watchExpiry enforces the deadline server-side. The client may show its own
// countdown but never decides when time is up.
func (h *WSHandler) watchExpiry(ctx context.Context, conn *ws.Conn, sess *session.Session, log zerolog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, fired := sess.ExpireIfDue()
			if !fired {
				continue
			}
			conn.WriteTyped(ws.TimeExpiredResponse{Event: ws.EventTimeExpired})
			h.finalize(ctx, conn, snap, log)
			return
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, sess *session.Session, msg *ws.Request) {
	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		conn.WriteError("invalid q_id format")
		return
	}

	// An empty value is legal: it erases the answer.
	if !sess.SetAnswer(qid, msg.Value) {
		conn.WriteTyped(ws.RejectedResponse{
			Event: ws.EventRejected, Action: msg.Action, Reason: "attempt is not in progress",
		})
		return
	}
	h.ack(conn, sess, msg.Action)
}

func (h *WSHandler) handleFlag(conn *ws.Conn, sess *session.Session, msg *ws.Request) {
	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		conn.WriteError("invalid q_id format")
		return
	}

	if !sess.ToggleFlag(qid) {
		conn.WriteTyped(ws.RejectedResponse{
			Event: ws.EventRejected, Action: msg.Action, Reason: "attempt is not in progress",
		})
		return
	}
	h.ack(conn, sess, msg.Action)
}

func (h *WSHandler) handleNavigate(conn *ws.Conn, sess *session.Session, msg *ws.Request) {
	var ok bool
	switch msg.Direction {
	case "next":
		ok = sess.Next()
	case "prev":
		ok = sess.Prev()
	case "goto":
		ok = sess.GoTo(msg.Index)
	default:
		conn.WriteError("unknown direction: " + msg.Direction)
		return
	}

	if !ok {
		conn.WriteTyped(ws.RejectedResponse{
			Event: ws.EventRejected, Action: msg.Action, Reason: "navigation not allowed",
		})
		return
	}
	h.ack(conn, sess, msg.Action)
}

func (h *WSHandler) handleViolation(ctx context.Context, conn *ws.Conn, sess *session.Session, examID uuid.UUID, studentID int, msg *ws.Request, log zerolog.Logger) {
	count := sess.RecordViolation()
	log.Warn().Str("kind", msg.Kind).Int("count", count).Msg("Violation reported")

	if err := h.sessionService.QueueViolation(ctx, examID, studentID, count); err != nil {
		log.Error().Err(err).Msg("Failed to queue violation")
	}
	h.ack(conn, sess, msg.Action)
}

// ack confirms a state-changing action and reports the current counters so
// the client never tracks them itself.
func (h *WSHandler) ack(conn *ws.Conn, sess *session.Session, action ws.Action) {
	conn.WriteTyped(ws.AckResponse{
		Event:         ws.EventAck,
		Action:        action,
		AnsweredCount: sess.AnsweredCount(),
		FlaggedCount:  sess.FlaggedCount(),
		CurrentIndex:  sess.CurrentIndex(),
	})
}

// handleSubmit ends the attempt on student confirmation. Returns true when
// the stream should close.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, sess *session.Session, log zerolog.Logger) bool {
	snap, ok := sess.Submit()
	if !ok {
		conn.WriteTyped(ws.RejectedResponse{
			Event: ws.EventRejected, Action: ws.ActionSubmit, Reason: "attempt is not in progress",
		})
		return false
	}
	h.finalize(ctx, conn, snap, log)
	return true
}

// finalize is the single exit both submit paths converge on: enqueue the
// snapshot for persistence and tell the client the attempt is over.
func (h *WSHandler) finalize(ctx context.Context, conn *ws.Conn, snap *session.Snapshot, log zerolog.Logger) {
	if err := h.sessionService.FinalizeSubmission(ctx, snap); err != nil {
		// The in-memory transition already happened; all we can do is log
		// and let the client retry over HTTP if the queue is unreachable.
		log.Error().Err(err).Msg("Failed to enqueue submission")
		conn.WriteError("submission could not be persisted")
		return
	}

	answered := 0
	for _, a := range snap.Answers {
		if !a.Empty() {
			answered++
		}
	}
	conn.WriteTyped(ws.SubmittedResponse{
		Event:          ws.EventSubmitted,
		Trigger:        string(snap.Trigger),
		ElapsedSeconds: snap.ElapsedSeconds,
		AnsweredCount:  answered,
	})
}
