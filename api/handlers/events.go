package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/internal/ctxkeys"
	"github.com/BaSui01/parley/types"
)

// wsWriteTimeout bounds each frame write so one stalled client cannot pin
// the handler goroutine.
const wsWriteTimeout = 10 * time.Second

// HandleEvents streams a session's scheduler events over a WebSocket. The
// stream replays nothing: subscribers see events from the moment they
// connect, and the connection closes normally after session_ended.
// @Summary Stream session events
// @Description WebSocket stream of scheduler events for one session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 101 {string} string "Switching protocols"
// @Failure 404 {object} Response "Unknown session"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{id}/events [get]
func (h *SessionHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "session id is required", h.logger)
		return
	}

	rec, err := h.mgr.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.defaults.WSOrigins,
	})
	if err != nil {
		// Accept already wrote the HTTP error.
		h.logger.Debug("websocket accept failed",
			zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	logger := h.logger.With(zap.String("session_id", id))

	sub := h.mgr.Subscribe(id, h.defaults.EventBuffer)
	defer sub.Close()

	// CloseRead cancels the context when the client goes away; the server
	// never expects inbound frames.
	ctx := conn.CloseRead(ctxkeys.WithSessionID(r.Context(), id))

	if rec.Status.Terminal() {
		h.writeClosingEvent(ctx, conn, rec)
		return
	}

	// The session may have ended between the lookup above and the
	// subscription, in which case session_ended never reaches the queue.
	// Forward whatever the subscription did catch, then close.
	if rec2, err := h.mgr.Get(ctx, id); err == nil && rec2.Status.Terminal() {
		if !h.drainPending(ctx, conn, sub) {
			return
		}
		h.writeClosingEvent(ctx, conn, rec2)
		return
	}

	logger.Debug("event stream opened")
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "stream closed")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				logger.Debug("event stream write failed", zap.Error(err))
				return
			}
			if ev.Type == events.TypeSessionEnded {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
		case <-ctx.Done():
			logger.Debug("event stream client gone",
				zap.Int64("dropped", sub.Dropped()))
			return
		}
	}
}

// drainPending forwards already-queued events without blocking. It reports
// false when the stream finished during the drain, session_ended included.
func (h *SessionHandler) drainPending(ctx context.Context, conn *websocket.Conn, sub *events.Subscription) bool {
	for {
		select {
		case ev := <-sub.C():
			if err := writeEvent(ctx, conn, ev); err != nil {
				return false
			}
			if ev.Type == events.TypeSessionEnded {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return false
			}
		default:
			return true
		}
	}
}

// writeClosingEvent sends one synthetic session_ended frame for sessions
// that were already terminal when the stream opened.
func (h *SessionHandler) writeClosingEvent(ctx context.Context, conn *websocket.Conn, rec *types.SessionRecord) {
	ev := events.Event{
		Type:      events.TypeSessionEnded,
		SessionID: rec.SessionID,
		Status:    rec.Status,
		Reason:    rec.Reason,
		Timestamp: time.Now(),
	}
	if err := writeEvent(ctx, conn, ev); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "session already finished")
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}
