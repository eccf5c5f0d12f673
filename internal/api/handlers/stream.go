package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/logger"
	"github.com/Conceptual-Machines/beatgrid-api/internal/playback"
	"github.com/Conceptual-Machines/beatgrid-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 5 * time.Second
)

func newUpgrader(allowOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowOrigin)
		},
	}
}

// originAllowed applies CORS_ALLOW_ORIGIN to websocket handshakes, which
// browsers do not subject to CORS. Non-browser clients send no Origin.
func originAllowed(origin, allowOrigin string) bool {
	if allowOrigin == "" || allowOrigin == "*" || origin == "" {
		return true
	}
	return strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(allowOrigin, "/"))
}

// StreamMessage is a message from the player. Type is "tick" or "seek".
type StreamMessage struct {
	Type        string   `json:"type"`
	CurrentTime *float64 `json:"current_time,omitempty"`
	VisualIndex *int     `json:"visual_index,omitempty"`
	Time        *float64 `json:"time,omitempty"`
}

// StreamEvent is a message to the player
type StreamEvent struct {
	Type  string `json:"type"` // "position" or "error"
	Error string `json:"error,omitempty"`
	*PositionResponse
}

// Stream follows playback over a websocket. Ticks only produce an event when
// the highlighted cell changes; seeks are always answered.
// GET /api/v1/sessions/:id/stream
func (h *SessionHandler) Stream(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", logWithError(c, err))
		return
	}
	defer conn.Close()

	fields := logger.WithContext(c)
	fields["session_id"] = session.ID
	logger.Info("Playback stream opened", fields)

	last := session.Tracker.Current()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Playback stream closed unexpectedly", logWithError(c, err))
			}
			return
		}

		// keep the session alive while the stream is active
		if _, err := h.registry.Get(session.ID); err != nil {
			_ = writeEvent(conn, StreamEvent{Type: "error", Error: "Session not found"})
			return
		}

		event, changed := applyStreamMessage(session, msg, last)
		if event.PositionResponse != nil {
			last = event.CurrentIndex
		}
		if !changed {
			continue
		}
		if err := writeEvent(conn, event); err != nil {
			return
		}
	}
}

// applyStreamMessage updates the tracker and reports whether the player
// should be told about the result.
func applyStreamMessage(session *services.Session, msg StreamMessage, last int) (StreamEvent, bool) {
	switch msg.Type {
	case "tick":
		if msg.CurrentTime == nil || !validPlaybackTime(*msg.CurrentTime) {
			return StreamEvent{Type: "error", Error: "current_time out of range"}, true
		}
		pos := position(session, session.Tracker.Advance(*msg.CurrentTime), nil)
		return StreamEvent{Type: "position", PositionResponse: &pos}, pos.CurrentIndex != last

	case "seek":
		if (msg.VisualIndex == nil) == (msg.Time == nil) {
			return StreamEvent{Type: "error", Error: "exactly one of visual_index or time is required"}, true
		}
		if msg.VisualIndex != nil {
			seekTime, ok := session.Tracker.SeekToIndex(*msg.VisualIndex)
			if !ok {
				return StreamEvent{Type: "error", Error: "cell cannot be highlighted"}, true
			}
			pos := position(session, playback.Position{Index: *msg.VisualIndex, Seeking: true}, &seekTime)
			return StreamEvent{Type: "position", PositionResponse: &pos}, true
		}
		if !validPlaybackTime(*msg.Time) {
			return StreamEvent{Type: "error", Error: "time out of range"}, true
		}
		index := session.Tracker.SeekToTime(*msg.Time)
		pos := position(session, playback.Position{Index: index, Seeking: index >= 0}, msg.Time)
		return StreamEvent{Type: "position", PositionResponse: &pos}, true

	default:
		return StreamEvent{Type: "error", Error: "unknown message type"}, true
	}
}

func writeEvent(conn *websocket.Conn, event StreamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(event)
}
