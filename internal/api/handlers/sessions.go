package handlers

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	apimiddleware "github.com/Conceptual-Machines/beatgrid-api/internal/api/middleware"
	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
	"github.com/Conceptual-Machines/beatgrid-api/internal/logger"
	"github.com/Conceptual-Machines/beatgrid-api/internal/playback"
	"github.com/Conceptual-Machines/beatgrid-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type SessionHandler struct {
	store        services.AnalysisStore
	registry     *services.SessionRegistry
	builder      *GridBuilder
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewSessionHandler creates the playback handlers. allowOrigin restricts
// which pages may open a stream; "" or "*" allows any.
func NewSessionHandler(store services.AnalysisStore, registry *services.SessionRegistry, builder *GridBuilder, pollInterval time.Duration, allowOrigin string) *SessionHandler {
	return &SessionHandler{
		store:        store,
		registry:     registry,
		builder:      builder,
		pollInterval: pollInterval,
		upgrader:     newUpgrader(allowOrigin),
	}
}

// CreateSessionRequest names a stored analysis or carries one inline
type CreateSessionRequest struct {
	VideoID    string           `json:"video_id"`
	BeatModel  string           `json:"beat_model"`
	ChordModel string           `json:"chord_model"`
	Result     *analysis.Result `json:"result"`
}

type TickRequest struct {
	CurrentTime *float64 `json:"current_time" binding:"required"`
}

// SeekRequest jumps to a cell or to a playback time; exactly one is set
type SeekRequest struct {
	VisualIndex *int     `json:"visual_index"`
	Time        *float64 `json:"time"`
}

type PositionResponse struct {
	CurrentIndex int                `json:"current_index"`
	Cell         *beatgrid.GridCell `json:"cell"`
	SeekTime     *float64           `json:"seek_time,omitempty"`
	SeekActive   bool               `json:"seek_active"`
}

type SessionResponse struct {
	ID             string         `json:"id"`
	Key            analysis.Key   `json:"key"`
	CreatedAt      time.Time      `json:"created_at"`
	PollIntervalMs int64          `json:"poll_interval_ms"`
	Grid           *beatgrid.Grid `json:"grid"`
	PositionResponse
}

// CreateSession starts a playback session
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := analysis.Key{VideoID: req.VideoID, BeatModel: req.BeatModel, ChordModel: req.ChordModel}
	result := req.Result
	if result == nil {
		if !key.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "either result or video_id is required"})
			return
		}
		stored, err := h.store.Get(c.Request.Context(), key)
		if errors.Is(err, services.ErrAnalysisNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
			return
		}
		if err != nil {
			logger.Error("Failed to load analysis for session", err, logWithError(c, err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis"})
			return
		}
		result = stored.Result
	}

	grid := h.builder.Build(c.Request.Context(), result, key).Grid
	userID, _ := apimiddleware.GetUserID(c)
	session := h.registry.Create(grid, key, userID)

	fields := logger.WithContext(c)
	fields["session_id"] = session.ID
	fields["video_id"] = key.VideoID
	fields["owner"] = session.UserID
	fields["cells"] = grid.Len()
	logger.Info("Playback session created", fields)

	c.JSON(http.StatusCreated, h.sessionResponse(session))
}

// GetSession returns the session's grid and position
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session))
}

// Tick reports the player's clock and returns the highlighted cell
// POST /api/v1/sessions/:id/ticks
func (h *SessionHandler) Tick(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validPlaybackTime(*req.CurrentTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_time out of range"})
		return
	}

	pos := session.Tracker.Advance(*req.CurrentTime)
	c.JSON(http.StatusOK, position(session, pos, nil))
}

// Seek records a user jump
// POST /api/v1/sessions/:id/seeks
func (h *SessionHandler) Seek(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.VisualIndex == nil) == (req.Time == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of visual_index or time is required"})
		return
	}

	if req.VisualIndex != nil {
		seekTime, ok := session.Tracker.SeekToIndex(*req.VisualIndex)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cell cannot be highlighted"})
			return
		}
		pos := playback.Position{Index: *req.VisualIndex, Seeking: true}
		c.JSON(http.StatusOK, position(session, pos, &seekTime))
		return
	}

	if !validPlaybackTime(*req.Time) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time out of range"})
		return
	}
	index := session.Tracker.SeekToTime(*req.Time)
	pos := playback.Position{Index: index, Seeking: index >= 0}
	c.JSON(http.StatusOK, position(session, pos, req.Time))
}

// DeleteSession ends a session
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := h.registry.Delete(session.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) lookup(c *gin.Context) (*services.Session, bool) {
	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	// other callers' sessions look the same as missing ones
	userID, _ := apimiddleware.GetUserID(c)
	if !session.OwnedBy(userID) {
		fields := logger.WithContext(c)
		fields["session_id"] = session.ID
		logger.Warn("Session accessed by another caller", fields)
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) sessionResponse(s *services.Session) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		Key:              s.Key,
		CreatedAt:        s.CreatedAt,
		PollIntervalMs:   h.pollInterval.Milliseconds(),
		Grid:             s.Grid(),
		PositionResponse: position(s, s.Tracker.Position(), nil),
	}
}

// position renders a tracker position taken under a single lock.
func position(s *services.Session, pos playback.Position, seekTime *float64) PositionResponse {
	resp := PositionResponse{CurrentIndex: pos.Index, SeekTime: seekTime, SeekActive: pos.Seeking}
	if grid := s.Grid(); pos.Index >= 0 && pos.Index < grid.Len() {
		cell := grid.Cells[pos.Index]
		resp.Cell = &cell
	}
	return resp
}

func validPlaybackTime(t float64) bool {
	return !math.IsNaN(t) && !math.IsInf(t, 0) && t >= 0 && t <= maxPlaybackSeconds
}
