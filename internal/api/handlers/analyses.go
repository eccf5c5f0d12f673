package handlers

import (
	"errors"
	"net/http"

	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	"github.com/Conceptual-Machines/beatgrid-api/internal/logger"
	"github.com/Conceptual-Machines/beatgrid-api/internal/services"
	"github.com/gin-gonic/gin"
)

type AnalysisHandler struct {
	store   services.AnalysisStore
	builder *GridBuilder
}

func NewAnalysisHandler(store services.AnalysisStore, builder *GridBuilder) *AnalysisHandler {
	return &AnalysisHandler{store: store, builder: builder}
}

func keyFromRequest(c *gin.Context) analysis.Key {
	return analysis.Key{
		VideoID:    c.Param("videoId"),
		BeatModel:  c.Query(queryBeatModel),
		ChordModel: c.Query(queryChordModel),
	}
}

// PutAnalysis stores a backend result for a video and model pair
// PUT /api/v1/analyses/:videoId
func (h *AnalysisHandler) PutAnalysis(c *gin.Context) {
	key := keyFromRequest(c)
	if !key.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video id is required"})
		return
	}

	var result analysis.Result
	if err := c.ShouldBindJSON(&result); err != nil {
		logger.Warn("Invalid analysis payload", logWithError(c, err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// the payload's own model names fill in what the query left out
	if key.BeatModel == "" {
		key.BeatModel = result.BeatModel
	}
	if key.ChordModel == "" {
		key.ChordModel = result.ChordModel
	}

	stored, err := h.store.Save(c.Request.Context(), key, &result)
	if err != nil {
		fields := logger.WithContext(c)
		fields["video_id"] = key.VideoID
		logger.Error("Failed to save analysis", err, fields)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save analysis"})
		return
	}

	resp := h.builder.Build(c.Request.Context(), stored.Result, key)
	c.JSON(http.StatusOK, gin.H{
		"key":                stored.Key,
		"updated_at":         stored.UpdatedAt,
		"grid":               resp.Grid,
		"downbeat_agreement": resp.DownbeatAgreement,
	})
}

// GetAnalysis returns a stored result with its rebuilt grid
// GET /api/v1/analyses/:videoId
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	key := keyFromRequest(c)
	if !key.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video id is required"})
		return
	}

	stored, err := h.store.Get(c.Request.Context(), key)
	if errors.Is(err, services.ErrAnalysisNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}
	if err != nil {
		fields := logger.WithContext(c)
		fields["video_id"] = key.VideoID
		logger.Error("Failed to load analysis", err, fields)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis"})
		return
	}

	resp := h.builder.Build(c.Request.Context(), stored.Result, key)
	c.JSON(http.StatusOK, gin.H{
		"key":                stored.Key,
		"updated_at":         stored.UpdatedAt,
		"result":             stored.Result,
		"grid":               resp.Grid,
		"downbeat_agreement": resp.DownbeatAgreement,
	})
}

// DeleteAnalysis removes a stored result
// DELETE /api/v1/analyses/:videoId
func (h *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	key := keyFromRequest(c)
	err := h.store.Delete(c.Request.Context(), key)
	if errors.Is(err, services.ErrAnalysisNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}
	if err != nil {
		logger.Error("Failed to delete analysis", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete analysis"})
		return
	}
	c.Status(http.StatusNoContent)
}
