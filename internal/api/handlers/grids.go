package handlers

import (
	"context"
	"net/http"

	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	"github.com/Conceptual-Machines/beatgrid-api/internal/beatgrid"
	"github.com/Conceptual-Machines/beatgrid-api/internal/logger"
	"github.com/Conceptual-Machines/beatgrid-api/internal/metrics"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// GridBuilder turns backend results into grids and records how they aligned.
type GridBuilder struct {
	defaults   analysis.Defaults
	cloudwatch *metrics.Client
	sentry     *metrics.SentryMetrics
}

func NewGridBuilder(defaults analysis.Defaults, cloudwatch *metrics.Client) *GridBuilder {
	return &GridBuilder{
		defaults:   defaults,
		cloudwatch: cloudwatch,
		sentry:     metrics.NewSentryMetrics(),
	}
}

// GridResponse is a grid plus how well it agrees with detected downbeats
type GridResponse struct {
	Grid              *beatgrid.Grid `json:"grid"`
	DownbeatAgreement *float64       `json:"downbeat_agreement,omitempty"`
}

// Build aligns result and records the outcome
func (b *GridBuilder) Build(ctx context.Context, result *analysis.Result, key analysis.Key) GridResponse {
	grid := analysis.BuildGrid(result, b.defaults)
	resp := GridResponse{Grid: grid}

	agreement := -1.0
	if result != nil && len(result.Downbeats) > 0 {
		agreement = grid.DownbeatAgreement(result.Downbeats)
		resp.DownbeatAgreement = &agreement
	}

	a := grid.Alignment
	logger.LogAlignment(ctx, logger.Fields{
		"video_id":       key.VideoID,
		"padding_count":  a.PaddingCount,
		"shift_count":    a.ShiftCount,
		"chord_anchored": a.ChordAnchored,
		"cells":          grid.Len(),
		"bpm":            grid.BPM,
	})
	b.cloudwatch.RecordAlignment(a.PaddingCount, a.ShiftCount, grid.Len(), a.ChordAnchored)
	b.sentry.RecordAlignment(ctx, a.PaddingCount, a.ShiftCount, grid.Len(), agreement)

	if agreement >= 0 && agreement < lowDownbeatAgreement {
		fields := logger.Fields{
			"video_id":           key.VideoID,
			"downbeat_agreement": agreement,
			"shift_count":        a.ShiftCount,
			"bpm":                grid.BPM,
		}
		logger.Warn("Low downbeat agreement", fields)
		logger.LogToSentry(sentry.LevelWarning, "Low downbeat agreement", fields)
	}

	return resp
}

type GridHandler struct {
	builder *GridBuilder
}

func NewGridHandler(builder *GridBuilder) *GridHandler {
	return &GridHandler{builder: builder}
}

// BuildGrid aligns a posted backend result without storing it
// POST /api/v1/grids
func (h *GridHandler) BuildGrid(c *gin.Context) {
	var result analysis.Result
	if err := c.ShouldBindJSON(&result); err != nil {
		logger.Warn("Invalid analysis payload", logWithError(c, err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.builder.Build(c.Request.Context(), &result, analysis.Key{}))
}

func logWithError(c *gin.Context, err error) logger.Fields {
	fields := logger.WithContext(c)
	fields["error"] = err.Error()
	return fields
}
