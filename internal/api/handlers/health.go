package handlers

import (
	"net/http"

	"github.com/Conceptual-Machines/beatgrid-api/internal/database"
	"github.com/Conceptual-Machines/beatgrid-api/internal/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler takes the database handle, or nil when analyses live in memory
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"storage": "memory",
		})
		return
	}

	if err := database.Ping(h.db); err != nil {
		logger.Error("Database health check failed", err, logger.WithContext(c))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"storage":  "postgres",
			"database": "unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"storage":  "postgres",
		"database": "ok",
	})
}
