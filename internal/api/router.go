package api

import (
	"github.com/Conceptual-Machines/beatgrid-api/internal/analysis"
	"github.com/Conceptual-Machines/beatgrid-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/beatgrid-api/internal/api/middleware"
	"github.com/Conceptual-Machines/beatgrid-api/internal/config"
	"github.com/Conceptual-Machines/beatgrid-api/internal/metrics"
	"github.com/Conceptual-Machines/beatgrid-api/internal/middleware"
	"github.com/Conceptual-Machines/beatgrid-api/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the long-lived services the routes share.
// DB is nil when analyses are kept in memory.
type Dependencies struct {
	DB         *gorm.DB
	Store      services.AnalysisStore
	Sessions   *services.SessionRegistry
	CloudWatch *metrics.Client
}

func SetupRouter(deps Dependencies, cfg *config.Config, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.CloudWatch))

	// CORS middleware
	router.Use(apimiddleware.CORS(cfg.CORSOrigin))

	// Health check
	healthHandler := handlers.NewHealthHandler(deps.DB)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	storage := "memory"
	if deps.DB != nil {
		storage = "postgres"
	}
	metricsHandler := handlers.NewMetricsHandler(version, deps.Sessions, storage)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	builder := handlers.NewGridBuilder(analysis.Defaults{
		BPM:           cfg.DefaultBPM,
		TimeSignature: cfg.DefaultTimeSignature,
	}, deps.CloudWatch)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(cfg))
	{
		gridHandler := handlers.NewGridHandler(builder)
		v1.POST("/grids", gridHandler.BuildGrid)

		analysisHandler := handlers.NewAnalysisHandler(deps.Store, builder)
		v1.PUT("/analyses/:videoId", analysisHandler.PutAnalysis)
		v1.GET("/analyses/:videoId", analysisHandler.GetAnalysis)
		v1.DELETE("/analyses/:videoId", analysisHandler.DeleteAnalysis)

		sessionHandler := handlers.NewSessionHandler(deps.Store, deps.Sessions, builder, cfg.PollInterval, cfg.CORSOrigin)
		v1.POST("/sessions", sessionHandler.CreateSession)
		v1.GET("/sessions/:id", sessionHandler.GetSession)
		v1.POST("/sessions/:id/ticks", sessionHandler.Tick)
		v1.POST("/sessions/:id/seeks", sessionHandler.Seek)
		v1.GET("/sessions/:id/stream", sessionHandler.Stream)
		v1.DELETE("/sessions/:id", sessionHandler.DeleteSession)
	}

	return router
}

func authMiddleware(cfg *config.Config) gin.HandlerFunc {
	switch {
	case cfg.IsGatewayMode():
		return apimiddleware.GatewayAuth()
	case cfg.IsJWTMode():
		return middleware.JWTAuth(cfg)
	default:
		return apimiddleware.NoAuth()
	}
}
