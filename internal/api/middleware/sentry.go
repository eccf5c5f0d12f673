package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/logger"
	"github.com/Conceptual-Machines/beatgrid-api/internal/metrics"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-ID"
	sentryFlushTimeout = 2 * time.Second

	// Routes polled by players while a track plays
	tickRoute   = "/api/v1/sessions/:id/ticks"
	streamRoute = "/api/v1/sessions/:id/stream"
)

var sentryMetrics = metrics.NewSentryMetrics()

// RequestTracking assigns a request ID, tags the request with the session or
// video it touches and logs its completion. cloudwatch may be nil.
func RequestTracking(cloudwatch *metrics.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		tags := playbackTags(c)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			for k, v := range tags {
				hub.Scope().SetTag(k, v)
			}
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := logger.Fields{
			"request_id":  requestID,
			"duration_ms": duration.Milliseconds(),
			"status_code": status,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       route,
			"client_ip":   c.ClientIP(),
		}
		for k, v := range tags {
			fields[k] = v
		}

		switch requestLevel(route, status) {
		case sentry.LevelError:
			logger.Error("Request failed with server error", nil, fields)
		case sentry.LevelWarning:
			logger.Warn("Request failed with client error", fields)
		case sentry.LevelDebug:
			logger.Debug("Playback tick", fields)
		default:
			logger.Info("Request completed", fields)
		}

		sentryMetrics.RecordAPIRequest(c.Request.Context(), route, status, duration)
		cloudwatch.RecordAPIRequest(route, status, duration)
	}
}

// playbackTags returns the session and video a request addresses, if any.
func playbackTags(c *gin.Context) map[string]string {
	tags := make(map[string]string, 2)
	if id := c.Param("videoId"); id != "" {
		tags["video_id"] = id
	}
	if id := c.Param("id"); id != "" && strings.Contains(c.FullPath(), "/sessions/") {
		tags["session_id"] = id
	}
	return tags
}

// requestLevel picks the log level for a finished request. Successful ticks
// arrive several times a second per player and are logged at debug.
func requestLevel(route string, status int) sentry.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return sentry.LevelError
	case status >= http.StatusBadRequest:
		return sentry.LevelWarning
	case route == tickRoute || route == streamRoute:
		return sentry.LevelDebug
	default:
		return sentry.LevelInfo
	}
}

// SentryMiddleware returns the Sentry middleware with custom configuration
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         sentryFlushTimeout,
	})
}

// RecoverWithSentry turns a handler panic into a 500 carrying the request ID
// and reports it with the caller and playback session attached.
func RecoverWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			requestID := c.GetString("request_id")
			tags := playbackTags(c)

			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(c.Request)
					scope.SetTag("request_id", requestID)
					scope.SetTags(tags)
					if userID, ok := GetUserID(c); ok {
						scope.SetUser(sentry.User{ID: userID})
					}
					hub.RecoverWithContext(c.Request.Context(), recovered)
				})
			}

			fields := logger.Fields{
				"request_id": requestID,
				"error":      recovered,
				"path":       c.Request.URL.Path,
			}
			for k, v := range tags {
				fields[k] = v
			}
			logger.Error("Panic recovered", nil, fields)

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": requestID,
			})
		}()
		c.Next()
	}
}
