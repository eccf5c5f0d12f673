package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics handles custom metrics for Sentry
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // Always enabled if Sentry is configured
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordAlignment tags the request transaction with the alignment outcome
func (m *SentryMetrics) RecordAlignment(ctx context.Context, paddingCount, shiftCount, cells int, downbeatAgreement float64) {
	if !m.enabled {
		return
	}

	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("beatgrid.padding", fmt.Sprintf("%d", paddingCount))
		transaction.SetTag("beatgrid.shift", fmt.Sprintf("%d", shiftCount))
		transaction.SetData("beatgrid.cells", cells)
		transaction.SetData("beatgrid.downbeat_agreement", downbeatAgreement)
	}

	span := sentry.StartSpan(ctx, "beatgrid.build")
	defer span.Finish()

	span.SetData("padding_count", paddingCount)
	span.SetData("shift_count", shiftCount)
	span.SetData("cells", cells)
	span.SetData("downbeat_agreement", downbeatAgreement)
	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Grid build: %d cells", cells)
}
