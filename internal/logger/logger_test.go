package logger

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFields(t *testing.T) {
	tests := []struct {
		name     string
		fields   Fields
		expected string
	}{
		{"empty", Fields{}, ""},
		{"nil", nil, ""},
		{"sorted keys", Fields{"shift": 1, "bpm": 120.0, "video_id": "abc"}, "{bpm=120.00, shift=1, video_id=abc}"},
		{"int64 and bool", Fields{"duration_ms": int64(12), "anchored": true}, "{anchored=true, duration_ms=12}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFields(tt.fields))
		})
	}
}

func TestWithContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/grids", nil)
	c.Set("request_id", "req-1")
	c.Set("user_id_str", "42")

	fields := WithContext(c)

	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/grids", fields["path"])
	assert.Equal(t, "42", fields["user_id"])
}

func TestLoggingWithoutSentryClient(t *testing.T) {
	// No Sentry client is configured in tests; these must not panic
	assert.NotPanics(t, func() {
		Info("info", Fields{"a": 1})
		Warn("warn", nil)
		Debug("debug", Fields{})
		Error("error", errors.New("boom"), Fields{"request_id": "r"})
		Error("error without cause", nil, nil)
	})
}

func TestLogToSentry(t *testing.T) {
	var captured []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		SampleRate: 1.0,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			captured = append(captured, event)
			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.CurrentHub()
	previous := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(previous) })

	LogToSentry(sentry.LevelWarning, "Low downbeat agreement", Fields{
		"video_id":           "abc123",
		"downbeat_agreement": 0.25,
	})

	require.Len(t, captured, 1)
	assert.Equal(t, "Low downbeat agreement", captured[0].Message)
	assert.Equal(t, sentry.LevelWarning, captured[0].Level)
	assert.Equal(t, "abc123", captured[0].Tags["video_id"])
	assert.Contains(t, captured[0].Contexts, "downbeat_agreement")
}
