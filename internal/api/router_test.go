package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Conceptual-Machines/beatgrid-api/internal/config"
	"github.com/Conceptual-Machines/beatgrid-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(authMode string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		AuthMode:             authMode,
		JWTSecret:            "secret",
		DefaultBPM:           120,
		DefaultTimeSignature: 4,
		PollInterval:         50 * time.Millisecond,
		CORSOrigin:           "*",
	}
	return SetupRouter(Dependencies{
		Store:    services.NewMemoryAnalysisStore(),
		Sessions: services.NewSessionRegistry(time.Minute),
	}, cfg, "test")
}

const gridBody = `{"beats":[0.0,0.5,1.0,1.5],"synchronizedChords":[{"chord":"C","beatIndex":0},{"chord":"F","beatIndex":2}]}`

func TestSetupRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter("none")

	for _, path := range []string{"/health", "/api/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestSetupRouter_AuthModes(t *testing.T) {
	tests := []struct {
		mode    string
		headers map[string]string
		status  int
	}{
		{"none", nil, http.StatusOK},
		{"gateway", nil, http.StatusUnauthorized},
		{"gateway", map[string]string{"X-User-ID": "7"}, http.StatusOK},
		{"jwt", nil, http.StatusUnauthorized},
		{"jwt", map[string]string{"Authorization": "Bearer not-a-token"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			r := newTestRouter(tt.mode)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/grids", strings.NewReader(gridBody))
			req.Header.Set("Content-Type", "application/json")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
