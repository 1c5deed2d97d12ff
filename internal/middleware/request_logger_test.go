package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := logger.Log
	logger.Log = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() { logger.Log = previous })
	return &buf
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.PATCH("/api/v1/matching-income/admin/reject/:record_id", func(c *gin.Context) {
		c.Set("userID", uint(1))
		c.Set("userRole", models.RoleAdmin)
		c.Status(http.StatusConflict)
	})

	for _, path := range []string{"/api/v1/health", "/api/v1/matching-income/admin/reject/42?notify=false"} {
		method := "GET"
		if strings.Contains(path, "reject") {
			method = "PATCH"
		}
		req, _ := http.NewRequest(method, path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "health checks are not logged")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/api/v1/matching-income/admin/reject/:record_id", entry["route"])
	assert.Equal(t, "42", entry["param_record_id"])
	assert.Equal(t, "notify=false", entry["query"])
	assert.Equal(t, float64(1), entry["caller_id"])
	assert.Equal(t, models.RoleAdmin, entry["caller_role"])
	assert.Equal(t, float64(http.StatusConflict), entry["status"])
}
