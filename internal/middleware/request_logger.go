package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// loggedParams are the path parameters worth correlating across requests
var loggedParams = []string{"record_id", "user_id", "notification_id", "name"}

// RequestLogger logs one line per request with the matched route, the income
// record or member it addressed and the caller. Health checks are skipped.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if c.FullPath() == "/api/v1/health" {
			return
		}

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
		}
		if raw := c.Request.URL.RawQuery; raw != "" {
			attrs = append(attrs, slog.String("query", raw))
		}
		for _, name := range loggedParams {
			if v := c.Param(name); v != "" {
				attrs = append(attrs, slog.String("param_"+name, v))
			}
		}
		if userID := GetUserID(c); userID != 0 {
			attrs = append(attrs, slog.Uint64("caller_id", uint64(userID)), slog.String("caller_role", GetUserRole(c)))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			attrs = append(attrs, slog.String("error", errs))
		}

		switch {
		case status >= 500:
			logger.Log.Error("request", attrs...)
		case status >= 400:
			logger.Log.Warn("request", attrs...)
		default:
			logger.Log.Info("request", attrs...)
		}
	}
}
