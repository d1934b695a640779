package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lissa/commissions-api/pkg/logger"
)

// RequestIDHeader carries the correlation id echoed back to clients
const RequestIDHeader = "X-Request-ID"

// quietPaths are polled often and never logged
var quietPaths = []string{"/api/v1/health", "/swagger/"}

// RequestLogger tags each request with a correlation id and logs its outcome.
// Ledger routes also log the fortnight and broker they touched.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		path := c.Request.URL.Path
		for _, quiet := range quietPaths {
			if strings.HasPrefix(path, quiet) {
				return
			}
		}

		status := c.Writer.Status()
		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(started)),
			slog.String("ip", c.ClientIP()),
		}
		for _, param := range []string{"fortnight_id", "broker_id", "advance_id", "id"} {
			if v := c.Param(param); v != "" {
				attrs = append(attrs, slog.String(param, v))
			}
		}
		if userID, ok := c.Get("userID"); ok {
			attrs = append(attrs, slog.Any("user_id", userID), slog.String("role", GetUserRole(c)))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			attrs = append(attrs, slog.String("error", errs))
		}

		switch {
		case status >= 500:
			logger.Error("request failed", attrs...)
		case status >= 400:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Info("request served", attrs...)
		}
	}
}
