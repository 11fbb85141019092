package handlers

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"delegate-api/internal/logger"
)

// RequestLog represents a structured log entry for an HTTP request
type RequestLog struct {
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Query     string    `json:"query"`
	UserAgent string    `json:"user_agent"`
	ClientIP  string    `json:"client_ip"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// LogRequest logs request details outside release mode. The body is re-read
// into the context so downstream binding still works.
func LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body string
		if c.Request.Body != nil {
			raw, err := io.ReadAll(c.Request.Body)
			if err == nil {
				body = string(raw)
				c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
			}
		}

		entry := RequestLog{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Query:     c.Request.URL.RawQuery,
			UserAgent: c.Request.UserAgent(),
			ClientIP:  c.ClientIP(),
			Body:      body,
			Timestamp: time.Now().UTC(),
		}
		logger.Debug("Incoming request",
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.String("query", entry.Query),
			zap.String("client_ip", entry.ClientIP),
			zap.String("body", entry.Body),
		)

		c.Next()
	}
}
