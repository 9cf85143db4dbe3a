package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader carries the request identifier in both directions
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestLoggingMiddleware logs every request once it has been handled
func RequestLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(startTime)),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Time("timestamp", startTime),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if requestID := c.GetString(requestIDKey); requestID != "" {
			fields = append(fields, zap.String(requestIDKey, requestID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request completed with server error", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request completed with client error", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}

// ErrorLoggingMiddleware logs errors attached to the gin context with a
// stack trace
func ErrorLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			logger.Error("Request error occurred",
				zap.Error(err.Err),
				zap.Uint64("error_type", uint64(err.Type)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String(requestIDKey, c.GetString(requestIDKey)),
				zap.Stack("stack_trace"),
			)
		}
	}
}

// RecoveryMiddleware turns handler panics into a 500 response
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String(requestIDKey, c.GetString(requestIDKey)),
					zap.Stack("stack_trace"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    "INTERNAL_ERROR",
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}

// RequestIDMiddleware reuses the caller's request ID or assigns a new one
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
