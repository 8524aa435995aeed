package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLogger registra ogni richiesta con zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
		}
		if message := c.Errors.ByType(gin.ErrorTypePrivate).String(); message != "" {
			fields = append(fields, zap.String("error", message))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("richiesta", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("richiesta", fields...)
		default:
			logger.Debug("richiesta", fields...)
		}
	}
}
