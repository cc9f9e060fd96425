package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
)

// requestLogger replaces gin's default access log with structured lines.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logging.WithComponent(logger, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
