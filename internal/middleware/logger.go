package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		}
		if uid := GetUserID(c); uid != 0 {
			attrs = append(attrs, "user_id", uid, "company_id", GetCompanyID(c))
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", attrs...)
		case len(c.Errors) > 0:
			log.Warn("request", append(attrs, "error", c.Errors.String())...)
		default:
			log.Info("request", attrs...)
		}
	}
}
