package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dexavision/admin-console/util"
)

// EndpointCallLogger logs each HTTP request as a security/endpoint event.
// It relies on util.SetSecurityLoggerDB having been called during startup so
// events are persisted to the SecurityLog table.
func EndpointCallLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		userID, email := "", ""
		if sess, ok := GetSession(c); ok {
			userID = sess.UserID
			email = sess.Email
		}

		details := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"raw_path":    c.Request.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"query":       c.Request.URL.RawQuery,
		}

		util.LogSecurityEvent(util.SecurityEvent{
			EventType: util.EventEndpointCall,
			UserID:    userID,
			Email:     email,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Message:   c.Request.Method + " " + c.Request.URL.Path,
			Details:   details,
		})
	}
}
