package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dexavision/admin-console/session"
	"github.com/dexavision/admin-console/util"
)

const (
	dbContextKey      = "db"
	sessionContextKey = "session"

	// SessionCookieName carries the signed session ID.
	SessionCookieName = "dexa_session"
)

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE, PUT")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Content-Type", "application/json")

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// DatabaseMiddleware injects the audit-log DB handle into the request context.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(dbContextKey, db)
		c.Next()
	}
}

// GetDB returns the request-scoped DB handle (nil when absent).
func GetDB(c *gin.Context) *gorm.DB {
	v, ok := c.Get(dbContextKey)
	if !ok {
		return nil
	}
	db, ok := v.(*gorm.DB)
	if !ok {
		return nil
	}
	return db
}

// SessionResolver resolves the signed session cookie into a session record
// and stores it in the request context. Missing or invalid cookies resolve
// to no session; the guards decide what that means per route.
func SessionResolver(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(SessionCookieName)
		if err == nil && value != "" {
			if sid, perr := util.ParseSessionCookie(value); perr == nil {
				if sess, ok := mgr.Get(c.Request.Context(), sid); ok {
					c.Set(sessionContextKey, sess)
				}
			}
		}
		c.Next()
	}
}

// GetSession returns the resolved session, if any.
func GetSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	if !ok || sess == nil {
		return nil, false
	}
	return sess, true
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(c *gin.Context) {
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
}
