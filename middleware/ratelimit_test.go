package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"github.com/dexavision/admin-console/config"
	"github.com/dexavision/admin-console/util"
)

func rateLimitedRouter(limit int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/login", RateLimiter(RateLimitConfig{Limit: limit, Window: window}), func(c *gin.Context) {
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "ok"})
	})
	return r
}

func postLogin(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	config.SetRedisClientForTesting(db)
	t.Cleanup(func() { config.SetRedisClientForTesting(nil) })

	key := fmt.Sprintf("ratelimit:%s:%s", "/auth/login", "203.0.113.9")
	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)

	w := postLogin(rateLimitedRouter(3, time.Minute))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	config.SetRedisClientForTesting(db)
	t.Cleanup(func() { config.SetRedisClientForTesting(nil) })

	key := fmt.Sprintf("ratelimit:%s:%s", "/auth/login", "203.0.113.9")
	mock.ExpectIncr(key).SetVal(4)
	mock.ExpectExpire(key, time.Minute).SetVal(true)

	w := postLogin(rateLimitedRouter(3, time.Minute))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestRateLimiter_NoRedisFailsOpen(t *testing.T) {
	config.SetRedisClientForTesting(nil)

	w := postLogin(rateLimitedRouter(1, time.Minute))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResetRateLimit_NoRedis(t *testing.T) {
	config.SetRedisClientForTesting(nil)
	assert.Error(t, ResetRateLimit("203.0.113.9", "/auth/login"))
}
