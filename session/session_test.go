package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"github.com/dexavision/admin-console/config"
	"github.com/dexavision/admin-console/identity"
)

func testCreds() *identity.Credentials {
	return &identity.Credentials{
		UserID:       "uid-1",
		Email:        "admin@example.com",
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func withoutRedis(t *testing.T) {
	t.Helper()
	config.SetRedisClientForTesting(nil)
	t.Cleanup(func() { config.SetRedisClientForTesting(nil) })
}

func TestCreateAndGet_LocalFallback(t *testing.T) {
	withoutRedis(t)
	m := NewManager(identity.NewClient("", "", ""), time.Hour)

	sess, err := m.Create(context.Background(), testCreds(), "10.0.0.1", "test-agent")
	assert.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "uid-1", sess.UserID)

	got, ok := m.Get(context.Background(), sess.ID)
	assert.True(t, ok)
	assert.Equal(t, sess.Email, got.Email)

	_, ok = m.Get(context.Background(), "no-such-session")
	assert.False(t, ok)
	_, ok = m.Get(context.Background(), "")
	assert.False(t, ok)
}

func TestDelete_LocalFallback(t *testing.T) {
	withoutRedis(t)
	m := NewManager(identity.NewClient("", "", ""), time.Hour)

	sess, err := m.Create(context.Background(), testCreds(), "10.0.0.1", "test-agent")
	assert.NoError(t, err)

	assert.NoError(t, m.Delete(context.Background(), sess))
	_, ok := m.Get(context.Background(), sess.ID)
	assert.False(t, ok)

	assert.NoError(t, m.Delete(context.Background(), nil))
}

func TestGet_RedisRecord(t *testing.T) {
	db, mock := redismock.NewClientMock()
	config.SetRedisClientForTesting(db)
	t.Cleanup(func() { config.SetRedisClientForTesting(nil) })

	m := NewManager(identity.NewClient("", "", ""), time.Hour)
	sess := &Session{
		ID:        "sid-1",
		UserID:    "uid-1",
		Email:     "admin@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	raw, _ := json.Marshal(sess)
	mock.ExpectGet("session:sid-1").SetVal(string(raw))

	got, ok := m.Get(context.Background(), "sid-1")
	assert.True(t, ok)
	assert.Equal(t, "uid-1", got.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_RedisExpiredRecordIsAbsent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	config.SetRedisClientForTesting(db)
	t.Cleanup(func() { config.SetRedisClientForTesting(nil) })

	m := NewManager(identity.NewClient("", "", ""), time.Hour)
	sess := &Session{ID: "sid-1", ExpiresAt: time.Now().Add(-time.Minute)}
	raw, _ := json.Marshal(sess)
	mock.ExpectGet("session:sid-1").SetVal(string(raw))

	_, ok := m.Get(context.Background(), "sid-1")
	assert.False(t, ok)
}

func TestToken_ServesUnexpiredTokenWithoutRefresh(t *testing.T) {
	withoutRedis(t)
	m := NewManager(identity.NewClient("", "", ""), time.Hour)

	sess := &Session{
		ID:          "sid-1",
		IDToken:     "current-token",
		TokenExpiry: time.Now().Add(30 * time.Minute),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	assert.Equal(t, "current-token", m.Token(context.Background(), sess))
}

func TestToken_RefreshesExpiredToken(t *testing.T) {
	withoutRedis(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":      "fresh-token",
			"refresh_token": "rotated-refresh",
			"expires_in":    "3600",
			"user_id":       "uid-1",
		})
	}))
	defer srv.Close()

	m := NewManager(identity.NewClient("key", srv.URL, srv.URL), time.Hour)
	sess := &Session{
		ID:           "sid-1",
		UserID:       "uid-1",
		IDToken:      "stale-token",
		RefreshToken: "old-refresh",
		TokenExpiry:  time.Now().Add(-time.Minute),
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	assert.Equal(t, "fresh-token", m.Token(context.Background(), sess))
	assert.Equal(t, "rotated-refresh", sess.RefreshToken)

	// The refreshed session must be resolvable again.
	got, ok := m.Get(context.Background(), "sid-1")
	assert.True(t, ok)
	assert.Equal(t, "fresh-token", got.IDToken)
}

func TestToken_FailsSoft(t *testing.T) {
	withoutRedis(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"TOKEN_EXPIRED"}}`))
	}))
	defer srv.Close()

	m := NewManager(identity.NewClient("key", srv.URL, srv.URL), time.Hour)

	assert.Empty(t, m.Token(context.Background(), nil))

	expired := &Session{IDToken: "stale", RefreshToken: "rt", TokenExpiry: time.Now().Add(-time.Minute)}
	assert.Empty(t, m.Token(context.Background(), expired), "refresh failure yields empty, not an error")

	noRefresh := &Session{IDToken: "stale", TokenExpiry: time.Now().Add(-time.Minute)}
	mUnconfigured := NewManager(identity.NewClient("", "", ""), time.Hour)
	assert.Empty(t, mUnconfigured.Token(context.Background(), noRefresh))
}
