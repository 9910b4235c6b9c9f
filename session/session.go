// Package session owns the server-side browser sessions: opaque IDs handed
// out in a signed cookie, provider token bundles stored in Redis with an
// in-process fallback, and a fail-soft ID-token accessor that refreshes
// through the identity provider.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/dexavision/admin-console/config"
	"github.com/dexavision/admin-console/identity"
)

// Session is one signed-in browser principal. The identity provider manages
// its own token lifetimes; ExpiresAt bounds the session record itself.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry"`
	ExpiresAt    time.Time `json:"expires_at"`
	ClientIP     string    `json:"client_ip"`
	Browser      string    `json:"browser"`
}

// Manager creates, resolves and destroys sessions. Redis is the primary
// store; when it is unavailable the manager degrades to the in-process cache
// so a misconfigured Redis never locks administrators out.
type Manager struct {
	idp   *identity.Client
	ttl   time.Duration
	local *cache.Cache
	mu    sync.Mutex
}

// NewManager wires a session manager around the identity client.
func NewManager(idp *identity.Client, ttl time.Duration) *Manager {
	return &Manager{
		idp:   idp,
		ttl:   ttl,
		local: cache.New(ttl, 10*time.Minute),
	}
}

func sessionKey(id string) string  { return fmt.Sprintf("session:%s", id) }
func userSetKey(uid string) string { return fmt.Sprintf("user_sessions:%s", uid) }

// Create mints a new session for freshly issued provider credentials.
func (m *Manager) Create(ctx context.Context, creds *identity.Credentials, clientIP, browser string) (*Session, error) {
	sess := &Session{
		ID:           uuid.NewString(),
		UserID:       creds.UserID,
		Email:        creds.Email,
		IDToken:      creds.IDToken,
		RefreshToken: creds.RefreshToken,
		TokenExpiry:  creds.ExpiresAt,
		ExpiresAt:    time.Now().Add(m.ttl),
		ClientIP:     clientIP,
		Browser:      browser,
	}
	if err := m.persist(ctx, sess); err != nil {
		return nil, err
	}
	if rdb := config.GetRedisClient(); rdb != nil {
		if err := rdb.SAdd(ctx, userSetKey(sess.UserID), sess.ID).Err(); err == nil {
			// The set has no TTL and relies on explicit cleanup.
			_ = rdb.Persist(ctx, userSetKey(sess.UserID)).Err()
		}
	}
	return sess, nil
}

// Get resolves a session by ID. Expired records are treated as absent.
func (m *Manager) Get(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	if rdb := config.GetRedisClient(); rdb != nil {
		raw, err := rdb.Get(ctx, sessionKey(id)).Result()
		if err == nil {
			var sess Session
			if jerr := json.Unmarshal([]byte(raw), &sess); jerr == nil && time.Now().Before(sess.ExpiresAt) {
				return &sess, true
			}
			return nil, false
		}
		if err != redis.Nil {
			// Redis unreachable, fall through to the local cache.
			_ = err
		}
	}

	if v, ok := m.local.Get(id); ok {
		if sess, ok := v.(*Session); ok && time.Now().Before(sess.ExpiresAt) {
			return sess, true
		}
	}
	return nil, false
}

// Delete removes the session from both stores and the per-user set.
func (m *Manager) Delete(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	m.local.Delete(sess.ID)

	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	if err := rdb.Del(ctx, sessionKey(sess.ID)).Err(); err != nil {
		return err
	}
	// Remove the ID from the per-user set and drop the set when it empties.
	script := `
		local removed = redis.call('SREM', KEYS[1], ARGV[1])
		if removed > 0 then
			local count = redis.call('SCARD', KEYS[1])
			if count == 0 then
				redis.call('DEL', KEYS[1])
			end
		end
		return removed
	`
	return rdb.Eval(ctx, script, []string{userSetKey(sess.UserID)}, sess.ID).Err()
}

// InvalidateUser deletes every session belonging to a user. Best-effort.
func (m *Manager) InvalidateUser(ctx context.Context, userID string) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	members, err := rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, id := range members {
		_ = rdb.Del(ctx, sessionKey(id)).Err()
		m.local.Delete(id)
	}
	return rdb.Del(ctx, userSetKey(userID)).Err()
}

// Token returns a currently valid provider ID token for the session,
// refreshing through the identity provider when the cached one has expired.
// It fails soft: any refresh problem yields an empty string, never an error,
// so guards can degrade instead of crashing the page.
func (m *Manager) Token(ctx context.Context, sess *Session) string {
	if sess == nil {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.IDToken != "" && time.Now().Add(time.Minute).Before(sess.TokenExpiry) {
		return sess.IDToken
	}
	if sess.RefreshToken == "" || !m.idp.Configured() {
		return ""
	}

	creds, err := m.idp.RefreshIDToken(ctx, sess.RefreshToken)
	if err != nil {
		return ""
	}
	sess.IDToken = creds.IDToken
	sess.TokenExpiry = creds.ExpiresAt
	if creds.RefreshToken != "" {
		sess.RefreshToken = creds.RefreshToken
	}
	// Persist the rotated tokens; a failed write only costs a future refresh.
	_ = m.persist(ctx, sess)
	return sess.IDToken
}

func (m *Manager) persist(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	m.local.Set(sess.ID, sess, ttl)

	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, sessionKey(sess.ID), raw, ttl).Err()
}
