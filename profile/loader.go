// Package profile loads and caches the caller's application profile for the
// lifetime of their session. A non-nil profile implies the session held a
// token at fetch time; sign-out clears the cache entry before the session
// record is destroyed.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/dexavision/admin-console/model"
	"github.com/dexavision/admin-console/upstream"
)

// Human-readable fetch errors surfaced to the retry panel.
const (
	ErrMsgNoToken    = "No hay token de sesión disponible."
	ErrMsgUnexpected = "Respuesta inesperada de /profile."
	ErrMsgGeneric    = "Error cargando perfil."
)

type entry struct {
	profile *model.Profile
	err     string
}

// Loader fetches profiles from the upstream backend and caches them per
// session. Fetch failures cache the error so the guard renders a retry
// panel instead of hammering the backend on every request.
type Loader struct {
	upstream *upstream.Client
	cache    *cache.Cache
	mu       sync.Mutex
}

// NewLoader builds a Loader whose entries live at most ttl.
func NewLoader(up *upstream.Client, ttl time.Duration) *Loader {
	return &Loader{
		upstream: up,
		cache:    cache.New(ttl, 10*time.Minute),
	}
}

// Get returns the session's profile, fetching it on first use. The second
// return value is a human-readable error message; it is non-empty exactly
// when the profile is nil for a reason other than "never asked".
func (l *Loader) Get(ctx context.Context, sessionID, token string) (*model.Profile, string) {
	if v, ok := l.cache.Get(sessionID); ok {
		e := v.(entry)
		return e.profile, e.err
	}
	return l.Refresh(ctx, sessionID, token)
}

// Refresh bypasses the cache and fetches the profile again. Concurrent calls
// are serialized, not deduplicated; the UI must not render a refresh control
// while a load is in flight.
func (l *Loader) Refresh(ctx context.Context, sessionID, token string) (*model.Profile, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.fetch(ctx, token)
	l.cache.Set(sessionID, e, cache.DefaultExpiration)
	return e.profile, e.err
}

// Clear drops the session's cache entry. Must be called before the session
// itself is destroyed so the profile never outlives the session.
func (l *Loader) Clear(sessionID string) {
	l.cache.Delete(sessionID)
}

func (l *Loader) fetch(ctx context.Context, token string) entry {
	if token == "" {
		return entry{err: ErrMsgNoToken}
	}

	p, err := l.upstream.FetchProfile(ctx, token)
	if err == nil {
		return entry{profile: p}
	}

	switch {
	case errors.Is(err, upstream.ErrUnexpectedResponse):
		return entry{err: ErrMsgUnexpected}
	case errors.Is(err, upstream.ErrNotConfigured):
		return entry{err: err.Error()}
	default:
		var serr *upstream.StatusError
		if errors.As(err, &serr) {
			return entry{err: fmt.Sprintf("Error %d cargando perfil.", serr.StatusCode)}
		}
		return entry{err: ErrMsgGeneric}
	}
}
