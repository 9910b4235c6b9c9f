package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/dexavision/admin-console/config"
	"github.com/dexavision/admin-console/identity"
	"github.com/dexavision/admin-console/pagination"
	"github.com/dexavision/admin-console/profile"
	"github.com/dexavision/admin-console/session"
	"github.com/dexavision/admin-console/upstream"
	"github.com/dexavision/admin-console/util"
)

type guardFixture struct {
	router   *gin.Engine
	sessions *session.Manager
	profiles *profile.Loader
	grids    *pagination.Registry
}

// newGuardFixture builds a router with the real guard chain in front of a
// trivial handler, against a fake profile backend.
func newGuardFixture(t *testing.T, profileHandler http.HandlerFunc) *guardFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	util.SetSessionSecret("test-secret-123")
	config.SetRedisClientForTesting(nil)
	t.Cleanup(func() { util.SetSessionSecret("") })

	backend := httptest.NewServer(profileHandler)
	t.Cleanup(backend.Close)

	sessions := session.NewManager(identity.NewClient("", "", ""), time.Hour)
	profiles := profile.NewLoader(upstream.New(backend.URL), time.Hour)
	grids := pagination.NewRegistry(time.Hour)
	deps := GuardDeps{Sessions: sessions, Profiles: profiles, Grids: grids}

	r := gin.New()
	r.Use(SessionResolver(sessions))
	r.GET("/login", RequireGuest(), func(c *gin.Context) {
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "login page"})
	})
	r.GET("/dashboard", RequireAuth(), func(c *gin.Context) {
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "dashboard"})
	})
	r.GET("/dashboard/verificaciones", RequireAdmin(deps), func(c *gin.Context) {
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "grid"})
	})

	return &guardFixture{router: r, sessions: sessions, profiles: profiles, grids: grids}
}

func serveProfileRole(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]string{
				"displayName": "Test User",
				"email":       "user@example.com",
				"role":        role,
				"userId":      "uid-1",
			},
		})
	}
}

// signIn mints a session and returns the signed cookie value.
func (f *guardFixture) signIn(t *testing.T) (*session.Session, string) {
	t.Helper()
	creds := &identity.Credentials{
		UserID:    "uid-1",
		Email:     "user@example.com",
		IDToken:   "id-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	sess, err := f.sessions.Create(context.Background(), creds, "127.0.0.1", "test-agent")
	assert.NoError(t, err)

	cookie, err := util.SignSessionCookie(sess.ID, sess.ExpiresAt)
	assert.NoError(t, err)
	return sess, cookie
}

func (f *guardFixture) get(path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRequireGuest_AllowsAnonymous(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("admin"))
	w := f.get("/login", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireGuest_RedirectsSignedInCaller(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("admin"))
	_, cookie := f.signIn(t)

	w := f.get("/login", cookie)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = f.get("/login?next=%2Fdashboard%2Fverificaciones", cookie)
	assert.Equal(t, "/dashboard/verificaciones", w.Header().Get("Location"))
}

func TestRequireAuth_RedirectsAnonymousWithNextPath(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("admin"))

	w := f.get("/dashboard", "")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", w.Header().Get("Location"))
}

func TestRequireAdmin_AnonymousRedirectsToLoginRememberingTarget(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("admin"))

	w := f.get("/dashboard/verificaciones", "")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login?next=%2Fdashboard%2Fverificaciones", w.Header().Get("Location"))
}

func TestRequireAdmin_GarbageCookieIsAnonymous(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("admin"))

	w := f.get("/dashboard/verificaciones", "tampered-cookie")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login?next=%2Fdashboard%2Fverificaciones", w.Header().Get("Location"))
}

func TestRequireAdmin_AdminPassesThrough(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("admin"))
	_, cookie := f.signIn(t)

	w := f.get("/dashboard/verificaciones", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grid")
}

func TestRequireAdmin_NonAdminIsSignedOutThenRedirected(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("doctor"))
	sess, cookie := f.signIn(t)

	w := f.get("/dashboard/verificaciones", cookie)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login?reason=not_admin", w.Header().Get("Location"))

	// The session must be gone before the redirect was issued.
	_, ok := f.sessions.Get(context.Background(), sess.ID)
	assert.False(t, ok)

	// The expired cookie header must be present.
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			found = true
			assert.Empty(t, c.Value)
			assert.True(t, c.MaxAge < 0)
		}
	}
	assert.True(t, found, "session cookie must be cleared")

	// Replaying the old cookie lands on login, not back in the admin area.
	w = f.get("/dashboard/verificaciones", cookie)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login?next=%2Fdashboard%2Fverificaciones", w.Header().Get("Location"))
}

func TestRequireAdmin_ProfileFailureGetsRetryable503(t *testing.T) {
	f := newGuardFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	sess, cookie := f.signIn(t)

	w := f.get("/dashboard/verificaciones", cookie)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "retryable")
	assert.Contains(t, w.Body.String(), "Error 502 cargando perfil.")

	// The failure must not destroy the session.
	_, ok := f.sessions.Get(context.Background(), sess.ID)
	assert.True(t, ok)
}

func TestSessionResolver_IgnoresExpiredSessions(t *testing.T) {
	f := newGuardFixture(t, serveProfileRole("admin"))

	cookie, err := util.SignSessionCookie("ghost-session", time.Now().Add(time.Hour))
	assert.NoError(t, err)

	// Valid signature but no stored session record.
	w := f.get("/dashboard", cookie)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}
