package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/dexavision/admin-console/guard"
	"github.com/dexavision/admin-console/pagination"
	"github.com/dexavision/admin-console/profile"
	"github.com/dexavision/admin-console/session"
	"github.com/dexavision/admin-console/util"
)

// GuardDeps bundles the collaborators the guard middlewares act on. Passed
// explicitly at wiring time instead of living as package globals.
type GuardDeps struct {
	Sessions *session.Manager
	Profiles *profile.Loader
	Grids    *pagination.Registry
}

// RequireGuest gates guest-only routes. A signed-in caller is redirected to
// the requested next path (default /dashboard).
func RequireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, hasUser := GetSession(c)
		out := guard.DecideGuest(guard.Input{HasUser: hasUser}, c.Query("next"))
		if out.Redirect != "" {
			util.CallRedirect(c, out.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAuth gates routes that need any signed-in user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, hasUser := GetSession(c)
		out := guard.DecideAuth(guard.Input{HasUser: hasUser}, c.Request.URL.Path)
		if out.Redirect != "" {
			util.CallRedirect(c, out.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin gates the admin area: it resolves the caller's profile and
// runs the admin guard state machine. A signed-in caller whose profile could
// not be loaded gets a retryable 503 panel, never a redirect. A resolved
// non-admin is signed out first and then redirected with the reason code.
func RequireAdmin(deps GuardDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, hasUser := GetSession(c)

		in := guard.Input{HasUser: hasUser}
		if hasUser {
			token := deps.Sessions.Token(c.Request.Context(), sess)
			in.Profile, in.ProfileError = deps.Profiles.Get(c.Request.Context(), sess.ID, token)
		}

		out := guard.DecideAdmin(in, c.Request.URL.Path)
		switch out.State {
		case guard.StateAuthorized:
			c.Next()
			return

		case guard.StateAuthenticatedNoProfile:
			msg := in.ProfileError
			if msg == "" {
				msg = "No se pudo cargar tu perfil"
			}
			util.CallServiceUnavailable(c, util.APIErrorParams{
				Msg: msg,
				Err: fmt.Errorf("profile unavailable"),
			})
			c.Abort()
			return

		case guard.StateUnauthorized:
			// Sign out before redirecting so the login page cannot bounce
			// back into the admin area.
			role := ""
			if in.Profile != nil {
				role = in.Profile.Role
			}
			util.LogNotAdminSignout(sess.UserID, sess.Email, c.ClientIP(), role)
			deps.Profiles.Clear(sess.ID)
			deps.Grids.Drop(sess.ID)
			_ = deps.Sessions.Delete(c.Request.Context(), sess)
			ClearSessionCookie(c)
			util.CallRedirect(c, out.Redirect)
			c.Abort()
			return

		default:
			// Unauthenticated (or still loading, which cannot occur once the
			// request reached us): remember the target and go to login.
			util.LogUnauthorizedAccess("", "", c.ClientIP(), c.Request.URL.Path, "no session")
			util.CallRedirect(c, out.Redirect)
			c.Abort()
			return
		}
	}
}
