// Package guard holds the pure access-control state machines gating the
// dashboard routes. Each guard classifies the session/profile state into an
// explicit state and decides what to render and which side effects to run,
// with no HTTP or rendering dependencies, so every combination is
// unit-testable.
package guard

import (
	"net/url"
	"strings"

	"github.com/dexavision/admin-console/model"
)

// State enumerates the resolved guard states.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
	StateAuthenticatedNoProfile
	StateAuthorized
	StateUnauthorized
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthenticatedNoProfile:
		return "authenticated_no_profile"
	case StateAuthorized:
		return "authorized"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Input is the session/profile snapshot a guard decides on.
type Input struct {
	AuthLoading    bool
	HasUser        bool
	ProfileLoading bool
	Profile        *model.Profile
	ProfileError   string
}

// Render says what the guarded route should produce.
type Render int

const (
	RenderChildren Render = iota
	RenderLoading
	RenderPanel
	RenderNothing
)

// Outcome is a guard decision: what to render plus the side effects to run.
// When SignOut is set together with Redirect, the sign-out must complete
// before the redirect is issued, otherwise the login page bounces straight
// back into the guarded area.
type Outcome struct {
	State    State
	Render   Render
	Redirect string
	SignOut  bool
}

// DefaultNextPath is where authenticated users land when no explicit next
// path was requested.
const DefaultNextPath = "/dashboard"

// Classify resolves the raw input into one of the guard states.
func Classify(in Input) State {
	if in.AuthLoading || (in.HasUser && in.ProfileLoading) {
		return StateLoading
	}
	if !in.HasUser {
		return StateUnauthenticated
	}
	if in.Profile == nil {
		return StateAuthenticatedNoProfile
	}
	if in.Profile.IsAdmin() {
		return StateAuthorized
	}
	return StateUnauthorized
}

// DecideGuest gates guest-only routes (the login page). A signed-in caller
// is bounced to the requested next path.
func DecideGuest(in Input, next string) Outcome {
	if in.AuthLoading {
		return Outcome{State: StateLoading, Render: RenderLoading}
	}
	if in.HasUser {
		return Outcome{State: StateAuthenticated, Render: RenderNothing, Redirect: SafeNext(next)}
	}
	return Outcome{State: StateUnauthenticated, Render: RenderChildren}
}

// DecideAuth gates routes that only need a signed-in user. The current path
// is remembered as the post-login return target; when the caller is already
// on the login path the default is used instead.
func DecideAuth(in Input, currentPath string) Outcome {
	if in.AuthLoading {
		return Outcome{State: StateLoading, Render: RenderLoading}
	}
	if !in.HasUser {
		return Outcome{
			State:    StateUnauthenticated,
			Render:   RenderNothing,
			Redirect: LoginRedirect(currentPath),
		}
	}
	return Outcome{State: StateAuthenticated, Render: RenderChildren}
}

// DecideAdmin gates the admin area. A signed-in caller without a loadable
// profile gets an interactive retry panel, never a redirect: the failure may
// be transient. A resolved non-admin profile forces a sign-out and then a
// redirect carrying the reason code.
func DecideAdmin(in Input, currentPath string) Outcome {
	switch Classify(in) {
	case StateLoading:
		return Outcome{State: StateLoading, Render: RenderLoading}
	case StateUnauthenticated:
		return Outcome{
			State:    StateUnauthenticated,
			Render:   RenderNothing,
			Redirect: LoginRedirect(currentPath),
		}
	case StateAuthenticatedNoProfile:
		return Outcome{State: StateAuthenticatedNoProfile, Render: RenderPanel}
	case StateUnauthorized:
		return Outcome{
			State:    StateUnauthorized,
			Render:   RenderNothing,
			SignOut:  true,
			Redirect: "/login?reason=not_admin",
		}
	default:
		return Outcome{State: StateAuthorized, Render: RenderChildren}
	}
}

// SafeNext validates a requested post-login target. Only local absolute
// paths are honored so the login flow can never become an open redirect.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return DefaultNextPath
	}
	return next
}

// LoginRedirect builds the login URL remembering where the caller was
// heading. Falls back to the dashboard when the caller was already on the
// login path.
func LoginRedirect(currentPath string) string {
	next := currentPath
	if next == "" || next == "/login" {
		next = DefaultNextPath
	}
	return "/login?next=" + url.QueryEscape(next)
}
