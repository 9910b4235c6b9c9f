// Package endpoint contains the HTTP handlers: authentication, the guarded
// dashboard views, and the bearer-token relays to the upstream backend.
package endpoint

import (
	"github.com/dexavision/admin-console/identity"
	"github.com/dexavision/admin-console/pagination"
	"github.com/dexavision/admin-console/profile"
	"github.com/dexavision/admin-console/session"
	"github.com/dexavision/admin-console/upstream"
)

// Handler carries the collaborators the endpoints act on. Dependencies are
// passed explicitly at wiring time; the handlers keep no other state.
type Handler struct {
	IDP      *identity.Client
	Sessions *session.Manager
	Profiles *profile.Loader
	Grids    *pagination.Registry
	Upstream *upstream.Client
}

// NewHandler wires the endpoint handler.
func NewHandler(idp *identity.Client, sessions *session.Manager, profiles *profile.Loader, grids *pagination.Registry, up *upstream.Client) *Handler {
	return &Handler{
		IDP:      idp,
		Sessions: sessions,
		Profiles: profiles,
		Grids:    grids,
		Upstream: up,
	}
}
