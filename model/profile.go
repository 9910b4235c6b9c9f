package model

// RoleAdmin is the only role allowed through the admin guard.
const RoleAdmin = "admin"

// Profile is the caller's application-level user record, distinct from the
// identity provider's account object. Fetched fresh per session from the
// upstream backend.
type Profile struct {
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// IsAdmin reports whether the profile passes the admin guard.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
