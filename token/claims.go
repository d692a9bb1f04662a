package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates the three cooperating token kinds. Only access and
// session tokens authenticate requests; refresh tokens are accepted solely by
// the rotation flow.
type Type string

const (
	// TypeAccess is the short-lived credential authorizing API calls.
	TypeAccess Type = "access"
	// TypeRefresh is the long-lived credential used solely to mint a new
	// token triple.
	TypeRefresh Type = "refresh"
	// TypeSession is the medium-lived credential embedding a full profile
	// snapshot, enabling store-free authentication.
	TypeSession Type = "session"
)

// Valid reports whether t is one of the three known token types.
func (t Type) Valid() bool {
	switch t {
	case TypeAccess, TypeRefresh, TypeSession:
		return true
	}
	return false
}

// Profile is the user snapshot embedded into session tokens. It is the whole
// reason the validator's fast path needs no user-store round trip, so it must
// stay small enough to live inside a signed token.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsVerified  bool   `json:"is_verified"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
}

// Claims is the claim set shared by all three token types. Subject, ExpiresAt,
// IssuedAt, ID (the per-token unique id) and Audience come from
// [jwt.RegisteredClaims].
//
// All three tokens of one issuance share SessionID; ID is unique per token.
type Claims struct {
	Type      Type   `json:"typ"`
	SessionID string `json:"sid"`
	Origin    string `json:"origin,omitempty"`

	// Access-token account-status flags for cheap authorization.
	IsActive   bool `json:"act,omitempty"`
	IsVerified bool `json:"vrf,omitempty"`

	// Session-token fast-path payload.
	Profile     *Profile `json:"profile,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	Groups      []string `json:"groups,omitempty"`

	jwt.RegisteredClaims
}
