package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuerConfig fixes per-type expiries at construction.
type IssuerConfig struct {
	AccessTTL  time.Duration // short, e.g. 60 minutes
	SessionTTL time.Duration // medium, e.g. 7 days
	RefreshTTL time.Duration // long, e.g. 30 days
}

// Issuer mints the three cooperating tokens of one issuance. It is stateless:
// no storage side effects, ever. Callers that previously denylisted the user
// must clear those entries before issuing, otherwise the fresh tokens are
// immediately treated as revoked.
type Issuer struct {
	codec  *Codec
	config IssuerConfig
	now    func() time.Time
}

// IssueInput carries everything one issuance embeds into its claims. The
// permission and group codenames are resolved by the caller; the issuer never
// queries stores.
type IssueInput struct {
	Profile     Profile
	Origin      string
	Permissions []string
	Groups      []string
}

// Set is one issuance's token triple. All three share SessionID; each token
// carries its own unique id.
type Set struct {
	Access    string
	Refresh   string
	Session   string
	SessionID string

	AccessExpiresAt  time.Time
	SessionExpiresAt time.Time
	RefreshExpiresAt time.Time
}

// NewIssuer returns an issuer minting through codec with the given expiries.
func NewIssuer(codec *Codec, cfg IssuerConfig) *Issuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 60 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{codec: codec, config: cfg, now: time.Now}
}

// Issue builds and signs a fresh triple sharing one new session id.
func (i *Issuer) Issue(in IssueInput) (*Set, error) {
	now := i.now()
	sessionID := uuid.NewString()

	set := &Set{
		SessionID:        sessionID,
		AccessExpiresAt:  now.Add(i.config.AccessTTL),
		SessionExpiresAt: now.Add(i.config.SessionTTL),
		RefreshExpiresAt: now.Add(i.config.RefreshTTL),
	}

	access := i.base(TypeAccess, in, sessionID, now, set.AccessExpiresAt)
	access.IsActive = in.Profile.IsActive
	access.IsVerified = in.Profile.IsVerified

	session := i.base(TypeSession, in, sessionID, now, set.SessionExpiresAt)
	profile := in.Profile
	session.Profile = &profile
	session.Permissions = in.Permissions
	session.Groups = in.Groups

	refresh := i.base(TypeRefresh, in, sessionID, now, set.RefreshExpiresAt)

	var err error
	if set.Access, err = i.codec.Encode(access); err != nil {
		return nil, err
	}
	if set.Session, err = i.codec.Encode(session); err != nil {
		return nil, err
	}
	if set.Refresh, err = i.codec.Encode(refresh); err != nil {
		return nil, err
	}
	return set, nil
}

// AccessTTL reports the configured access-token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.config.AccessTTL }

// SessionTTL reports the configured session-token lifetime.
func (i *Issuer) SessionTTL() time.Duration { return i.config.SessionTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.config.RefreshTTL }

func (i *Issuer) base(typ Type, in IssueInput, sessionID string, now, expires time.Time) *Claims {
	return &Claims{
		Type:      typ,
		SessionID: sessionID,
		Origin:    in.Origin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   in.Profile.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}
