package flows

import (
	"context"
	"time"

	"github.com/calyptra/authcore/internal/stores"
	"github.com/calyptra/authcore/token"
)

// LogoutDeps captures logout revocation dependencies.
type LogoutDeps struct {
	// DecodeExpired is the best-effort parse: an access token past its
	// expiry still yields its unique id for precise revocation.
	DecodeExpired func(string) (*token.Claims, error)
	Revocation    Denylist
	Now           func() time.Time

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// LogoutResult reports which revocation scopes were written. Callers use it
// to tell the user "all sessions revoked" versus "some tokens may still be
// active"; a failed write is a partial success, never silently swallowed.
type LogoutResult struct {
	AccessRevoked   bool
	RefreshRevoked  bool
	SessionsRevoked bool
	SessionID       string
	Errs            []error
}

// Complete reports whether every attempted revocation write succeeded.
func (r LogoutResult) Complete() bool { return len(r.Errs) == 0 }

// RunLogout revokes everything for the user: the presented access token by
// unique id (when one decodes), then all refresh tokens and all sessions for
// the subject. One logout call always logs out every device.
func RunLogout(ctx context.Context, userID, rawAccess string, deps LogoutDeps) LogoutResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	var result LogoutResult

	if rawAccess != "" {
		// Best effort: a malformed or foreign token must not fail the
		// whole logout, the user-level wipe below covers it anyway.
		if claims, err := deps.DecodeExpired(rawAccess); err == nil && claims.ID != "" {
			result.SessionID = claims.SessionID
			ttl := deps.AccessTTL
			if claims.ExpiresAt != nil {
				if remaining := claims.ExpiresAt.Time.Sub(deps.Now()); remaining > ttl {
					ttl = remaining
				}
			}
			if err := deps.Revocation.Denylist(ctx, stores.ScopeAccessID, claims.ID, ttl); err != nil {
				result.Errs = append(result.Errs, err)
			} else {
				result.AccessRevoked = true
			}
		}
	}

	// User-level entries must outlive the longest-lived outstanding token,
	// which is the refresh token.
	if err := deps.Revocation.Denylist(ctx, stores.ScopeRefresh, userID, deps.RefreshTTL); err != nil {
		result.Errs = append(result.Errs, err)
	} else {
		result.RefreshRevoked = true
	}
	if err := deps.Revocation.Denylist(ctx, stores.ScopeUser, userID, deps.RefreshTTL); err != nil {
		result.Errs = append(result.Errs, err)
	} else {
		result.SessionsRevoked = true
	}

	return result
}

// RunLogoutSession revokes a single session id, killing that issuance's three
// sibling tokens while leaving the user's other devices signed in.
func RunLogoutSession(ctx context.Context, sessionID string, deps LogoutDeps) error {
	return deps.Revocation.Denylist(ctx, stores.ScopeSession, sessionID, deps.RefreshTTL)
}

// ClearUserRevocations drops the user-level denylist entries so a fresh
// issuance is not instantly treated as revoked. Login calls this before the
// issuer runs.
func ClearUserRevocations(ctx context.Context, userID string, revocation Denylist) error {
	if err := revocation.Clear(ctx, stores.ScopeUser, userID); err != nil {
		return err
	}
	return revocation.Clear(ctx, stores.ScopeRefresh, userID)
}
