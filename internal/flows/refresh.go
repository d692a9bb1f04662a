package flows

import (
	"context"
	"time"

	"github.com/calyptra/authcore/internal/stores"
	"github.com/calyptra/authcore/token"
)

// RotateDeps captures refresh-rotation dependencies.
type RotateDeps struct {
	Decode     func(string) (*token.Claims, error)
	Revocation Denylist
	Now        func() time.Time

	// Issue mints the replacement triple for the subject. The engine
	// closure behind it loads the user snapshot and resolves permissions.
	Issue func(ctx context.Context, userID, origin string) (*token.Set, error)

	FailClosed bool
	OnFailOpen func(ctx context.Context, scope string, err error)
}

// RotateResult carries the new triple or a classified failure.
type RotateResult struct {
	Failure FailureKind
	Err     error
	Set     *token.Set
}

// RunRotate validates a refresh token and rotates the whole triple: the old
// refresh token and its session id are denylisted before the new set is
// minted. A brief window where the old triple is already dead and the new one
// not yet returned is accepted; a window where both are valid is not.
func RunRotate(ctx context.Context, rawRefresh string, deps RotateDeps) RotateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	claims, err := deps.Decode(rawRefresh)
	if err != nil {
		return RotateResult{Failure: FailureDecode, Err: err}
	}
	if claims.Type != token.TypeRefresh {
		return RotateResult{Failure: FailureTokenType}
	}

	vdeps := ValidateDeps{
		Revocation: deps.Revocation,
		FailClosed: deps.FailClosed,
		OnFailOpen: deps.OnFailOpen,
	}
	if res := vdeps.revoked(ctx, stores.ScopeToken, stores.HashToken(rawRefresh, string(token.TypeRefresh)), FailureRevokedToken); res != nil {
		return RotateResult{Failure: res.Failure, Err: res.Err}
	}
	if claims.SessionID != "" {
		if res := vdeps.revoked(ctx, stores.ScopeSession, claims.SessionID, FailureRevokedSession); res != nil {
			return RotateResult{Failure: res.Failure, Err: res.Err}
		}
	}
	if res := vdeps.revoked(ctx, stores.ScopeUser, claims.Subject, FailureRevokedUser); res != nil {
		return RotateResult{Failure: res.Failure, Err: res.Err}
	}
	if res := vdeps.revoked(ctx, stores.ScopeRefresh, claims.Subject, FailureRevokedUser); res != nil {
		return RotateResult{Failure: res.Failure, Err: res.Err}
	}

	// Remaining lifetime of the old refresh token bounds every denylist
	// entry written here: the session entry must outlive the longest
	// sibling, and the refresh token is the longest-lived of the three.
	remaining := time.Hour
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Time.Sub(deps.Now())
	}
	if remaining <= 0 {
		return RotateResult{Failure: FailureDecode, Err: token.ErrExpired}
	}

	// Revocation writes fail closed. If the old token cannot be killed,
	// no new one is minted; the unsafe direction would be both alive.
	if err := deps.Revocation.Denylist(ctx, stores.ScopeToken, stores.HashToken(rawRefresh, string(token.TypeRefresh)), remaining); err != nil {
		return RotateResult{Failure: FailureStoreUnavailable, Err: err}
	}
	if claims.SessionID != "" {
		if err := deps.Revocation.Denylist(ctx, stores.ScopeSession, claims.SessionID, remaining); err != nil {
			return RotateResult{Failure: FailureStoreUnavailable, Err: err}
		}
	}

	set, err := deps.Issue(ctx, claims.Subject, claims.Origin)
	if err != nil {
		return RotateResult{Failure: FailureNone, Err: err}
	}
	return RotateResult{Set: set}
}
