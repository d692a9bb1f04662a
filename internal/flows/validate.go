package flows

import (
	"context"
	"time"

	"github.com/calyptra/authcore/internal/stores"
	"github.com/calyptra/authcore/token"
)

// FailureKind classifies flow failures for root-level error mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureDecode
	FailureTokenType
	FailureRevokedToken
	FailureRevokedSession
	FailureRevokedUser
	FailureOrigin
	FailureStoreUnavailable
)

// Denylist is the narrow revocation-store surface the flows need.
type Denylist interface {
	Denylist(ctx context.Context, scope stores.Scope, key string, ttl time.Duration) error
	IsDenylisted(ctx context.Context, scope stores.Scope, key string) (bool, error)
	Clear(ctx context.Context, scope stores.Scope, key string) error
}

// ValidateDeps captures the validation state machine's dependencies.
type ValidateDeps struct {
	Decode     func(string) (*token.Claims, error)
	Revocation Denylist

	// FailClosed turns a Redis error during revocation reads into a
	// rejection. Default posture is fail-open: availability over
	// strictness on the hot path.
	FailClosed     bool
	ProductionMode bool

	// OnFailOpen observes every downgraded revocation read (scope label,
	// underlying error). Wired to warn log + metric + audit by the engine.
	OnFailOpen func(ctx context.Context, scope string, err error)
}

// ValidateResult carries either decoded claims or a classified failure.
type ValidateResult struct {
	Failure FailureKind
	Err     error
	Claims  *token.Claims
}

// RunValidate walks the validation state machine: decode, type check, the
// ordered revocation checks, then origin binding. Profile resolution is the
// caller's concern; the claims carry everything the fast path needs.
//
// The revocation read order is fixed: exact token hash, access unique id,
// session id, user, user refresh-revocation. Hot-path hits come first.
func RunValidate(ctx context.Context, raw, requestOrigin string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Decode(raw)
	if err != nil {
		return ValidateResult{Failure: FailureDecode, Err: err}
	}

	// Refresh tokens never authenticate a request; they are only valid to
	// the rotation flow.
	if claims.Type != token.TypeAccess && claims.Type != token.TypeSession {
		return ValidateResult{Failure: FailureTokenType, Claims: claims}
	}

	if res := deps.revoked(ctx, stores.ScopeToken, stores.HashToken(raw, string(claims.Type)), FailureRevokedToken); res != nil {
		return *res
	}
	if res := deps.revoked(ctx, stores.ScopeAccessID, claims.ID, FailureRevokedToken); res != nil {
		return *res
	}
	if claims.SessionID != "" {
		if res := deps.revoked(ctx, stores.ScopeSession, claims.SessionID, FailureRevokedSession); res != nil {
			return *res
		}
	}
	if res := deps.revoked(ctx, stores.ScopeUser, claims.Subject, FailureRevokedUser); res != nil {
		return *res
	}
	if res := deps.revoked(ctx, stores.ScopeRefresh, claims.Subject, FailureRevokedUser); res != nil {
		return *res
	}

	if claims.Origin != "" {
		tokenOrigin := NormalizeOrigin(claims.Origin)
		reqOrigin := NormalizeOrigin(requestOrigin)
		if !OriginsEquivalent(tokenOrigin, reqOrigin, deps.ProductionMode) {
			return ValidateResult{Failure: FailureOrigin, Claims: claims}
		}
	}

	return ValidateResult{Claims: claims}
}

// revoked performs one denylist read under the fail-open/fail-closed policy.
// Returns nil when the state machine may advance.
func (deps *ValidateDeps) revoked(ctx context.Context, scope stores.Scope, key string, kind FailureKind) *ValidateResult {
	if key == "" {
		return nil
	}
	hit, err := deps.Revocation.IsDenylisted(ctx, scope, key)
	if err != nil {
		if deps.FailClosed {
			return &ValidateResult{Failure: FailureStoreUnavailable, Err: err}
		}
		if deps.OnFailOpen != nil {
			deps.OnFailOpen(ctx, string(scope), err)
		}
		return nil
	}
	if hit {
		return &ValidateResult{Failure: kind}
	}
	return nil
}
