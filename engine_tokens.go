package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calyptra/authcore/internal/flows"
	"github.com/calyptra/authcore/rbac"
	"github.com/calyptra/authcore/token"
)

// IssueTokens mints a fresh token triple for the user, binding it to origin
// when one is given. Stateless: no denylist entries are touched. Login flows
// that previously revoked the user must clear those entries first, which
// [Engine.Login] and [Engine.LoginWithOTP] do.
func (e *Engine) IssueTokens(ctx context.Context, userID, origin string) (*TokenSet, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.userStore.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return e.issueForUser(ctx, user, origin)
}

func (e *Engine) issueForUser(ctx context.Context, user *UserRecord, origin string) (*TokenSet, error) {
	perms, err := e.resolver.PermissionsOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	groups, err := e.resolver.GroupsOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	set, err := e.issuer.Issue(token.IssueInput{
		Profile:     user.Profile(),
		Origin:      origin,
		Permissions: rbac.Codenames(perms),
		Groups:      rbac.GroupCodenames(groups),
	})
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricTokensIssued)
	e.emit(AuditEvent{
		EventType: "token.issued",
		UserID:    user.ID,
		SessionID: set.SessionID,
		Origin:    origin,
		Success:   true,
	})
	return set, nil
}

// Authenticate runs the validation state machine over a presented token and
// returns the normalized principal. Only access and session tokens
// authenticate; refresh tokens are rejected with [ErrInvalidTokenType].
func (e *Engine) Authenticate(ctx context.Context, rawToken, requestOrigin string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if rawToken == "" {
		return nil, ErrNoCredentials
	}

	start := time.Now()
	res := flows.RunValidate(ctx, rawToken, requestOrigin, flows.ValidateDeps{
		Decode:         e.codec.Decode,
		Revocation:     e.revocation,
		FailClosed:     e.config.Security.RevocationFailClosed,
		ProductionMode: e.config.Security.ProductionMode,
		OnFailOpen:     e.onFailOpen,
	})
	e.metrics.Observe(MetricAuthLatency, time.Since(start))

	if res.Failure != flows.FailureNone {
		return nil, e.rejectAuth(res, requestOrigin)
	}

	e.metrics.Inc(MetricAuthSuccess)
	return principalFromClaims(res.Claims), nil
}

// principalFromClaims builds the normalized principal. Session tokens with an
// embedded profile resolve entirely from claims, the fast path that makes
// the design stateless.
func principalFromClaims(claims *token.Claims) *Principal {
	p := &Principal{
		UserID:     claims.Subject,
		SessionID:  claims.SessionID,
		TokenType:  claims.Type,
		IsActive:   claims.IsActive,
		IsVerified: claims.IsVerified,
	}
	if claims.Type == token.TypeSession && claims.Profile != nil {
		p.Profile = claims.Profile
		p.Permissions = claims.Permissions
		p.Groups = claims.Groups
		p.IsActive = claims.Profile.IsActive
		p.IsVerified = claims.Profile.IsVerified
	}
	return p
}

func (e *Engine) rejectAuth(res flows.ValidateResult, requestOrigin string) error {
	switch res.Failure {
	case flows.FailureDecode:
		e.metrics.Inc(MetricAuthFailure)
		return mapDecodeError(res.Err)
	case flows.FailureTokenType:
		e.metrics.Inc(MetricAuthFailure)
		return ErrInvalidTokenType
	case flows.FailureRevokedToken, flows.FailureRevokedSession, flows.FailureRevokedUser:
		e.metrics.Inc(MetricAuthRevoked)
		err := revocationError(res.Failure)
		e.emit(AuditEvent{
			EventType: "auth.revoked",
			UserID:    subjectOf(res.Claims),
			Success:   false,
			Error:     err.Error(),
		})
		return err
	case flows.FailureOrigin:
		e.metrics.Inc(MetricOriginMismatch)
		e.emit(AuditEvent{
			EventType: "auth.origin_mismatch",
			UserID:    subjectOf(res.Claims),
			Origin:    requestOrigin,
			Success:   false,
		})
		return ErrOriginMismatch
	case flows.FailureStoreUnavailable:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		e.metrics.Inc(MetricAuthFailure)
		return ErrTokenMalformed
	}
}

// RotateRefresh exchanges a refresh token for a brand-new triple. The old
// refresh token and its session id are denylisted before anything new is
// minted, so no moment exists where both generations authenticate.
func (e *Engine) RotateRefresh(ctx context.Context, rawRefresh string) (*TokenSet, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if rawRefresh == "" {
		return nil, ErrNoCredentials
	}

	res := flows.RunRotate(ctx, rawRefresh, flows.RotateDeps{
		Decode:     e.codec.Decode,
		Revocation: e.revocation,
		Issue: func(ctx context.Context, userID, origin string) (*token.Set, error) {
			return e.IssueTokens(ctx, userID, origin)
		},
		FailClosed: e.config.Security.RevocationFailClosed,
		OnFailOpen: e.onFailOpen,
	})
	if res.Failure != flows.FailureNone || res.Err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, e.rotateError(res)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emit(AuditEvent{
		EventType: "refresh.rotated",
		SessionID: res.Set.SessionID,
		Success:   true,
	})
	return res.Set, nil
}

func (e *Engine) rotateError(res flows.RotateResult) error {
	switch res.Failure {
	case flows.FailureDecode:
		return mapDecodeError(res.Err)
	case flows.FailureTokenType:
		return ErrInvalidTokenType
	case flows.FailureRevokedToken, flows.FailureRevokedSession, flows.FailureRevokedUser:
		return revocationError(res.Failure)
	case flows.FailureStoreUnavailable:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		return res.Err
	}
}

// Logout revokes everything for the user: the presented access token's
// unique id when one decodes, then all refresh tokens and all sessions. The
// result reports which scopes were written; when any write failed the error
// is [ErrRevocationIncomplete] and the caller must not claim a full logout.
func (e *Engine) Logout(ctx context.Context, userID, rawAccessToken string) (LogoutResult, error) {
	if e == nil {
		return LogoutResult{}, ErrEngineNotReady
	}
	result := flows.RunLogout(ctx, userID, rawAccessToken, flows.LogoutDeps{
		DecodeExpired: e.codec.DecodeExpired,
		Revocation:    e.revocation,
		AccessTTL:     e.config.Token.AccessTTL,
		RefreshTTL:    e.config.Token.RefreshTTL,
	})

	e.metrics.Inc(MetricLogout)
	if !result.Complete() {
		e.metrics.Inc(MetricLogoutPartial)
		e.emit(AuditEvent{
			EventType: "logout.partial",
			UserID:    userID,
			SessionID: result.SessionID,
			Success:   false,
			Error:     result.Errs[0].Error(),
		})
		return result, fmt.Errorf("%w: %v", ErrRevocationIncomplete, result.Errs[0])
	}

	e.emit(AuditEvent{
		EventType: "logout",
		UserID:    userID,
		SessionID: result.SessionID,
		Success:   true,
	})
	return result, nil
}

// LogoutSession revokes one session id, killing that issuance's three
// sibling tokens while leaving other devices signed in.
func (e *Engine) LogoutSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if sessionID == "" {
		return ErrNoCredentials
	}
	if err := flows.RunLogoutSession(ctx, sessionID, flows.LogoutDeps{
		Revocation: e.revocation,
		RefreshTTL: e.config.Token.RefreshTTL,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationIncomplete, err)
	}
	e.emit(AuditEvent{
		EventType: "logout.session",
		SessionID: sessionID,
		Success:   true,
	})
	return nil
}

func mapDecodeError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, token.ErrUnknownType):
		return ErrInvalidTokenType
	default:
		return ErrTokenMalformed
	}
}

func revocationError(kind flows.FailureKind) error {
	switch kind {
	case flows.FailureRevokedSession:
		return ErrSessionRevoked
	case flows.FailureRevokedUser:
		return ErrUserRevoked
	default:
		return ErrTokenRevoked
	}
}

func subjectOf(claims *token.Claims) string {
	if claims == nil {
		return ""
	}
	return claims.Subject
}
