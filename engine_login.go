package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calyptra/authcore/internal/flows"
	"github.com/calyptra/authcore/internal/rate"
	"github.com/calyptra/authcore/internal/stores"
)

// Login verifies a password credential and, on success, clears any standing
// user-level revocation and issues a fresh token triple. Unknown identifiers
// and wrong passwords both return [ErrInvalidCredentials]; the caller learns
// nothing about which accounts exist.
func (e *Engine) Login(ctx context.Context, identifier, plaintext, origin, clientIP string) (*TokenSet, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	identifier = stores.NormalizeIdentifier(identifier)
	if identifier == "" || plaintext == "" {
		return nil, ErrNoCredentials
	}

	if err := e.limiter.CheckLogin(ctx, identifier, clientIP); err != nil {
		return nil, e.loginRateLimited(identifier, origin, err)
	}

	user, err := e.userStore.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, e.loginRejected(ctx, identifier, origin, clientIP, ErrInvalidCredentials)
	}

	ok, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		e.warnf("authcore: stored password hash for user %s is unreadable: %v", user.ID, err)
		return nil, e.loginRejected(ctx, identifier, origin, clientIP, ErrInvalidCredentials)
	}
	if !ok {
		return nil, e.loginRejected(ctx, identifier, origin, clientIP, ErrInvalidCredentials)
	}

	return e.completeLogin(ctx, user, identifier, origin, clientIP, "login.password")
}

// LoginWithOTP verifies a one-time passcode instead of a password. A valid
// code also marks the account verified when it was not.
func (e *Engine) LoginWithOTP(ctx context.Context, identifier, code, origin, clientIP string) (*TokenSet, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	identifier = stores.NormalizeIdentifier(identifier)
	if identifier == "" || code == "" {
		return nil, ErrNoCredentials
	}

	if err := e.VerifyOTP(ctx, identifier, code, true); err != nil {
		if errors.Is(err, ErrOTPInvalid) {
			return nil, e.loginRejected(ctx, identifier, origin, clientIP, ErrOTPInvalid)
		}
		return nil, err
	}

	user, err := e.userStore.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !user.IsVerified {
		if err := e.userStore.UpdateVerification(ctx, user.ID, verificationChannel(identifier)); err != nil {
			e.warnf("authcore: marking user %s verified failed: %v", user.ID, err)
		} else {
			user.IsVerified = true
		}
	}

	return e.completeLogin(ctx, user, identifier, origin, clientIP, "login.otp")
}

// verificationChannel names the channel an OTP login proved ownership of.
func verificationChannel(identifier string) string {
	if strings.Contains(identifier, "@") {
		return "email"
	}
	return "phone"
}

func (e *Engine) completeLogin(ctx context.Context, user *UserRecord, identifier, origin, clientIP, eventType string) (*TokenSet, error) {
	if !user.IsActive {
		e.metrics.Inc(MetricLoginFailure)
		e.emit(AuditEvent{
			EventType:  eventType,
			UserID:     user.ID,
			Identifier: identifier,
			Origin:     origin,
			Success:    false,
			Error:      ErrAccountInactive.Error(),
		})
		return nil, ErrAccountInactive
	}

	// A prior logout-everywhere left user-level denylist entries behind.
	// They must go before issuance or the new tokens are dead on arrival.
	if err := flows.ClearUserRevocations(ctx, user.ID, e.revocation); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	set, err := e.issueForUser(ctx, user, origin)
	if err != nil {
		return nil, err
	}

	if err := e.limiter.ResetLogin(ctx, identifier, clientIP); err != nil {
		e.warnf("authcore: resetting login counters for %s failed: %v", identifier, err)
	}
	if err := e.userStore.UpdateLastSignIn(ctx, user.ID); err != nil {
		e.warnf("authcore: recording last sign-in for user %s failed: %v", user.ID, err)
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emit(AuditEvent{
		EventType:  eventType,
		UserID:     user.ID,
		SessionID:  set.SessionID,
		Identifier: identifier,
		Origin:     origin,
		Success:    true,
	})
	return set, nil
}

func (e *Engine) loginRejected(ctx context.Context, identifier, origin, clientIP string, cause error) error {
	if err := e.limiter.IncrementLogin(ctx, identifier, clientIP); err != nil {
		e.warnf("authcore: login attempt counter for %s failed: %v", identifier, err)
	}
	e.metrics.Inc(MetricLoginFailure)
	e.emit(AuditEvent{
		EventType:  "login.rejected",
		Identifier: identifier,
		Origin:     origin,
		Success:    false,
		Error:      cause.Error(),
	})
	return cause
}

func (e *Engine) loginRateLimited(identifier, origin string, cause error) error {
	if !errors.Is(cause, rate.ErrRateLimited) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}
	e.metrics.Inc(MetricLoginRateLimited)
	e.emit(AuditEvent{
		EventType:  "login.rate_limited",
		Identifier: identifier,
		Origin:     origin,
		Success:    false,
	})
	return ErrLoginRateLimited
}
