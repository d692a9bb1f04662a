package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/calyptra/authcore/internal"
	"github.com/calyptra/authcore/internal/rate"
	"github.com/calyptra/authcore/internal/stores"
)

// RequestOTP generates a fresh passcode for the identifier and stores it
// under the configured TTL, replacing any code still pending. The code is
// returned to the caller for delivery; the engine never sends anything.
func (e *Engine) RequestOTP(ctx context.Context, identifier string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	identifier = stores.NormalizeIdentifier(identifier)
	if identifier == "" {
		return "", ErrNoCredentials
	}

	if err := e.limiter.CheckOTPIssue(ctx, identifier); err != nil {
		return "", e.otpRateLimited(identifier, "otp.requested", err)
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return "", err
	}
	if err := e.otpStore.Save(ctx, identifier, code, e.config.OTP.DefaultTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricOTPIssued)
	e.emit(AuditEvent{
		EventType:  "otp.requested",
		Identifier: identifier,
		Success:    true,
	})
	return code, nil
}

// VerifyOTP checks a presented passcode. The master code, when configured
// and permitted, matches before the store is consulted and leaves any
// pending real code untouched. With consume set, a correct stored code is
// deleted and will not verify twice; without it the code is preserved for a
// later step. A wrong code consumes nothing either way.
func (e *Engine) VerifyOTP(ctx context.Context, identifier, code string, consume bool) error {
	if e == nil {
		return ErrEngineNotReady
	}
	identifier = stores.NormalizeIdentifier(identifier)
	if identifier == "" || code == "" {
		return ErrNoCredentials
	}

	if e.masterOTPMatches(code) {
		e.metrics.Inc(MetricOTPMasterUsed)
		e.metrics.Inc(MetricOTPVerified)
		e.emit(AuditEvent{
			EventType:  "otp.master_used",
			Identifier: identifier,
			Success:    true,
		})
		return nil
	}

	if err := e.limiter.CheckOTPVerify(ctx, identifier); err != nil {
		return e.otpRateLimited(identifier, "otp.verified", err)
	}
	if err := e.limiter.IncrementOTPVerify(ctx, identifier); err != nil {
		e.warnf("authcore: otp verify counter for %s failed: %v", identifier, err)
	}

	ok, err := e.otpStore.Consume(ctx, identifier, code, consume)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		e.metrics.Inc(MetricOTPFailure)
		e.emit(AuditEvent{
			EventType:  "otp.verified",
			Identifier: identifier,
			Success:    false,
			Error:      ErrOTPInvalid.Error(),
		})
		return ErrOTPInvalid
	}

	e.metrics.Inc(MetricOTPVerified)
	e.emit(AuditEvent{
		EventType:  "otp.verified",
		Identifier: identifier,
		Success:    true,
	})
	return nil
}

func (e *Engine) masterOTPMatches(code string) bool {
	master := e.config.OTP.MasterCode
	if master == "" {
		return false
	}
	if e.config.Security.ProductionMode && !e.config.OTP.AllowMasterInProduction {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(master)) == 1
}

func (e *Engine) otpRateLimited(identifier, eventType string, cause error) error {
	if !errors.Is(cause, rate.ErrRateLimited) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}
	e.metrics.Inc(MetricOTPRateLimited)
	e.emit(AuditEvent{
		EventType:  eventType,
		Identifier: identifier,
		Success:    false,
		Error:      ErrOTPRateLimited.Error(),
	})
	return ErrOTPRateLimited
}
