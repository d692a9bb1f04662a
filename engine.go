package authcore

import (
	"context"
	"time"

	"github.com/calyptra/authcore/internal/audit"
	"github.com/calyptra/authcore/internal/rate"
	"github.com/calyptra/authcore/internal/stores"
	"github.com/calyptra/authcore/password"
	"github.com/calyptra/authcore/rbac"
	"github.com/calyptra/authcore/token"
)

// Engine is the composed session manager. It is built once at startup via
// [Builder.Build] and injected wherever authentication decisions are made;
// all methods are safe for concurrent use.
type Engine struct {
	config Config

	codec      *token.Codec
	issuer     *token.Issuer
	revocation *stores.RevocationStore
	otpStore   *stores.OTPStore
	resolver   *rbac.Resolver
	userStore  UserStore
	limiter    *rate.Limiter
	hasher     *password.Hasher

	audit   *audit.Dispatcher
	metrics *Metrics
	warnf   func(format string, args ...any)
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	e.audit.Close()
}

// MetricsSnapshot returns a deep copy of the engine's metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// SecurityReport snapshots the engine's active security posture.
func (e *Engine) SecurityReport() SecurityReport {
	return SecurityReport{
		ProductionMode:       e.config.Security.ProductionMode,
		SigningAlgorithm:     e.config.Token.SigningMethod,
		AccessTTL:            e.config.Token.AccessTTL.String(),
		SessionTTL:           e.config.Token.SessionTTL.String(),
		RefreshTTL:           e.config.Token.RefreshTTL.String(),
		RevocationFailClosed: e.config.Security.RevocationFailClosed,
		MasterOTPConfigured:  e.config.OTP.MasterCode != "",
		SuperAdminGroup:      e.config.Security.SuperAdminGroup,
		RateLimitingActive:   e.config.Security.MaxLoginAttempts > 0 || e.config.Security.MaxOTPRequests > 0,
		AuditActive:          e.config.Audit.Enabled,
	}
}

func (e *Engine) emit(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(event)
}

// onFailOpen observes a revocation read downgraded to "not revoked".
func (e *Engine) onFailOpen(_ context.Context, scope string, err error) {
	e.metrics.Inc(MetricRevocationFailOpen)
	e.warnf("authcore: revocation read failed open (scope=%s): %v", scope, err)
	e.emit(AuditEvent{
		EventType: "revocation.fail_open",
		Success:   false,
		Error:     err.Error(),
		Metadata:  map[string]string{"scope": scope},
	})
}
