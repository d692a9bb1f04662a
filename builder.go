package authcore

import (
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/calyptra/authcore/internal/audit"
	"github.com/calyptra/authcore/internal/rate"
	"github.com/calyptra/authcore/internal/stores"
	"github.com/calyptra/authcore/password"
	"github.com/calyptra/authcore/rbac"
	"github.com/calyptra/authcore/token"
)

// Builder assembles an [Engine]. Construction is allocation-only; nothing
// touches Redis until the engine methods run.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userStore UserStore
	permStore rbac.Store
	auditSink AuditSink
	hasher    *password.Hasher
	warnf     func(format string, args ...any)

	built bool
}

// New returns a builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis injects the cache client used by the revocation denylist, the
// OTP store and the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore injects the external user database.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithPermissionStore injects the external permission/group database.
func (b *Builder) WithPermissionStore(store rbac.Store) *Builder {
	b.permStore = store
	return b
}

// WithAuditSink injects the audit event consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPasswordHasher replaces the Argon2id hasher. Defaults to
// [password.DefaultParams].
func (b *Builder) WithPasswordHasher(h *password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithWarnFunc replaces the operational warning logger. Defaults to the
// standard library logger.
func (b *Builder) WithWarnFunc(warnf func(format string, args ...any)) *Builder {
	b.warnf = warnf
	return b
}

// Build validates the configuration and wires the engine. Misconfiguration
// (missing secret, missing stores) fails here at startup, never per request.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}
	if b.permStore == nil {
		return nil, errors.New("permission store required")
	}

	codec, err := token.NewCodec(token.Config{
		Secret:        cfg.Token.Secret,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	warnf := b.warnf
	if warnf == nil {
		warnf = log.Printf
	}

	hasher := b.hasher
	if hasher == nil {
		if hasher, err = password.NewHasher(password.DefaultParams()); err != nil {
			return nil, err
		}
	}

	engine := &Engine{
		config: cfg,
		codec:  codec,
		issuer: token.NewIssuer(codec, token.IssuerConfig{
			AccessTTL:  cfg.Token.AccessTTL,
			SessionTTL: cfg.Token.SessionTTL,
			RefreshTTL: cfg.Token.RefreshTTL,
		}),
		revocation: stores.NewRevocationStore(b.redis, cfg.Redis.RevocationPrefix),
		otpStore:   stores.NewOTPStore(b.redis, cfg.Redis.OTPPrefix),
		resolver:   rbac.NewResolver(b.permStore, cfg.Security.SuperAdminGroup),
		userStore:  b.userStore,
		hasher:     hasher,
		limiter: rate.New(b.redis, rate.Config{
			EnableIPThrottle:    cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:    cfg.Security.MaxLoginAttempts,
			LoginCooldown:       cfg.Security.LoginCooldown,
			MaxOTPRequests:      cfg.Security.MaxOTPRequests,
			OTPRequestCooldown:  cfg.Security.OTPRequestCooldown,
			MaxOTPVerifications: cfg.Security.MaxOTPVerifications,
			OTPVerifyCooldown:   cfg.Security.OTPVerifyCooldown,
		}),
		audit:   audit.NewDispatcher(cfg.Audit.Enabled, cfg.Audit.BufferSize, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		warnf:   warnf,
	}

	b.built = true
	return engine, nil
}
