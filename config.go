package authcore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/calyptra/authcore/token"
)

// Config is the full engine configuration tree. Values are fixed at Build
// time; the engine never re-reads configuration per request.
type Config struct {
	Token    TokenConfig
	OTP      OTPConfig
	Security SecurityConfig
	Redis    RedisConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// TokenConfig covers the codec and the per-type expiries.
type TokenConfig struct {
	Secret        []byte
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	Issuer        string
	Audience      string
	Leeway        time.Duration

	AccessTTL  time.Duration
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

// OTPConfig covers one-time-code issuance and the master-code bypass.
type OTPConfig struct {
	Digits     int
	DefaultTTL time.Duration

	// MasterCode verifies for any identifier without consulting storage.
	// It is an operational backdoor: every use is audited and counted,
	// and Validate refuses it in production mode unless
	// AllowMasterInProduction is set explicitly.
	MasterCode              string
	AllowMasterInProduction bool
}

// SecurityConfig covers origin strictness, fail-open posture and throttling.
type SecurityConfig struct {
	// ProductionMode tightens origin checks: outside production two
	// loopback origins are treated as equivalent regardless of port.
	ProductionMode bool

	// RevocationFailClosed rejects authentication when a revocation read
	// errors. Default false: fail open, log, count.
	RevocationFailClosed bool

	// SuperAdminGroup is the codename of the group whose members bypass
	// every permission check.
	SuperAdminGroup string

	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	MaxOTPRequests      int
	OTPRequestCooldown  time.Duration
	MaxOTPVerifications int
	OTPVerifyCooldown   time.Duration
}

// RedisConfig namespaces the engine's keys.
type RedisConfig struct {
	RevocationPrefix string
	OTPPrefix        string
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration: hs256, 60-minute access,
// 7-day session, 30-day refresh, 6-digit OTPs, fail-open revocation reads,
// metrics and audit off.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: string(token.MethodHS256),
			AccessTTL:     60 * time.Minute,
			SessionTTL:    7 * 24 * time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			Digits:     6,
			DefaultTTL: 10 * time.Minute,
		},
		Security: SecurityConfig{
			SuperAdminGroup: "super_admin",
			LoginCooldown:   15 * time.Minute,
		},
		Audit: AuditConfig{BufferSize: 256},
	}
}

// Validate rejects configurations that must fail at startup rather than per
// request: a missing secret, inverted TTL ordering, or a master code in
// production without the explicit override.
func (c Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("config: signing secret required")
	}
	if c.Token.AccessTTL <= 0 || c.Token.SessionTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("config: all token TTLs must be positive")
	}
	if c.Token.AccessTTL > c.Token.SessionTTL || c.Token.SessionTTL > c.Token.RefreshTTL {
		return errors.New("config: token TTLs must satisfy access <= session <= refresh")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("config: otp digits must be between 4 and 10")
	}
	if c.OTP.DefaultTTL <= 0 {
		return errors.New("config: otp ttl must be positive")
	}
	if c.OTP.MasterCode != "" && c.Security.ProductionMode && !c.OTP.AllowMasterInProduction {
		return errors.New("config: master otp refused in production mode")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ConfigFromEnv builds a configuration from environment variables, loading a
// .env file first when one exists. Recognized variables:
//
//	AUTHCORE_SECRET            signing secret (required)
//	AUTHCORE_ALGORITHM         hs256 | hs384 | hs512
//	AUTHCORE_ISSUER            iss claim
//	AUTHCORE_AUDIENCE          aud claim
//	AUTHCORE_ACCESS_TTL_MIN    access expiry, minutes
//	AUTHCORE_SESSION_TTL_MIN   session expiry, minutes
//	AUTHCORE_REFRESH_TTL_MIN   refresh expiry, minutes
//	AUTHCORE_OTP_TTL_SEC       otp expiry, seconds
//	AUTHCORE_OTP_DIGITS        otp length
//	AUTHCORE_MASTER_OTP        master-code bypass value
//	AUTHCORE_ENV               "production" enables production mode
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv("AUTHCORE_SECRET"); v != "" {
		cfg.Token.Secret = []byte(v)
	}
	if v := os.Getenv("AUTHCORE_ALGORITHM"); v != "" {
		cfg.Token.SigningMethod = v
	}
	cfg.Token.Issuer = os.Getenv("AUTHCORE_ISSUER")
	cfg.Token.Audience = os.Getenv("AUTHCORE_AUDIENCE")

	var err error
	if cfg.Token.AccessTTL, err = envMinutes("AUTHCORE_ACCESS_TTL_MIN", cfg.Token.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.Token.SessionTTL, err = envMinutes("AUTHCORE_SESSION_TTL_MIN", cfg.Token.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.Token.RefreshTTL, err = envMinutes("AUTHCORE_REFRESH_TTL_MIN", cfg.Token.RefreshTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("AUTHCORE_OTP_TTL_SEC"); v != "" {
		secs, convErr := strconv.Atoi(v)
		if convErr != nil {
			return Config{}, fmt.Errorf("config: AUTHCORE_OTP_TTL_SEC: %w", convErr)
		}
		cfg.OTP.DefaultTTL = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("AUTHCORE_OTP_DIGITS"); v != "" {
		digits, convErr := strconv.Atoi(v)
		if convErr != nil {
			return Config{}, fmt.Errorf("config: AUTHCORE_OTP_DIGITS: %w", convErr)
		}
		cfg.OTP.Digits = digits
	}
	cfg.OTP.MasterCode = os.Getenv("AUTHCORE_MASTER_OTP")
	cfg.Security.ProductionMode = os.Getenv("AUTHCORE_ENV") == "production"

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envMinutes(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	mins, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return time.Duration(mins) * time.Minute, nil
}
