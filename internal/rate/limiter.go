package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited means the attempt budget for the window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures from the limiter.
	ErrRedisUnavailable = errors.New("rate redis unavailable")
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	MaxOTPRequests      int
	OTPRequestCooldown  time.Duration
	MaxOTPVerifications int
	OTPVerifyCooldown   time.Duration
}

// Limiter enforces per-identifier and per-IP budgets for login and OTP
// operations using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

func loginKey(identifier string) string { return "al:" + identifier }
func loginIPKey(ip string) string       { return "ali:" + ip }
func otpIssueKey(identifier string) string {
	return "ao:" + identifier
}
func otpVerifyKey(identifier string) string {
	return "aov:" + identifier
}

// CheckLogin checks whether the identifier+IP pair is within the login
// attempt budget. Returns ErrRateLimited when spent.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, loginKey(identifier), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts)
	}
	return nil
}

// IncrementLogin records a failed login attempt for the identifier+IP pair.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, loginKey(identifier), l.config.LoginCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	keys := []string{loginKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckOTPIssue enforces the per-identifier OTP issuance budget.
func (l *Limiter) CheckOTPIssue(ctx context.Context, identifier string) error {
	if l.config.MaxOTPRequests <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, otpIssueKey(identifier), l.config.OTPRequestCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxOTPRequests) {
		return ErrRateLimited
	}
	return nil
}

// IncrementOTPVerify records a verification attempt and enforces the
// budget. Attempts count regardless of outcome; the counter moves before
// the code is checked.
func (l *Limiter) IncrementOTPVerify(ctx context.Context, identifier string) error {
	if l.config.MaxOTPVerifications <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, otpVerifyKey(identifier), l.config.OTPVerifyCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxOTPVerifications) {
		return ErrRateLimited
	}
	return nil
}

// CheckOTPVerify checks the verification budget without consuming it.
func (l *Limiter) CheckOTPVerify(ctx context.Context, identifier string) error {
	if l.config.MaxOTPVerifications <= 0 {
		return nil
	}
	return l.checkCounter(ctx, otpVerifyKey(identifier), l.config.MaxOTPVerifications)
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count > int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
