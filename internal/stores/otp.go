package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOTPRedisUnavailable wraps Redis failures from the OTP store.
var ErrOTPRedisUnavailable = errors.New("otp redis unavailable")

// consumeOTPLua atomically compares and optionally deletes a stored code.
// KEYS[1] = code key
// ARGV[1] = provided code
// ARGV[2] = "1" to delete on match
//
// Returns 1 on match, 0 otherwise. A mismatch never deletes: the legitimate
// owner can still verify before the TTL runs out.
var consumeOTPLua = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return 0
end
if ARGV[2] == '1' then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// OTPStore keeps at most one live code per identifier. Saving a new code
// overwrites the previous one (last write wins).
type OTPStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewOTPStore returns an OTP store namespaced under prefix.
func NewOTPStore(redisClient redis.UniversalClient, prefix string) *OTPStore {
	if prefix == "" {
		prefix = "aco"
	}
	return &OTPStore{redis: redisClient, prefix: prefix}
}

// NormalizeIdentifier trims whitespace and lowercases email-shaped
// identifiers. Every key computation goes through this; skipping it would
// make verification miss on case or stray whitespace.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.ContainsRune(identifier, '@') {
		identifier = strings.ToLower(identifier)
	}
	return identifier
}

func (s *OTPStore) key(identifier string) string {
	return s.prefix + ":" + NormalizeIdentifier(identifier)
}

// Save stores code under the identifier for ttl, replacing any live code.
func (s *OTPStore) Save(ctx context.Context, identifier, code string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("otp ttl must be positive")
	}
	if err := s.redis.Set(ctx, s.key(identifier), code, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

// Consume verifies code against the stored value. With consume=true a match
// deletes the entry so the code is single-use; with consume=false the code is
// preserved for a later step of the same flow.
func (s *OTPStore) Consume(ctx context.Context, identifier, code string, consume bool) (bool, error) {
	deleteArg := "0"
	if consume {
		deleteArg = "1"
	}
	res, err := consumeOTPLua.Run(ctx, s.redis, []string{s.key(identifier)}, code, deleteArg).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return res == 1, nil
}

// Peek reports whether a live code exists for the identifier, without
// touching it. Used by tests and introspection only.
func (s *OTPStore) Peek(ctx context.Context, identifier string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return n > 0, nil
}
