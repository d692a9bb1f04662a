package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRevocationRedisUnavailable wraps any Redis failure from the denylist.
// Callers on the authentication read path downgrade it to "not revoked";
// callers on the revocation write path surface it.
var ErrRevocationRedisUnavailable = errors.New("revocation redis unavailable")

// Scope partitions the denylist key space. Entries in different scopes never
// collide and need no cross-key coordination.
type Scope string

const (
	// ScopeToken denylists one exact token by hash. Kept as the fallback
	// path for tokens minted before per-token unique ids existed.
	ScopeToken Scope = "tok"
	// ScopeAccessID denylists one access token by its unique id, the
	// logout fast path.
	ScopeAccessID Scope = "jti"
	// ScopeSession denylists a session id, revoking all three sibling
	// tokens of that issuance at once.
	ScopeSession Scope = "sid"
	// ScopeUser denylists every session of a subject.
	ScopeUser Scope = "usr"
	// ScopeRefresh denylists every refresh token of a subject, treated as
	// "user fully logged out".
	ScopeRefresh Scope = "rfr"
)

// RevocationStore is the TTL denylist. Presence means revoked until the entry
// expires; entries are idempotent to write and can be cleared early to
// intentionally re-enable issuance after a logout.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRevocationStore returns a denylist namespaced under prefix.
func NewRevocationStore(redisClient redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = "acd"
	}
	return &RevocationStore{redis: redisClient, prefix: prefix}
}

func (s *RevocationStore) key(scope Scope, key string) string {
	return s.prefix + ":" + string(scope) + ":" + key
}

// HashToken derives the ScopeToken key for a raw token. The type is mixed in
// so an access and a session token with an improbable byte collision still
// get distinct keys.
func HashToken(raw, typ string) string {
	sum := sha256.Sum256([]byte(typ + "\x00" + raw))
	return hex.EncodeToString(sum[:])
}

// Denylist writes a revocation entry. The TTL must cover the remaining
// lifetime of whatever is being revoked; anything shorter would let the entry
// expire before the token it blocks. Sub-second TTLs are clamped up.
func (s *RevocationStore) Denylist(ctx context.Context, scope Scope, key string, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.redis.Set(ctx, s.key(scope, key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return nil
}

// IsDenylisted reports whether an entry exists for the scope+key pair.
func (s *RevocationStore) IsDenylisted(ctx context.Context, scope Scope, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(scope, key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return n > 0, nil
}

// Clear removes an entry early. Login uses it to drop stale user-level
// revocations before issuing, so fresh tokens are not instantly dead.
func (s *RevocationStore) Clear(ctx context.Context, scope Scope, key string) error {
	if err := s.redis.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return nil
}
