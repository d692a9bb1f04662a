package stores

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRevocationDenylistRoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, "")
	ctx := context.Background()

	if err := store.Denylist(ctx, ScopeSession, "sid-1", time.Minute); err != nil {
		t.Fatalf("Denylist failed: %v", err)
	}

	hit, err := store.IsDenylisted(ctx, ScopeSession, "sid-1")
	if err != nil {
		t.Fatalf("IsDenylisted failed: %v", err)
	}
	if !hit {
		t.Fatal("expected denylist hit")
	}

	// Scopes are independent namespaces.
	hit, err = store.IsDenylisted(ctx, ScopeUser, "sid-1")
	if err != nil {
		t.Fatalf("IsDenylisted failed: %v", err)
	}
	if hit {
		t.Fatal("same key in another scope must not match")
	}
}

func TestRevocationClear(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, "")
	ctx := context.Background()

	if err := store.Denylist(ctx, ScopeUser, "user-1", time.Minute); err != nil {
		t.Fatalf("Denylist failed: %v", err)
	}
	if err := store.Clear(ctx, ScopeUser, "user-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	hit, err := store.IsDenylisted(ctx, ScopeUser, "user-1")
	if err != nil {
		t.Fatalf("IsDenylisted failed: %v", err)
	}
	if hit {
		t.Fatal("cleared entry still denylisted")
	}

	// Clearing an absent key is fine.
	if err := store.Clear(ctx, ScopeUser, "never-was"); err != nil {
		t.Fatalf("Clear of absent key failed: %v", err)
	}
}

func TestRevocationEntryExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, "")
	ctx := context.Background()

	if err := store.Denylist(ctx, ScopeAccessID, "jti-1", 2*time.Second); err != nil {
		t.Fatalf("Denylist failed: %v", err)
	}
	mr.FastForward(3 * time.Second)

	hit, err := store.IsDenylisted(ctx, ScopeAccessID, "jti-1")
	if err != nil {
		t.Fatalf("IsDenylisted failed: %v", err)
	}
	if hit {
		t.Fatal("entry must expire with its TTL")
	}
}

func TestRevocationTTLClamped(t *testing.T) {
	// Zero and negative TTLs would make SET fail or persist forever; the
	// store clamps them to the minimum instead.
	_, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, "")
	ctx := context.Background()

	if err := store.Denylist(ctx, ScopeToken, "hash-1", 0); err != nil {
		t.Fatalf("Denylist with zero TTL failed: %v", err)
	}
	if err := store.Denylist(ctx, ScopeToken, "hash-2", -time.Minute); err != nil {
		t.Fatalf("Denylist with negative TTL failed: %v", err)
	}
	for _, key := range []string{"hash-1", "hash-2"} {
		hit, err := store.IsDenylisted(ctx, ScopeToken, key)
		if err != nil || !hit {
			t.Fatalf("clamped entry %q missing: hit=%v err=%v", key, hit, err)
		}
	}
}

func TestRevocationRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb, "")
	ctx := context.Background()
	mr.Close()

	if err := store.Denylist(ctx, ScopeSession, "sid-1", time.Minute); err == nil {
		t.Fatal("expected write error with redis down")
	}
	if _, err := store.IsDenylisted(ctx, ScopeSession, "sid-1"); err == nil {
		t.Fatal("expected read error with redis down")
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("raw-token", "access")
	h2 := HashToken("raw-token", "refresh")
	h3 := HashToken("raw-token", "access")

	if h1 == h2 {
		t.Fatal("hash must incorporate the token type")
	}
	if h1 != h3 {
		t.Fatal("hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(h1))
	}
}

func TestRevocationPrefixIsolation(t *testing.T) {
	_, rdb := newTestRedis(t)
	a := NewRevocationStore(rdb, "one")
	b := NewRevocationStore(rdb, "two")
	ctx := context.Background()

	if err := a.Denylist(ctx, ScopeSession, "sid-1", time.Minute); err != nil {
		t.Fatalf("Denylist failed: %v", err)
	}
	hit, err := b.IsDenylisted(ctx, ScopeSession, "sid-1")
	if err != nil {
		t.Fatalf("IsDenylisted failed: %v", err)
	}
	if hit {
		t.Fatal("prefixes must isolate deployments sharing one redis")
	}
}
