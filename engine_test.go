package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/calyptra/authcore/password"
	"github.com/calyptra/authcore/rbac"
)

const testPassword = "correct horse battery staple"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func fastHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(password.Params{
		MemoryKB:    8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

type mockUserStore struct {
	users       map[string]*UserRecord
	lastSignIn  map[string]int
	verifiedVia map[string]string
	findErr     error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:       map[string]*UserRecord{},
		lastSignIn:  map[string]int{},
		verifiedVia: map[string]string{},
	}
}

func (s *mockUserStore) FindByIdentifier(_ context.Context, identifier string) (*UserRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, u := range s.users {
		if u.Email == identifier || u.Phone == identifier {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *mockUserStore) FindByID(_ context.Context, id string) (*UserRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if u, ok := s.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, nil
}

func (s *mockUserStore) CreateUser(_ context.Context, input CreateUserInput) (string, error) {
	id := "u-" + input.Email
	s.users[id] = &UserRecord{
		ID:           id,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		IsActive:     input.IsActive,
		IsVerified:   input.IsVerified,
	}
	return id, nil
}

func (s *mockUserStore) UpdateLastSignIn(_ context.Context, id string) error {
	s.lastSignIn[id]++
	return nil
}

func (s *mockUserStore) UpdateVerification(_ context.Context, id, channel string) error {
	if u, ok := s.users[id]; ok {
		u.IsVerified = true
		s.verifiedVia[id] = channel
	}
	return nil
}

func (s *mockUserStore) UpdatePassword(_ context.Context, id, hash string) error {
	if u, ok := s.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

type mockPermStore struct {
	groupsByUser map[string][]rbac.Group
	permsByGroup map[string][]rbac.Permission
}

func (s *mockPermStore) GroupsOf(_ context.Context, userID string) ([]rbac.Group, error) {
	return s.groupsByUser[userID], nil
}

func (s *mockPermStore) GroupPermissions(_ context.Context, groupID string) ([]rbac.Permission, error) {
	return s.permsByGroup[groupID], nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("engine-test-secret-32-bytes-long")
	cfg.Token.Issuer = "authcore-test"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

// seedUser registers the standard test user with a fast password hash:
// editor+reviewer groups granting {articles.edit, articles.review} and
// {articles.review, articles.publish}.
func seedUser(t *testing.T, users *mockUserStore) *mockPermStore {
	t.Helper()
	hash, err := fastHasher(t).Hash(testPassword)
	if err != nil {
		t.Fatalf("seeding password: %v", err)
	}
	users.users["u-1"] = &UserRecord{
		ID:           "u-1",
		Email:        "alice@example.com",
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
	}
	return &mockPermStore{
		groupsByUser: map[string][]rbac.Group{
			"u-1": {
				{ID: "g1", Codename: "editors"},
				{ID: "g2", Codename: "reviewers"},
			},
		},
		permsByGroup: map[string][]rbac.Permission{
			"g1": {
				{ID: "p-a", Codename: "articles.edit"},
				{ID: "p-b", Codename: "articles.review"},
			},
			"g2": {
				{ID: "p-b", Codename: "articles.review"},
				{ID: "p-c", Codename: "articles.publish"},
			},
		},
	}
}

func newTestEngine(t *testing.T, cfg Config, rdb redis.UniversalClient, users UserStore, perms rbac.Store) *Engine {
	t.Helper()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithPermissionStore(perms).
		WithPasswordHasher(fastHasher(t)).
		WithWarnFunc(func(string, ...any) {}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestLoginIssuesTriple(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := newMockUserStore()
	engine := newTestEngine(t, testConfig(), rdb, users, seedUser(t, users))
	ctx := context.Background()

	set, err := engine.Login(ctx, "alice@example.com", testPassword, "", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if set.Access == "" || set.Refresh == "" || set.Session == "" || set.SessionID == "" {
		t.Fatalf("incomplete token set: %+v", set)
	}
	if users.lastSignIn["u-1"] != 1 {
		t.Fatal("last sign-in not recorded")
	}

	// Access token authenticates with a lean principal.
	principal, err := engine.Authenticate(ctx, set.Access, "")
	if err != nil {
		t.Fatalf("Authenticate(access) failed: %v", err)
	}
	if principal.UserID != "u-1" || principal.SessionID != set.SessionID {
		t.Fatalf("unexpected principal %+v", principal)
	}
	if principal.Profile != nil {
		t.Fatal("access principal must stay lean")
	}

	// Session token authenticates with the embedded fast path.
	principal, err = engine.Authenticate(ctx, set.Session, "")
	if err != nil {
		t.Fatalf("Authenticate(session) failed: %v", err)
	}
	if principal.Profile == nil || principal.Profile.Email != "alice@example.com" {
		t.Fatalf("session principal missing profile: %+v", principal)
	}
	want := []string{"articles.edit", "articles.publish", "articles.review"}
	if len(principal.Permissions) != len(want) {
		t.Fatalf("permission union = %v, want %v", principal.Permissions, want)
	}
	for i, codename := range want {
		if principal.Permissions[i] != codename {
			t.Fatalf("permission union = %v, want %v", principal.Permissions, want)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := newMockUserStore()
	engine := newTestEngine(t, testConfig(), rdb, users, seedUser(t, users))

	_, err := engine.Login(context.Background(), "alice@example.com", "wrong password", "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownIdentifierSameError(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := newMockUserStore()
	engine := newTestEngine(t, testConfig(), rdb, users, seedUser(t, users))

	_, err := engine.Login(context.Background(), "nobody@example.com", testPassword, "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown users must look like wrong passwords, got %v", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := newMockUserStore()
	perms := seedUser(t, users)
	users.users["u-1"].IsActive = false
	engine := newTestEngine(t, testConfig(), rdb, users, perms)

	_, err := engine.Login(context.Background(), "alice@example.com", testPassword, "", "")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 2
	cfg.Security.LoginCooldown = time.Minute

	_, rdb := newTestRedis(t)
	users := newMockUserStore()
	engine := newTestEngine(t, cfg, rdb, users, seedUser(t, users))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = engine.Login(ctx, "alice@example.com", "wrong password", "", "")
	}
	_, err := engine.Login(ctx, "alice@example.com", testPassword, "", "")
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
}

func TestLoginEmptyCredentials(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := newMockUserStore()
	engine := newTestEngine(t, testConfig(), rdb, users, seedUser(t, users))

	if _, err := engine.Login(context.Background(), "", testPassword, "", ""); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "", "", ""); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestLoginClearsUserRevocation(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := newMockUserStore()
	engine := newTestEngine(t, testConfig(), rdb, users, seedUser(t, users))
	ctx := context.Background()

	set, err := engine.Login(ctx, "alice@example.com", testPassword, "", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Logout(ctx, "u-1", set.Access); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Authenticate(ctx, set.Session, ""); err == nil {
		t.Fatal("tokens must be dead after logout")
	}

	// A fresh login must yield immediately usable tokens.
	set2, err := engine.Login(ctx, "alice@example.com", testPassword, "", "")
	if err != nil {
		t.Fatalf("re-login failed: %v", err)
	}
	if _, err := engine.Authenticate(ctx, set2.Access, ""); err != nil {
		t.Fatalf("post-re-login token rejected: %v", err)
	}
}
