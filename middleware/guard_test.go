package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/calyptra/authcore"
	"github.com/calyptra/authcore/rbac"
)

type stubUserStore struct {
	user *authcore.UserRecord
}

func (s *stubUserStore) FindByIdentifier(_ context.Context, identifier string) (*authcore.UserRecord, error) {
	if s.user != nil && s.user.Email == identifier {
		clone := *s.user
		return &clone, nil
	}
	return nil, nil
}

func (s *stubUserStore) FindByID(_ context.Context, id string) (*authcore.UserRecord, error) {
	if s.user != nil && s.user.ID == id {
		clone := *s.user
		return &clone, nil
	}
	return nil, nil
}

func (s *stubUserStore) CreateUser(_ context.Context, _ authcore.CreateUserInput) (string, error) {
	return "", nil
}

func (s *stubUserStore) UpdateLastSignIn(_ context.Context, _ string) error { return nil }

func (s *stubUserStore) UpdateVerification(_ context.Context, _, _ string) error { return nil }

func (s *stubUserStore) UpdatePassword(_ context.Context, _, _ string) error { return nil }

type stubPermStore struct {
	groups []rbac.Group
	perms  map[string][]rbac.Permission
}

func (s *stubPermStore) GroupsOf(_ context.Context, _ string) ([]rbac.Group, error) {
	return s.groups, nil
}

func (s *stubPermStore) GroupPermissions(_ context.Context, groupID string) ([]rbac.Permission, error) {
	return s.perms[groupID], nil
}

func newGuardEngine(t *testing.T) *authcore.Engine {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := authcore.DefaultConfig()
	cfg.Token.Secret = []byte("guard-test-secret-32-bytes-long!")
	cfg.Token.Issuer = "guard-test"

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithUserStore(&stubUserStore{user: &authcore.UserRecord{
			ID:       "u-9",
			Email:    "carol@example.com",
			IsActive: true,
		}}).
		WithPermissionStore(&stubPermStore{
			groups: []rbac.Group{{ID: "g1", Codename: "writers"}},
			perms: map[string][]rbac.Permission{
				"g1": {{ID: "p1", Codename: "articles.edit"}},
			},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func issueSet(t *testing.T, engine *authcore.Engine) *authcore.TokenSet {
	t.Helper()
	set, err := engine.IssueTokens(context.Background(), "u-9", "")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	return set
}

func okHandler(saw **authcore.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if saw != nil {
			*saw, _ = PrincipalFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractTokenPriority(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *http.Request)
		want    string
		present bool
	}{
		{
			name: "session header wins over everything",
			setup: func(r *http.Request) {
				r.Header.Set(SessionTokenHeader, "session-tok")
				r.Header.Set("Authorization", "Bearer bearer-tok")
				q := r.URL.Query()
				q.Set(TokenQueryParam, "query-tok")
				r.URL.RawQuery = q.Encode()
			},
			want:    "session-tok",
			present: true,
		},
		{
			name: "bearer beats query",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer bearer-tok")
				q := r.URL.Query()
				q.Set(TokenQueryParam, "query-tok")
				r.URL.RawQuery = q.Encode()
			},
			want:    "bearer-tok",
			present: true,
		},
		{
			name: "query fallback",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set(TokenQueryParam, "query-tok")
				r.URL.RawQuery = q.Encode()
			},
			want:    "query-tok",
			present: true,
		},
		{
			name:  "whitespace-only session header skipped",
			setup: func(r *http.Request) { r.Header.Set(SessionTokenHeader, "   ") },
		},
		{
			name:  "non-bearer authorization skipped",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
		},
		{
			name:  "empty bearer skipped",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer   ") },
		},
		{
			name:  "nothing",
			setup: func(r *http.Request) {},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/resource", nil)
			tc.setup(r)
			got, ok := ExtractToken(r)
			if ok != tc.present || got != tc.want {
				t.Fatalf("ExtractToken = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.present)
			}
		})
	}
}

func TestRequestOrigin(t *testing.T) {
	t.Run("origin header wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Origin", "https://app.example.com")
		r.Header.Set("X-Forwarded-Host", "proxy.example.com")
		if got := RequestOrigin(r); got != "https://app.example.com" {
			t.Fatalf("RequestOrigin = %q", got)
		}
	})
	t.Run("request host beats forwarded host", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://real.example.com/x", nil)
		r.Header.Set("X-Forwarded-Host", "proxy.example.com")
		if got := RequestOrigin(r); got != "http://real.example.com" {
			t.Fatalf("RequestOrigin = %q, want http://real.example.com", got)
		}
	})
	t.Run("falls back to request host", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://app.example.com/x", nil)
		if got := RequestOrigin(r); got != "http://app.example.com" {
			t.Fatalf("RequestOrigin = %q", got)
		}
	})
	t.Run("forwarded host only when host is empty", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Host = ""
		r.Header.Set("X-Forwarded-Host", "edge.example.com")
		if got := RequestOrigin(r); got != "http://edge.example.com" {
			t.Fatalf("RequestOrigin = %q", got)
		}
	})
}

func TestRequireRejectsMissingToken(t *testing.T) {
	engine := newGuardEngine(t)
	handler := Require(engine)(okHandler(nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRejectsBadToken(t *testing.T) {
	engine := newGuardEngine(t)
	handler := Require(engine)(okHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireInjectsPrincipal(t *testing.T) {
	engine := newGuardEngine(t)
	set := issueSet(t, engine)

	var saw *authcore.Principal
	handler := Require(engine)(okHandler(&saw))

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer "+set.Access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if saw == nil || saw.UserID != "u-9" {
		t.Fatalf("principal not injected: %+v", saw)
	}
}

func TestRequirePermissionEmbeddedFastPath(t *testing.T) {
	engine := newGuardEngine(t)
	set := issueSet(t, engine)

	// Session tokens embed the permission union at issuance.
	handler := RequirePermission(engine, "articles.edit")(okHandler(nil))
	r := httptest.NewRequest(http.MethodGet, "/edit", nil)
	r.Header.Set(SessionTokenHeader, set.Session)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequirePermissionStoreFallback(t *testing.T) {
	engine := newGuardEngine(t)
	set := issueSet(t, engine)

	// Access tokens carry no permissions, so the guard asks the store.
	handler := RequirePermission(engine, "articles.edit")(okHandler(nil))
	r := httptest.NewRequest(http.MethodGet, "/edit", nil)
	r.Header.Set("Authorization", "Bearer "+set.Access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequirePermissionForbidden(t *testing.T) {
	engine := newGuardEngine(t)
	set := issueSet(t, engine)

	handler := RequirePermission(engine, "billing.manage")(okHandler(nil))
	r := httptest.NewRequest(http.MethodGet, "/billing", nil)
	r.Header.Set(SessionTokenHeader, set.Session)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
