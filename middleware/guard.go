package middleware

import (
	"context"
	"net/http"
	"strings"

	authcore "github.com/calyptra/authcore"
)

// SessionTokenHeader carries a session token. It wins over the
// Authorization header when both are present.
const SessionTokenHeader = "X-Session-Token"

// TokenQueryParam is the fallback query parameter, for clients that cannot
// set headers (websocket handshakes, download links).
const TokenQueryParam = "token"

type principalContextKey struct{}

// PrincipalFromContext returns the principal a guard stored for the request.
func PrincipalFromContext(ctx context.Context) (*authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*authcore.Principal)
	return p, ok
}

// Require authenticates every request and injects the principal into the
// request context. Requests without a token, or with one the engine rejects,
// receive 401.
func Require(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := ExtractToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := engine.Authenticate(r.Context(), raw, RequestOrigin(r))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission authenticates the request and additionally demands an
// RBAC permission. Missing permission is 403, not 401: the caller is known,
// just not allowed.
func RequirePermission(engine *authcore.Engine, codename string) func(http.Handler) http.Handler {
	guard := Require(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := PrincipalFromContext(r.Context())

			// Session tokens carry their permissions; anything else asks the store.
			allowed := principal.HasEmbeddedPermission(codename)
			if !allowed {
				var err error
				allowed, err = engine.HasPermission(r.Context(), principal.UserID, codename)
				if err != nil {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// ExtractToken pulls the credential off the request, trying the session
// header, the Authorization Bearer header, then the query parameter.
func ExtractToken(r *http.Request) (string, bool) {
	if raw := strings.TrimSpace(r.Header.Get(SessionTokenHeader)); raw != "" {
		return raw, true
	}
	if raw, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return raw, true
	}
	if raw := strings.TrimSpace(r.URL.Query().Get(TokenQueryParam)); raw != "" {
		return raw, true
	}
	return "", false
}

// RequestOrigin resolves the origin string offered for token origin binding:
// the Origin header, then the request host, then X-Forwarded-Host.
func RequestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	host := r.Host
	if host == "" {
		host = r.Header.Get("X-Forwarded-Host")
	}
	if host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	raw := strings.TrimSpace(value[len(bearer):])
	return raw, raw != ""
}
