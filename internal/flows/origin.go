package flows

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeOrigin reduces an origin string to lowercase scheme://host[:port].
// Bare hosts (a Host header fallback) normalize without a scheme. Returns ""
// for inputs that cannot be interpreted as an origin.
func NormalizeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var scheme, hostport string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return ""
		}
		scheme = strings.ToLower(u.Scheme)
		hostport = strings.ToLower(u.Host)
	} else {
		hostport = strings.ToLower(raw)
	}

	if scheme == "" {
		return hostport
	}
	return scheme + "://" + hostport
}

// OriginsEquivalent compares two normalized origins. In non-production mode
// two loopback origins are equivalent regardless of port, so a frontend dev
// server on one port can present tokens minted for another.
func OriginsEquivalent(tokenOrigin, requestOrigin string, production bool) bool {
	if tokenOrigin == requestOrigin {
		return true
	}
	if production {
		return false
	}
	return isLoopbackOrigin(tokenOrigin) && isLoopbackOrigin(requestOrigin)
}

func isLoopbackOrigin(origin string) bool {
	if i := strings.Index(origin, "://"); i >= 0 {
		origin = origin[i+3:]
	}
	host := origin
	if h, _, err := net.SplitHostPort(origin); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
