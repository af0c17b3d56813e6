package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/auth"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
)

// extractIP follows X-Forwarded-For (first entry), X-Real-IP and finally the
// connection address.
func extractIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if xRealIP != "" {
		return xRealIP
	}

	return peerIP(r)
}

// peerIP is the address of the connection itself, ignoring forwarding headers.
func peerIP(r *http.Request) string {
	remoteAddr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host == "" {
		return domain.UnknownIP
	}
	return host
}

// userID returns the authenticated user of the request, if any.
func userID(r *http.Request) (string, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return "", false
	}
	return principal.UserID(), true
}

// resolveIdentity picks the user identity when per-user limiting is on and
// the request is authenticated, and the client IP otherwise.
func resolveIdentity(r *http.Request, ip string, perUser bool) domain.Identity {
	if perUser {
		if id, ok := userID(r); ok {
			return domain.UserIdentity(id)
		}
	}
	return domain.IPIdentity(ip)
}
