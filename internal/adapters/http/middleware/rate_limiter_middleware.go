// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
)

// DefaultSkipPrefixes are never rate limited: health checks, API docs,
// metrics and static assets.
var DefaultSkipPrefixes = []string{"/health", "/swagger", "/metrics", "/css", "/js", "/images", "/uploads"}

type settings struct {
	enabled      bool
	perUser      bool
	failOpen     bool
	skipPrefixes []string
	allowedIPs   map[string]struct{}
	allowedNets  []netip.Prefix
	allowedUsers map[string]struct{}
	proxies      []netip.Prefix
	logger       zerolog.Logger
	metrics      ports.Metrics
}

// Option configures NewRateLimiterMiddleware.
type Option func(*settings)

func WithEnabled(enabled bool) Option {
	return func(s *settings) { s.enabled = enabled }
}

// WithPerUser toggles limiting authenticated callers by user id.
func WithPerUser(perUser bool) Option {
	return func(s *settings) { s.perUser = perUser }
}

// WithFailOpen admits requests when the counter store fails. When disabled
// such requests get a 500.
func WithFailOpen(failOpen bool) Option {
	return func(s *settings) { s.failOpen = failOpen }
}

func WithSkipPrefixes(prefixes ...string) Option {
	return func(s *settings) { s.skipPrefixes = prefixes }
}

// WithWhitelist exempts client IPs (exact addresses or CIDR ranges) and user
// ids from counting. The IP list is matched against the connection address;
// forwarding headers are only believed when the connection comes from a
// proxy listed in WithTrustedProxies.
func WithWhitelist(ips, users []string) Option {
	return func(s *settings) {
		for _, ip := range ips {
			ip = strings.TrimSpace(ip)
			if ip == "" {
				continue
			}
			if prefix, err := netip.ParsePrefix(ip); err == nil {
				s.allowedNets = append(s.allowedNets, prefix)
				continue
			}
			s.allowedIPs[ip] = struct{}{}
		}
		for _, user := range users {
			if user = strings.TrimSpace(user); user != "" {
				s.allowedUsers[user] = struct{}{}
			}
		}
	}
}

// WithTrustedProxies lists the proxies (addresses or CIDR ranges) whose
// X-Forwarded-For and X-Real-IP headers are trusted for whitelist matching.
func WithTrustedProxies(proxies ...string) Option {
	return func(s *settings) {
		for _, proxy := range proxies {
			if prefix, ok := parsePrefix(proxy); ok {
				s.proxies = append(s.proxies, prefix)
			}
		}
	}
}

func parsePrefix(raw string) (netip.Prefix, bool) {
	raw = strings.TrimSpace(raw)
	if prefix, err := netip.ParsePrefix(raw); err == nil {
		return prefix, true
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		return netip.PrefixFrom(addr, addr.BitLen()), true
	}
	return netip.Prefix{}, false
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func WithMetrics(metrics ports.Metrics) Option {
	return func(s *settings) { s.metrics = metrics }
}

func newSettings(opts []Option) *settings {
	s := &settings{
		enabled:      true,
		perUser:      true,
		failOpen:     true,
		skipPrefixes: DefaultSkipPrefixes,
		allowedIPs:   make(map[string]struct{}),
		allowedUsers: make(map[string]struct{}),
		logger:       log.Logger,
		metrics:      noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRateLimiterMiddleware limits every request by endpoint rule, per user and
// per client IP. Rejected requests get a 429 with a JSON body and never reach
// next.
func NewRateLimiterMiddleware(limiter ports.RateLimiter, opts ...Option) func(http.Handler) http.Handler {
	s := newSettings(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || s.skip(r) {
				s.metrics.ObserveSkipped()
				next.ServeHTTP(w, r)
				return
			}

			ip := extractIP(r)
			identity := resolveIdentity(r, ip, s.perUser)
			if s.whitelisted(ip, r) {
				s.metrics.ObserveSkipped()
				next.ServeHTTP(w, r)
				return
			}

			endpoint := domain.ClassifyEndpoint(r.Method, r.URL.Path)
			started := time.Now()

			decision, err := limiter.Evaluate(r.Context(), domain.RateLimitRequest{
				Identity: identity,
				IP:       ip,
				Endpoint: endpoint,
			})
			if err != nil {
				if exceeded, ok := domain.AsRateLimitExceeded(err); ok {
					s.metrics.ObserveDecision(decision, time.Since(started))
					s.logger.Warn().
						Str("limit_type", string(exceeded.LimitType)).
						Str("ip", ip).
						Str("user", userOf(identity)).
						Str("endpoint", string(endpoint)).
						Int("retry_after", exceeded.RetryAfterSeconds).
						Msg("rate limit exceeded")
					writeTooManyRequests(w, exceeded)
					return
				}

				s.metrics.ObserveError()
				s.logger.Error().Err(err).Str("endpoint", string(endpoint)).Msg("rate limiter failed")
				if s.failOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeInternalError(w)
				return
			}

			s.metrics.ObserveDecision(decision, time.Since(started))
			setRateLimitHeaders(w.Header(), decision)
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(h http.Header, decision domain.Decision) {
	h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if decision.UserScoped() {
		rule := decision.AppliedRule
		h.Set("X-RateLimit-Limit-User", perWindow(int64(rule.RequestsPerMinute), int64(rule.RequestsPerHour)))
		h.Set("X-RateLimit-Used-User", perWindow(*decision.UserMinute, *decision.UserHour))
	}
	h.Set("X-RateLimit-Used-IP", perWindow(decision.IPMinute, decision.IPHour))
}

func (s *settings) skip(r *http.Request) bool {
	if !s.enabled {
		return true
	}
	for _, prefix := range s.skipPrefixes {
		if hasPathPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole segments, case-insensitively: "/health" matches
// "/health" and "/Health/ready" but not "/healthz".
func hasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if len(path) < len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func (s *settings) whitelisted(ip string, r *http.Request) bool {
	peer := peerIP(r)
	if s.trustedProxy(peer) {
		peer = ip
	}
	if _, ok := s.allowedIPs[peer]; ok {
		return true
	}
	if len(s.allowedNets) > 0 && containsAddr(s.allowedNets, peer) {
		return true
	}
	if len(s.allowedUsers) > 0 {
		if id, ok := userID(r); ok {
			_, allowed := s.allowedUsers[id]
			return allowed
		}
	}
	return false
}

func (s *settings) trustedProxy(ip string) bool {
	return len(s.proxies) > 0 && containsAddr(s.proxies, ip)
}

func containsAddr(prefixes []netip.Prefix, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func userOf(identity domain.Identity) string {
	if identity.IsUser() {
		return identity.Value
	}
	return ""
}

type noopMetrics struct{}

func (noopMetrics) ObserveSkipped()                                {}
func (noopMetrics) ObserveDecision(domain.Decision, time.Duration) {}
func (noopMetrics) ObserveError()                                  {}
