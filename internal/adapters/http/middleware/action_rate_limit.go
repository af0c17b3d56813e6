package middleware

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
)

// ActionOptions configures a per-route limit.
type ActionOptions struct {
	// PerUser counts authenticated callers by user id instead of IP.
	PerUser bool
	// SkipForAuthenticated lets authenticated callers through uncounted.
	SkipForAuthenticated bool
	FailOpen             bool
	Logger               *zerolog.Logger
}

// NewActionRateLimit applies a single fixed rule to the routes it wraps, on
// top of the global endpoint limits.
func NewActionRateLimit(limiter ports.ActionLimiter, opts ActionOptions) func(http.Handler) http.Handler {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, authenticated := userID(r)
			if limiter == nil || (opts.SkipForAuthenticated && authenticated) {
				next.ServeHTTP(w, r)
				return
			}

			identity := resolveIdentity(r, extractIP(r), opts.PerUser)
			decision, err := limiter.Check(r.Context(), identity)
			if err != nil {
				if exceeded, ok := domain.AsRateLimitExceeded(err); ok {
					logger.Warn().
						Str("limit_type", string(exceeded.LimitType)).
						Str("identifier", identity.String()).
						Str("route", r.Method+" "+r.URL.Path).
						Int("retry_after", exceeded.RetryAfterSeconds).
						Msg("action rate limit exceeded")
					writeTooManyRequests(w, exceeded)
					return
				}

				logger.Error().Err(err).Str("route", r.Method+" "+r.URL.Path).Msg("action rate limiter failed")
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeInternalError(w)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", perWindow(int64(decision.Rule.RequestsPerMinute), int64(decision.Rule.RequestsPerHour)))
			h.Set("X-RateLimit-Remaining-Minute", strconv.FormatInt(decision.RemainingMinute(), 10))
			h.Set("X-RateLimit-Remaining-Hour", strconv.FormatInt(decision.RemainingHour(), 10))
			next.ServeHTTP(w, r)
		})
	}
}
