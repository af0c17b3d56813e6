package services

import (
	"context"
	"fmt"
	"time"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
)

// Config agrega as regras e a política utilizadas pelo serviço de rate limiting.
type Config struct {
	Rules *domain.RuleTable
	// StrictAnonymousLimits halves the IP budgets of anonymous callers.
	StrictAnonymousLimits bool
	Now                   func() time.Time
}

// RateLimiterService implementa a lógica central de rate limiting.
type RateLimiterService struct {
	storage ports.CounterStore
	config  Config
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(storage ports.CounterStore, cfg Config) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Rules == nil {
		return nil, fmt.Errorf("rule table is required")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &RateLimiterService{storage: storage, config: cfg}, nil
}

// Evaluate counts the request against the user counters (when the identity is
// a user) and then the IP counters. Each scope checks its minute window before
// touching its hour window and the first exceeded window rejects the request.
// Counters are incremented before the comparison, so rejected requests count.
func (s *RateLimiterService) Evaluate(ctx context.Context, req domain.RateLimitRequest) (domain.Decision, error) {
	now := s.config.Now()
	rule := s.config.Rules.Lookup(req.Endpoint)

	decision := domain.Decision{
		Identity:    req.Identity,
		Endpoint:    req.Endpoint,
		AppliedRule: rule,
	}

	authenticated := req.Identity.IsUser()
	if authenticated {
		counts, err := s.count(ctx, &decision, req.Identity, rule.RequestsPerMinute, rule.RequestsPerHour, now)
		decision.UserMinute, decision.UserHour = &counts.minute, &counts.hour
		if err != nil || decision.Limited {
			return decision, err
		}
	}

	ip := req.IP
	if ip == "" && !authenticated {
		ip = req.Identity.Value
	}
	decision.IPMinuteLimit = s.ipLimit(rule.RequestsPerMinute, authenticated)
	decision.IPHourLimit = s.ipLimit(rule.RequestsPerHour, authenticated)

	counts, err := s.count(ctx, &decision, domain.IPIdentity(ip), decision.IPMinuteLimit, decision.IPHourLimit, now)
	decision.IPMinute, decision.IPHour = counts.minute, counts.hour
	if err != nil || decision.Limited {
		return decision, err
	}

	if authenticated {
		decision.Remaining = remaining(*decision.UserMinute, *decision.UserHour, rule.RequestsPerMinute, rule.RequestsPerHour)
	} else {
		decision.Remaining = remaining(counts.minute, counts.hour, decision.IPMinuteLimit, decision.IPHourLimit)
	}

	return decision, nil
}

type windowCounts struct {
	minute int64
	hour   int64
}

// count runs the minute-then-hour check of one identity. On rejection the
// decision is filled in and a *domain.RateLimitExceededError is returned.
func (s *RateLimiterService) count(ctx context.Context, decision *domain.Decision, identity domain.Identity, minuteLimit, hourLimit int, now time.Time) (windowCounts, error) {
	var counts windowCounts

	for _, window := range []domain.Window{domain.WindowMinute, domain.WindowHour} {
		n, err := s.storage.Increment(ctx, domain.NewCounterKey(identity, window, decision.Endpoint, now))
		if err != nil {
			return counts, fmt.Errorf("increment %s %s counter: %w", identity.Scope, window, err)
		}

		limit := minuteLimit
		if window == domain.WindowHour {
			counts.hour = n
			limit = hourLimit
		} else {
			counts.minute = n
		}

		if n > int64(limit) {
			decision.Limited = true
			decision.LimitType = domain.NewLimitType(identity.Scope, window)
			decision.RetryAfterSeconds = window.RetryAfter(now)
			return counts, &domain.RateLimitExceededError{
				LimitType:         decision.LimitType,
				RetryAfterSeconds: decision.RetryAfterSeconds,
				Message:           decision.AppliedRule.Message,
			}
		}
	}

	return counts, nil
}

// ipLimit is the IP ceiling: half the rule for anonymous callers under strict
// limits, double the rule for authenticated callers.
func (s *RateLimiterService) ipLimit(limit int, authenticated bool) int {
	if authenticated {
		return limit * 2
	}
	if s.config.StrictAnonymousLimits {
		return limit / 2
	}
	return limit
}

func remaining(minute, hour int64, minuteLimit, hourLimit int) int {
	left := min(int64(minuteLimit)-minute, int64(hourLimit)-hour)
	if left < 0 {
		return 0
	}
	return int(left)
}
