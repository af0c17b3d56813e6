package services

import (
	"context"
	"fmt"
	"time"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
)

const (
	defaultActionKeyPrefix = "rate_limit"
	defaultActionMessage   = "Rate limit exceeded. Please try again later."
)

// ActionConfig is the budget of a single route.
type ActionConfig struct {
	Rule      domain.RateLimitRule
	KeyPrefix string
	Now       func() time.Time
}

// ActionLimiter applies one fixed rule to a single identity, independent of
// the endpoint table. Counters are shared by every route using the same key
// prefix.
type ActionLimiter struct {
	storage ports.CounterStore
	config  ActionConfig
}

var _ ports.ActionLimiter = (*ActionLimiter)(nil)

func NewActionLimiter(storage ports.CounterStore, cfg ActionConfig) (*ActionLimiter, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if err := cfg.Rule.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rule.Message == "" {
		cfg.Rule.Message = defaultActionMessage
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultActionKeyPrefix
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ActionLimiter{storage: storage, config: cfg}, nil
}

// Check counts one request of identity. The hour counter is only touched when
// the minute budget still holds.
func (a *ActionLimiter) Check(ctx context.Context, identity domain.Identity) (domain.ActionDecision, error) {
	now := a.config.Now()
	decision := domain.ActionDecision{Rule: a.config.Rule}
	prefix := domain.EndpointKey(a.config.KeyPrefix)

	minute, err := a.storage.Increment(ctx, domain.NewCounterKey(identity, domain.WindowMinute, prefix, now))
	if err != nil {
		return decision, fmt.Errorf("increment action minute counter: %w", err)
	}
	decision.MinuteCount = minute
	if minute > int64(a.config.Rule.RequestsPerMinute) {
		return a.reject(decision, domain.WindowMinute, now)
	}

	hour, err := a.storage.Increment(ctx, domain.NewCounterKey(identity, domain.WindowHour, prefix, now))
	if err != nil {
		return decision, fmt.Errorf("increment action hour counter: %w", err)
	}
	decision.HourCount = hour
	if hour > int64(a.config.Rule.RequestsPerHour) {
		return a.reject(decision, domain.WindowHour, now)
	}

	return decision, nil
}

func (a *ActionLimiter) reject(decision domain.ActionDecision, window domain.Window, now time.Time) (domain.ActionDecision, error) {
	decision.Limited = true
	decision.Window = window
	decision.RetryAfterSeconds = window.RetryAfter(now)
	return decision, &domain.RateLimitExceededError{
		LimitType:         domain.LimitType(window),
		RetryAfterSeconds: decision.RetryAfterSeconds,
		Message:           a.config.Rule.Message,
	}
}
