// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
)

type RateLimiter interface {
	Evaluate(ctx context.Context, req domain.RateLimitRequest) (domain.Decision, error)
}

// Metrics receives one observation per request seen by the HTTP layer.
type Metrics interface {
	ObserveSkipped()
	ObserveDecision(decision domain.Decision, elapsed time.Duration)
	ObserveError()
}

// ActionLimiter applies a single fixed rule to one identity.
type ActionLimiter interface {
	Check(ctx context.Context, identity domain.Identity) (domain.ActionDecision, error)
}
