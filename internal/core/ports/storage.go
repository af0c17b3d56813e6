// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
)

// CounterStore increments fixed-window counters. Increment must be atomic per
// key and must expire the counter key.Window.Duration() after its first write.
type CounterStore interface {
	Increment(ctx context.Context, key domain.CounterKey) (int64, error)
}
