// Package memory disponibiliza a implementação do storage em memória, para um único nó.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
)

type Config struct {
	// MaxKeys bounds each window cache. Zero leaves the caches unbounded so
	// counters only leave on expiry. With a bound, least recently used
	// counters are evicted before their window closes and that identity
	// starts counting from zero again.
	MaxKeys int
	// MinuteTTL and HourTTL default to the window durations.
	MinuteTTL time.Duration
	HourTTL   time.Duration
}

// Storage keeps one expirable LRU per window. The expiry of a counter is fixed
// when it is first added; later increments do not extend it.
type Storage struct {
	mu     sync.Mutex
	minute *expirable.LRU[domain.CounterKey, *atomic.Int64]
	hour   *expirable.LRU[domain.CounterKey, *atomic.Int64]

	maxKeys   int
	evictions atomic.Int64
	logger    zerolog.Logger
}

var _ ports.CounterStore = (*Storage)(nil)

func New(cfg Config) *Storage {
	if cfg.MaxKeys < 0 {
		cfg.MaxKeys = 0
	}
	if cfg.MinuteTTL <= 0 {
		cfg.MinuteTTL = domain.WindowMinute.Duration()
	}
	if cfg.HourTTL <= 0 {
		cfg.HourTTL = domain.WindowHour.Duration()
	}

	return &Storage{
		minute: expirable.NewLRU[domain.CounterKey, *atomic.Int64](cfg.MaxKeys, nil, cfg.MinuteTTL),
		hour:   expirable.NewLRU[domain.CounterKey, *atomic.Int64](cfg.MaxKeys, nil, cfg.HourTTL),

		maxKeys: cfg.MaxKeys,
		logger:  log.Logger.Sample(&zerolog.BasicSampler{N: 1000}),
	}
}

func (s *Storage) Increment(_ context.Context, key domain.CounterKey) (int64, error) {
	cache := s.minute
	if key.Window == domain.WindowHour {
		cache = s.hour
	}

	s.mu.Lock()
	counter, ok := cache.Get(key)
	evicted := false
	if !ok {
		counter = new(atomic.Int64)
		evicted = cache.Add(key, counter)
	}
	s.mu.Unlock()

	if evicted {
		total := s.evictions.Add(1)
		s.logger.Warn().
			Int("max_keys", s.maxKeys).
			Int64("evictions", total).
			Str("window", string(key.Window)).
			Msg("memory storage full, evicted an open counter")
	}

	return counter.Add(1), nil
}

// Evictions returns how many counters were dropped by the size bound before
// their window closed.
func (s *Storage) Evictions() int64 {
	return s.evictions.Load()
}

// Len returns the number of live counters.
func (s *Storage) Len() int {
	return s.minute.Len() + s.hour.Len()
}

func (s *Storage) Close() error {
	s.minute.Purge()
	s.hour.Purge()
	return nil
}
