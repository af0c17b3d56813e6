// Package metrics exporta as decisões do rate limiter para o Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
)

const metricNamespace = "ratelimit"

const (
	outcomeAdmitted = "admitted"
	outcomeLimited  = "limited"
	outcomeSkipped  = "skipped"
	outcomeError    = "error"
)

// Prometheus implements ports.Metrics.
type Prometheus struct {
	requests *prometheus.CounterVec
	limited  *prometheus.CounterVec
	duration prometheus.Histogram
}

var _ ports.Metrics = (*Prometheus)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "requests_total",
			Help:      "Requests seen by the rate limiter by outcome.",
		}, []string{"outcome"}),
		limited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "limited_total",
			Help:      "Rejected requests by violated limit.",
		}, []string{"limit_type"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating limits, counter store included.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		}),
	}

	for _, c := range []prometheus.Collector{p.requests, p.limited, p.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveSkipped() {
	p.requests.WithLabelValues(outcomeSkipped).Inc()
}

func (p *Prometheus) ObserveDecision(decision domain.Decision, elapsed time.Duration) {
	p.duration.Observe(elapsed.Seconds())
	if decision.Limited {
		p.requests.WithLabelValues(outcomeLimited).Inc()
		p.limited.WithLabelValues(string(decision.LimitType)).Inc()
		return
	}
	p.requests.WithLabelValues(outcomeAdmitted).Inc()
}

func (p *Prometheus) ObserveError() {
	p.requests.WithLabelValues(outcomeError).Inc()
}
