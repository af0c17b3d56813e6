package domain

import (
	"fmt"
	"math"
	"strings"
)

// DefaultRuleKey names the fallback rule used when no endpoint matches.
const DefaultRuleKey EndpointKey = "DEFAULT"

// RateLimitRule is the per-minute and per-hour budget of an endpoint.
type RateLimitRule struct {
	RequestsPerMinute int    `mapstructure:"requestsPerMinute" json:"requestsPerMinute"`
	RequestsPerHour   int    `mapstructure:"requestsPerHour" json:"requestsPerHour"`
	Message           string `mapstructure:"message" json:"message,omitempty"`
}

// Limit returns the budget of the given window.
func (r RateLimitRule) Limit(w Window) int {
	if w == WindowHour {
		return r.RequestsPerHour
	}
	return r.RequestsPerMinute
}

func (r RateLimitRule) Validate() error {
	if r.RequestsPerMinute <= 0 || r.RequestsPerHour <= 0 {
		return fmt.Errorf("rule must have positive limits, got %d/minute %d/hour", r.RequestsPerMinute, r.RequestsPerHour)
	}
	return nil
}

// Scale multiplies both budgets, rounding up and never going below one.
func (r RateLimitRule) Scale(multiplier float64) RateLimitRule {
	if !validMultiplier(multiplier) || multiplier == 1 {
		return r
	}
	r.RequestsPerMinute = scaleLimit(r.RequestsPerMinute, multiplier)
	r.RequestsPerHour = scaleLimit(r.RequestsPerHour, multiplier)
	return r
}

func validMultiplier(m float64) bool {
	return m > 0 && !math.IsNaN(m) && !math.IsInf(m, 0)
}

func scaleLimit(limit int, multiplier float64) int {
	scaled := int(math.Ceil(float64(limit) * multiplier))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// EndpointRule binds a method and path pattern to a rule. Path patterns may
// use {id} or concrete identifiers; both canonicalize to the same key.
type EndpointRule struct {
	Method string        `mapstructure:"method" json:"method"`
	Path   string        `mapstructure:"path" json:"path"`
	Rule   RateLimitRule `mapstructure:",squash"`
}

func (e EndpointRule) Key() EndpointKey {
	if strings.EqualFold(strings.TrimSpace(e.Method), string(DefaultRuleKey)) {
		return DefaultRuleKey
	}
	return ClassifyEndpoint(e.Method, e.Path)
}

// DefaultRules is the seed table of the marketplace API.
func DefaultRules() []EndpointRule {
	return []EndpointRule{
		// messaging
		{Method: "POST", Path: "/api/v1/messaging/send", Rule: RateLimitRule{RequestsPerMinute: 30, RequestsPerHour: 500}},
		{Method: "GET", Path: "/api/v1/messaging/conversations/{id}/messages", Rule: RateLimitRule{RequestsPerMinute: 60, RequestsPerHour: 1000}},
		{Method: "POST", Path: "/api/v1/messaging/messages/{id}/read", Rule: RateLimitRule{RequestsPerMinute: 100, RequestsPerHour: 2000}},
		{Method: "PUT", Path: "/api/v1/messaging/messages/{id}/edit", Rule: RateLimitRule{RequestsPerMinute: 20, RequestsPerHour: 200}},
		{Method: "DELETE", Path: "/api/v1/messaging/messages/{id}", Rule: RateLimitRule{RequestsPerMinute: 10, RequestsPerHour: 100}},
		{Method: "POST", Path: "/api/v1/messaging/search", Rule: RateLimitRule{RequestsPerMinute: 30, RequestsPerHour: 300}},

		// conversations
		{Method: "POST", Path: "/api/v1/conversations", Rule: RateLimitRule{RequestsPerMinute: 5, RequestsPerHour: 50}},
		{Method: "GET", Path: "/api/v1/conversations", Rule: RateLimitRule{RequestsPerMinute: 30, RequestsPerHour: 500}},
		{Method: "PUT", Path: "/api/v1/conversations/{id}", Rule: RateLimitRule{RequestsPerMinute: 10, RequestsPerHour: 100}},
		{Method: "POST", Path: "/api/v1/conversations/{id}/participants", Rule: RateLimitRule{RequestsPerMinute: 10, RequestsPerHour: 100}},

		// files
		{Method: "POST", Path: "/api/v1/files/upload", Rule: RateLimitRule{RequestsPerMinute: 20, RequestsPerHour: 200}},
		{Method: "POST", Path: "/api/v1/files/upload/multiple", Rule: RateLimitRule{RequestsPerMinute: 10, RequestsPerHour: 100}},

		// voice
		{Method: "POST", Path: "/api/v1/voice/start-recording", Rule: RateLimitRule{RequestsPerMinute: 15, RequestsPerHour: 150}},
		{Method: "POST", Path: "/api/v1/voice/stop-recording", Rule: RateLimitRule{RequestsPerMinute: 15, RequestsPerHour: 150}},

		// push notifications
		{Method: "POST", Path: "/api/v1/notifications/register", Rule: RateLimitRule{RequestsPerMinute: 5, RequestsPerHour: 20}},

		{Method: string(DefaultRuleKey), Rule: RateLimitRule{RequestsPerMinute: 60, RequestsPerHour: 1000}},
	}
}

// RuleTable is an immutable lookup from EndpointKey to RateLimitRule.
type RuleTable struct {
	rules    map[EndpointKey]RateLimitRule
	fallback RateLimitRule
}

// NewRuleTable builds a table from rules, later entries overriding earlier
// ones with the same key. Every rule is scaled by multiplier. A DEFAULT entry
// is required.
func NewRuleTable(rules []EndpointRule, multiplier float64) (*RuleTable, error) {
	if !validMultiplier(multiplier) {
		return nil, fmt.Errorf("global multiplier must be a positive finite number, got %v", multiplier)
	}

	table := &RuleTable{rules: make(map[EndpointKey]RateLimitRule, len(rules))}
	for _, entry := range rules {
		if err := entry.Rule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule for %s %s: %w", entry.Method, entry.Path, err)
		}
		table.rules[entry.Key()] = entry.Rule.Scale(multiplier)
	}

	fallback, ok := table.rules[DefaultRuleKey]
	if !ok {
		return nil, fmt.Errorf("rule table requires a %s entry", DefaultRuleKey)
	}
	table.fallback = fallback
	return table, nil
}

// Lookup returns the rule registered for key, or the DEFAULT rule.
func (t *RuleTable) Lookup(key EndpointKey) RateLimitRule {
	if rule, ok := t.rules[key]; ok {
		return rule
	}
	return t.fallback
}

func (t *RuleTable) Len() int {
	return len(t.rules)
}
