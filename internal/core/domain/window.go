package domain

import (
	"net/url"
	"strings"
	"time"
)

// Window is the granularity of a fixed-window counter.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

const (
	minuteBucketLayout = "2006-01-02-15-04"
	hourBucketLayout   = "2006-01-02-15"
)

// Duration is the lifetime of a counter in this window.
func (w Window) Duration() time.Duration {
	if w == WindowHour {
		return time.Hour
	}
	return time.Minute
}

// Bucket returns the calendar-aligned bucket of t (in UTC).
func (w Window) Bucket(t time.Time) string {
	if w == WindowHour {
		return t.UTC().Format(hourBucketLayout)
	}
	return t.UTC().Format(minuteBucketLayout)
}

// RetryAfter is the number of seconds from t until the window containing t
// rolls over.
func (w Window) RetryAfter(t time.Time) int {
	t = t.UTC()
	if w == WindowHour {
		return (60-t.Minute())*60 - t.Second()
	}
	return 60 - t.Second()
}

// CounterKey identifies one fixed-window counter.
type CounterKey struct {
	Scope    Scope
	Identity string
	Window   Window
	Endpoint EndpointKey
	Bucket   string
}

// NewCounterKey builds the key of identity's counter for window at t.
func NewCounterKey(identity Identity, window Window, endpoint EndpointKey, t time.Time) CounterKey {
	return CounterKey{
		Scope:    identity.Scope,
		Identity: identity.Value,
		Window:   window,
		Endpoint: endpoint,
		Bucket:   window.Bucket(t),
	}
}

// String renders the key for external stores. Identity and endpoint are
// escaped so a ':' inside them cannot collide with the separators.
func (k CounterKey) String() string {
	var b strings.Builder
	b.WriteString("rate_limit:")
	b.WriteString(string(k.Scope))
	b.WriteByte(':')
	b.WriteString(url.QueryEscape(k.Identity))
	b.WriteByte(':')
	b.WriteString(string(k.Window))
	b.WriteByte(':')
	b.WriteString(k.Bucket)
	b.WriteByte(':')
	b.WriteString(url.QueryEscape(string(k.Endpoint)))
	return b.String()
}
