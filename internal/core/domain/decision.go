package domain

// LimitType names the counter that rejected a request.
type LimitType string

const (
	LimitUserMinute LimitType = "user_minute"
	LimitUserHour   LimitType = "user_hour"
	LimitIPMinute   LimitType = "ip_minute"
	LimitIPHour     LimitType = "ip_hour"
)

// NewLimitType combines a scope and a window.
func NewLimitType(scope Scope, window Window) LimitType {
	return LimitType(string(scope) + "_" + string(window))
}

// RateLimitRequest is the input of the limit evaluator.
type RateLimitRequest struct {
	Identity Identity
	IP       string
	Endpoint EndpointKey
}

// Decision is the outcome of one evaluation. Counts are post-increment.
type Decision struct {
	Limited           bool
	LimitType         LimitType
	RetryAfterSeconds int
	Remaining         int

	Identity    Identity
	Endpoint    EndpointKey
	AppliedRule RateLimitRule

	// User counts are nil for anonymous requests.
	UserMinute *int64
	UserHour   *int64
	IPMinute   int64
	IPHour     int64

	IPMinuteLimit int
	IPHourLimit   int
}

// UserScoped reports whether user counters took part in the decision.
func (d Decision) UserScoped() bool {
	return d.UserMinute != nil
}

// ActionDecision is the outcome of a single-rule route check.
type ActionDecision struct {
	Limited           bool
	Window            Window
	RetryAfterSeconds int
	MinuteCount       int64
	HourCount         int64
	Rule              RateLimitRule
}

func (d ActionDecision) RemainingMinute() int64 {
	return int64(d.Rule.RequestsPerMinute) - d.MinuteCount
}

func (d ActionDecision) RemainingHour() int64 {
	return int64(d.Rule.RequestsPerHour) - d.HourCount
}
