package domain

import (
	"errors"
	"fmt"
)

// ErrRateLimitExceeded matches any *RateLimitExceededError with errors.Is.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitExceededError carries the violated limit and the wait before retry.
type RateLimitExceededError struct {
	LimitType         LimitType
	RetryAfterSeconds int
	Message           string
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s, retry after %ds", e.LimitType, e.RetryAfterSeconds)
}

func (e *RateLimitExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// UserMessage is the message shown to clients.
func (e *RateLimitExceededError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "Too many requests. Limit exceeded: " + string(e.LimitType)
}

func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

// AsRateLimitExceeded unwraps err into a *RateLimitExceededError.
func AsRateLimitExceeded(err error) (*RateLimitExceededError, bool) {
	var exceeded *RateLimitExceededError
	if errors.As(err, &exceeded) {
		return exceeded, true
	}
	return nil, false
}
