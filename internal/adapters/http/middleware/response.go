package middleware

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
)

const rateLimitExceededError = "Rate limit exceeded"

type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
	LimitType         string `json:"limitType"`
}

func writeTooManyRequests(w http.ResponseWriter, exceeded *domain.RateLimitExceededError) {
	body, _ := json.Marshal(rateLimitResponse{
		Error:             rateLimitExceededError,
		Message:           exceeded.UserMessage(),
		RetryAfterSeconds: exceeded.RetryAfterSeconds,
		LimitType:         string(exceeded.LimitType),
	})

	w.Header().Set("Retry-After", strconv.Itoa(exceeded.RetryAfterSeconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write(body)
}

func writeInternalError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func perWindow(minute, hour int64) string {
	return strconv.FormatInt(minute, 10) + "/minute, " + strconv.FormatInt(hour, 10) + "/hour"
}
