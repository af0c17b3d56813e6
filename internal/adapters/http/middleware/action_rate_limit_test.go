package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/auth"
	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/storage/memory"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/services"
)

func newActionHandler(t *testing.T, rule domain.RateLimitRule, opts ActionOptions) http.Handler {
	t.Helper()
	limiter, err := services.NewActionLimiter(memory.New(memory.Config{}), services.ActionConfig{
		Rule:      rule,
		KeyPrefix: "upload",
		Now: func() time.Time {
			return time.Date(2024, 1, 15, 14, 30, 5, 0, time.UTC)
		},
	})
	require.NoError(t, err)

	logger := zerolog.Nop()
	opts.Logger = &logger
	return NewActionRateLimit(limiter, opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
}

func TestActionRateLimit_HeadersAndRejection(t *testing.T) {
	h := newActionHandler(t, domain.RateLimitRule{RequestsPerMinute: 2, RequestsPerHour: 10}, ActionOptions{PerUser: true})

	rec := doRequest(h, http.MethodPost, "/api/v1/files/upload", "10.0.0.1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2/minute, 10/hour", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining-Minute"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining-Hour"))

	require.Equal(t, http.StatusCreated, doRequest(h, http.MethodPost, "/api/v1/files/upload", "10.0.0.1", nil).Code)

	rec = doRequest(h, http.MethodPost, "/api/v1/files/upload", "10.0.0.1", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "minute", body.LimitType)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", body.Message)
	assert.Equal(t, 55, body.RetryAfterSeconds)
	assert.Equal(t, "55", rec.Header().Get("Retry-After"))
}

func TestActionRateLimit_PerUserIdentity(t *testing.T) {
	h := newActionHandler(t, domain.RateLimitRule{RequestsPerMinute: 1, RequestsPerHour: 10}, ActionOptions{PerUser: true})

	alice := &auth.Principal{Subject: "alice"}
	bob := &auth.Principal{Subject: "bob"}
	require.Equal(t, http.StatusCreated, doRequest(h, http.MethodPost, "/upload", "10.0.0.1", alice).Code)
	require.Equal(t, http.StatusCreated, doRequest(h, http.MethodPost, "/upload", "10.0.0.1", bob).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, http.MethodPost, "/upload", "10.0.0.1", alice).Code)
}

func TestActionRateLimit_PerIPIdentity(t *testing.T) {
	h := newActionHandler(t, domain.RateLimitRule{RequestsPerMinute: 1, RequestsPerHour: 10}, ActionOptions{PerUser: false})

	require.Equal(t, http.StatusCreated, doRequest(h, http.MethodPost, "/upload", "10.0.0.1", &auth.Principal{Subject: "alice"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, http.MethodPost, "/upload", "10.0.0.1", &auth.Principal{Subject: "bob"}).Code)
}

func TestActionRateLimit_SkipForAuthenticated(t *testing.T) {
	h := newActionHandler(t, domain.RateLimitRule{RequestsPerMinute: 1, RequestsPerHour: 1}, ActionOptions{SkipForAuthenticated: true})

	alice := &auth.Principal{Subject: "alice"}
	for i := 0; i < 3; i++ {
		rec := doRequest(h, http.MethodPost, "/upload", "10.0.0.1", alice)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}

	require.Equal(t, http.StatusCreated, doRequest(h, http.MethodPost, "/upload", "10.0.0.1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, http.MethodPost, "/upload", "10.0.0.1", nil).Code)
}

func TestActionRateLimit_NilLimiter(t *testing.T) {
	h := NewActionRateLimit(nil, ActionOptions{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
