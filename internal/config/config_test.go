package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 6379, cfg.Storage.Redis.Port)
	assert.Equal(t, 0, cfg.Storage.MemoryMaxKeys)

	rl := cfg.RateLimiter
	assert.True(t, rl.Enabled)
	assert.True(t, rl.PerUser)
	assert.True(t, rl.StrictAnonymousLimits)
	assert.True(t, rl.FailOpen)
	assert.Equal(t, 1.0, rl.GlobalMultiplier)
	assert.Empty(t, rl.WhitelistedIPs)
	assert.Len(t, rl.Rules, len(domain.DefaultRules()))
	assert.Equal(t, domain.RateLimitRule{RequestsPerMinute: 10, RequestsPerHour: 100, Message: "Rate limit exceeded. Please try again later."}, rl.Upload)

	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_TYPE", "Redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_GLOBAL_MULTIPLIER", "2.5")
	t.Setenv("RATE_LIMIT_STRICT_ANONYMOUS", "false")
	t.Setenv("RATE_LIMIT_WHITELISTED_IPS", "10.0.0.1, 10.1.0.0/16,")
	t.Setenv("RATE_LIMIT_WHITELISTED_USERS", "admin")
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "cache", cfg.Storage.Redis.Host)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.False(t, cfg.RateLimiter.Enabled)
	assert.False(t, cfg.RateLimiter.StrictAnonymousLimits)
	assert.Equal(t, 2.5, cfg.RateLimiter.GlobalMultiplier)
	assert.Equal(t, []string{"10.0.0.1", "10.1.0.0/16"}, cfg.RateLimiter.WhitelistedIPs)
	assert.Equal(t, []string{"admin"}, cfg.RateLimiter.WhitelistedUsers)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.RateLimiter.TrustedProxies)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"REDIS_PORT":                   "not-a-port",
		"RATE_LIMIT_ENABLED":           "maybe",
		"RATE_LIMIT_GLOBAL_MULTIPLIER": "0",
		"STORAGE_TYPE":                 "etcd",
		"RATE_LIMIT_UPLOAD_PER_HOUR":   "0",
		"RATE_LIMIT_RULES_FILE":        "/does/not/exist.yaml",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsNonFiniteMultiplier(t *testing.T) {
	for _, value := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("RATE_LIMIT_GLOBAL_MULTIPLIER", value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRulesFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - method: GET
    path: /api/v1/dogs/{id}
    requestsPerMinute: 12
    requestsPerHour: 120
  - method: POST
    path: /api/v1/bookings
    requestsPerMinute: 3
    requestsPerHour: 30
    message: Booking limit reached
`), 0o600))

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, domain.EndpointKey("GET:/api/v1/dogs/{id}"), rules[0].Key())
	assert.Equal(t, domain.RateLimitRule{RequestsPerMinute: 12, RequestsPerHour: 120}, rules[0].Rule)
	assert.Equal(t, "Booking limit reached", rules[1].Rule.Message)

	t.Setenv("RATE_LIMIT_RULES_FILE", path)
	cfg, err := Load()
	require.NoError(t, err)

	table, err := domain.NewRuleTable(cfg.RateLimiter.Rules, cfg.RateLimiter.GlobalMultiplier)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Lookup(domain.ClassifyEndpoint("POST", "/api/v1/bookings")).RequestsPerMinute)
}

func TestLoadRulesFile_JSONAndValidation(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"rules":[{"method":"DEFAULT","requestsPerMinute":30,"requestsPerHour":300}]}`), 0o600))
	rules, err := LoadRulesFile(valid)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, domain.DefaultRuleKey, rules[0].Key())

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"rules":[{"method":"GET","path":"/x","requestsPerMinute":0,"requestsPerHour":1}]}`), 0o600))
	_, err = LoadRulesFile(invalid)
	assert.Error(t, err)

	rules, err = LoadRulesFile("")
	assert.NoError(t, err)
	assert.Nil(t, rules)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}
