// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	RateLimiter RateLimiterConfig
	Auth        AuthConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type          string
	Redis         RedisConfig
	MemoryMaxKeys int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type RateLimiterConfig struct {
	Enabled               bool
	PerUser               bool
	GlobalMultiplier      float64
	StrictAnonymousLimits bool
	WhitelistedIPs        []string
	WhitelistedUsers      []string
	// TrustedProxies may set forwarding headers used for whitelist matching.
	TrustedProxies []string
	FailOpen       bool
	// Rules is the seed table followed by the rules file entries.
	Rules []domain.EndpointRule
	// Upload is the per-route budget of the file upload endpoints.
	Upload domain.RateLimitRule
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

type LogConfig struct {
	Level  string
	Format string
}

var defaults = map[string]any{
	"SERVER_PORT":                  "8080",
	"STORAGE_TYPE":                 "memory",
	"REDIS_HOST":                   "localhost",
	"REDIS_PORT":                   "6379",
	"REDIS_DB":                     "0",
	"MEMORY_MAX_KEYS":              "0",
	"RATE_LIMIT_ENABLED":           "true",
	"RATE_LIMIT_PER_USER":          "true",
	"RATE_LIMIT_GLOBAL_MULTIPLIER": "1.0",
	"RATE_LIMIT_STRICT_ANONYMOUS":  "true",
	"RATE_LIMIT_FAIL_OPEN":         "true",
	"RATE_LIMIT_UPLOAD_PER_MINUTE": "10",
	"RATE_LIMIT_UPLOAD_PER_HOUR":   "100",
	"RATE_LIMIT_UPLOAD_MESSAGE":    "Rate limit exceeded. Please try again later.",
	"LOG_LEVEL":                    "info",
	"LOG_FORMAT":                   "json",
}

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	storage, err := buildStorageConfig(v)
	if err != nil {
		return Config{}, err
	}

	rateLimiter, err := buildRateLimiterConfig(v)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server:      ServerConfig{Port: getString(v, "SERVER_PORT")},
		Storage:     storage,
		RateLimiter: rateLimiter,
		Auth: AuthConfig{
			JWTSecret:   getString(v, "AUTH_JWT_SECRET"),
			JWTIssuer:   getString(v, "AUTH_JWT_ISSUER"),
			JWTAudience: getString(v, "AUTH_JWT_AUDIENCE"),
		},
		Log: LogConfig{
			Level:  getString(v, "LOG_LEVEL"),
			Format: getString(v, "LOG_FORMAT"),
		},
	}, nil
}

func buildStorageConfig(v *viper.Viper) (StorageConfig, error) {
	port, err := getInt(v, "REDIS_PORT")
	if err != nil {
		return StorageConfig{}, err
	}
	db, err := getInt(v, "REDIS_DB")
	if err != nil {
		return StorageConfig{}, err
	}
	maxKeys, err := getInt(v, "MEMORY_MAX_KEYS")
	if err != nil {
		return StorageConfig{}, err
	}

	storageType := strings.ToLower(getString(v, "STORAGE_TYPE"))
	if storageType != "memory" && storageType != "redis" {
		return StorageConfig{}, fmt.Errorf("unsupported STORAGE_TYPE: %s", storageType)
	}

	return StorageConfig{
		Type: storageType,
		Redis: RedisConfig{
			Host:     getString(v, "REDIS_HOST"),
			Port:     port,
			Password: getString(v, "REDIS_PASSWORD"),
			DB:       db,
		},
		MemoryMaxKeys: maxKeys,
	}, nil
}

func buildRateLimiterConfig(v *viper.Viper) (RateLimiterConfig, error) {
	var (
		cfg RateLimiterConfig
		err error
	)

	bools := []struct {
		key  string
		dest *bool
	}{
		{"RATE_LIMIT_ENABLED", &cfg.Enabled},
		{"RATE_LIMIT_PER_USER", &cfg.PerUser},
		{"RATE_LIMIT_STRICT_ANONYMOUS", &cfg.StrictAnonymousLimits},
		{"RATE_LIMIT_FAIL_OPEN", &cfg.FailOpen},
	}
	for _, b := range bools {
		if *b.dest, err = getBool(v, b.key); err != nil {
			return RateLimiterConfig{}, err
		}
	}

	cfg.GlobalMultiplier, err = cast.ToFloat64E(getString(v, "RATE_LIMIT_GLOBAL_MULTIPLIER"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_GLOBAL_MULTIPLIER: %w", err)
	}
	if m := cfg.GlobalMultiplier; m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return RateLimiterConfig{}, fmt.Errorf("RATE_LIMIT_GLOBAL_MULTIPLIER must be a positive finite number, got %v", m)
	}

	cfg.WhitelistedIPs = splitList(getString(v, "RATE_LIMIT_WHITELISTED_IPS"))
	cfg.WhitelistedUsers = splitList(getString(v, "RATE_LIMIT_WHITELISTED_USERS"))
	cfg.TrustedProxies = splitList(getString(v, "RATE_LIMIT_TRUSTED_PROXIES"))

	fileRules, err := LoadRulesFile(getString(v, "RATE_LIMIT_RULES_FILE"))
	if err != nil {
		return RateLimiterConfig{}, err
	}
	cfg.Rules = append(domain.DefaultRules(), fileRules...)

	if cfg.Upload.RequestsPerMinute, err = getInt(v, "RATE_LIMIT_UPLOAD_PER_MINUTE"); err != nil {
		return RateLimiterConfig{}, err
	}
	if cfg.Upload.RequestsPerHour, err = getInt(v, "RATE_LIMIT_UPLOAD_PER_HOUR"); err != nil {
		return RateLimiterConfig{}, err
	}
	cfg.Upload.Message = getString(v, "RATE_LIMIT_UPLOAD_MESSAGE")
	if err := cfg.Upload.Validate(); err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid upload rate limit: %w", err)
	}

	return cfg, nil
}

type rulesFile struct {
	Rules []domain.EndpointRule `mapstructure:"rules"`
}

// LoadRulesFile reads endpoint rules from a YAML or JSON file. An empty path
// yields no rules.
func LoadRulesFile(path string) ([]domain.EndpointRule, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var file rulesFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	for i, rule := range file.Rules {
		if strings.TrimSpace(rule.Method) == "" {
			return nil, fmt.Errorf("rule %d in %s has no method", i, path)
		}
		if err := rule.Rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d in %s: %w", i, path, err)
		}
	}
	return file.Rules, nil
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func getInt(v *viper.Viper, key string) (int, error) {
	value, err := cast.ToIntE(getString(v, key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getBool(v *viper.Viper, key string) (bool, error) {
	value, err := cast.ToBoolE(getString(v, key))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
