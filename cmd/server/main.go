package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/auth"
	httpMiddleware "github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/middleware"
	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/router"
	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/metrics"
	memorystorage "github.com/JeanGrijp/pet-rate-limiter/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/pet-rate-limiter/internal/adapters/storage/redis"
	"github.com/JeanGrijp/pet-rate-limiter/internal/config"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/services"
	"github.com/JeanGrijp/pet-rate-limiter/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	l, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init logger")
	}
	logger.Install(l)

	storage, closeFn, err := initStorage(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	defer closeFn()

	rules, err := domain.NewRuleTable(cfg.RateLimiter.Rules, cfg.RateLimiter.GlobalMultiplier)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build rule table")
	}

	limiter, err := services.NewRateLimiterService(storage, services.Config{
		Rules:                 rules,
		StrictAnonymousLimits: cfg.RateLimiter.StrictAnonymousLimits,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create limiter")
	}

	uploadLimiter, err := services.NewActionLimiter(storage, services.ActionConfig{
		Rule:      cfg.RateLimiter.Upload.Scale(cfg.RateLimiter.GlobalMultiplier),
		KeyPrefix: "upload",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create upload limiter")
	}

	validator, err := initValidator(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init auth")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.New(registry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	handler := router.New(router.Deps{
		Limiter:       limiter,
		UploadLimiter: uploadLimiter,
		Validator:     validator,
		Gatherer:      registry,
		Logger:        l,
		LimiterOptions: []httpMiddleware.Option{
			httpMiddleware.WithEnabled(cfg.RateLimiter.Enabled),
			httpMiddleware.WithPerUser(cfg.RateLimiter.PerUser),
			httpMiddleware.WithFailOpen(cfg.RateLimiter.FailOpen),
			httpMiddleware.WithWhitelist(cfg.RateLimiter.WhitelistedIPs, cfg.RateLimiter.WhitelistedUsers),
			httpMiddleware.WithTrustedProxies(cfg.RateLimiter.TrustedProxies...),
			httpMiddleware.WithMetrics(recorder),
		},
		UploadOptions: httpMiddleware.ActionOptions{
			PerUser:  cfg.RateLimiter.PerUser,
			FailOpen: cfg.RateLimiter.FailOpen,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("storage", cfg.Storage.Type).
			Int("rules", rules.Len()).
			Bool("enabled", cfg.RateLimiter.Enabled).
			Msg("server listening")
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func initStorage(cfg config.StorageConfig) (ports.CounterStore, func(), error) {
	switch cfg.Type {
	case "redis":
		redisCfg := redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		storage, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			if err := storage.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis storage")
			}
		}, nil
	case "memory":
		storage := memorystorage.New(memorystorage.Config{MaxKeys: cfg.MemoryMaxKeys})
		return storage, func() { _ = storage.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func initValidator(cfg config.AuthConfig) (*auth.Validator, error) {
	if cfg.JWTSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET not set, all requests are rate limited by IP")
		return nil, nil
	}
	return auth.NewValidator(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
}
