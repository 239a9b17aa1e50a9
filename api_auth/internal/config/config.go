// Package config assembles the warden service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icedoutskay/grainlify/pkg/clients/github"
	pkgconfig "github.com/icedoutskay/grainlify/pkg/config"
	fieldcrypt "github.com/icedoutskay/grainlify/pkg/crypto"
)

// Config is everything main needs to wire the service. Secrets are carried
// here and handed to constructors; nothing below main reads the environment.
type Config struct {
	Port               string
	GinMode            string
	DatabaseURL        string
	AutoMigrate        bool
	JWTSecret          []byte
	TokenEncryptionKey []byte
	NonceTTL           time.Duration
	JWTTTL             time.Duration
	NoncePruneInterval time.Duration
	RequestTimeout     time.Duration
	RedisURL           string
	NonceRateLimit     int
	NonceRateWindow    time.Duration
	GitHubAPIURL       string
}

// Load reads the configuration. Missing secrets and malformed keys are
// reported together.
func Load() (Config, error) {
	cfg := Config{
		Port:               pkgconfig.GetEnv("PORT", "18080"),
		GinMode:            pkgconfig.GetEnv("GIN_MODE", "release"),
		DatabaseURL:        pkgconfig.GetEnv("DATABASE_URL", ""),
		AutoMigrate:        pkgconfig.GetEnvBool("AUTO_MIGRATE", false),
		JWTSecret:          []byte(pkgconfig.GetEnv("JWT_SECRET", "")),
		NonceTTL:           pkgconfig.GetEnvDuration("NONCE_TTL", 10*time.Minute),
		JWTTTL:             pkgconfig.GetEnvDuration("JWT_TTL", 15*time.Minute),
		NoncePruneInterval: pkgconfig.GetEnvDuration("NONCE_PRUNE_INTERVAL", 15*time.Minute),
		RequestTimeout:     pkgconfig.GetEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		RedisURL:           pkgconfig.GetEnv("REDIS_URL", ""),
		NonceRateLimit:     pkgconfig.GetEnvInt("NONCE_RATE_LIMIT", 10),
		NonceRateWindow:    pkgconfig.GetEnvDuration("NONCE_RATE_WINDOW", time.Minute),
		GitHubAPIURL:       strings.TrimRight(pkgconfig.GetEnv("GITHUB_API_URL", github.DefaultBaseURL), "/"),
	}

	var errs []error
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(cfg.JWTSecret) == 0 {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if raw := pkgconfig.GetEnv("TOKEN_ENC_KEY_B64", ""); raw == "" {
		errs = append(errs, errors.New("TOKEN_ENC_KEY_B64 is required"))
	} else if key, err := fieldcrypt.ParseKey(raw); err != nil {
		errs = append(errs, fmt.Errorf("TOKEN_ENC_KEY_B64: %w", err))
	} else {
		cfg.TokenEncryptionKey = key
	}
	if cfg.NonceTTL <= 0 {
		errs = append(errs, errors.New("NONCE_TTL must be positive"))
	}
	if cfg.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}

	return cfg, errors.Join(errs...)
}

// RateLimitEnabled reports whether nonce issuance should be throttled.
func (c Config) RateLimitEnabled() bool {
	return c.RedisURL != "" && c.NonceRateLimit > 0
}
