package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/icedoutskay/grainlify/api_auth/internal/config"
	"github.com/icedoutskay/grainlify/api_auth/internal/handlers"
	"github.com/icedoutskay/grainlify/api_auth/internal/service"
	"github.com/icedoutskay/grainlify/api_auth/internal/store"
	"github.com/icedoutskay/grainlify/api_auth/internal/vault"
	"github.com/icedoutskay/grainlify/api_auth/internal/worker"
	"github.com/icedoutskay/grainlify/pkg/clients/github"
	pkgconfig "github.com/icedoutskay/grainlify/pkg/config"
	fieldcrypt "github.com/icedoutskay/grainlify/pkg/crypto"
	"github.com/icedoutskay/grainlify/pkg/database"
	"github.com/icedoutskay/grainlify/pkg/logging"
	"github.com/icedoutskay/grainlify/pkg/middleware"
	"github.com/icedoutskay/grainlify/pkg/monitoring"
	"github.com/icedoutskay/grainlify/pkg/ratelimit"
	"github.com/icedoutskay/grainlify/pkg/redis"
	"github.com/icedoutskay/grainlify/pkg/server"
	"github.com/icedoutskay/grainlify/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("warden")

	// Load environment variables
	pkgconfig.LoadEnv(logger)

	logger.WithField("version", version.String()).Info("Starting Warden (wallet authentication)")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Database Connection ===
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(ctx, dbConfig, logger)
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logger.WithError(err).Fatal("Failed to apply schema")
		}
		logger.Info("Schema applied")
	}

	authStore := store.NewPostgresStore(db)

	enc, err := fieldcrypt.NewFieldEncryptor(cfg.TokenEncryptionKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create token encryptor")
	}
	tokenVault, err := vault.New(authStore, enc, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create vault")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("warden", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("warden", version.Version, version.GitCommit)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]bool{
		"JWT_SECRET":        len(cfg.JWTSecret) > 0,
		"TOKEN_ENC_KEY_B64": len(cfg.TokenEncryptionKey) == fieldcrypt.KeySize,
	}))

	opts := []service.Option{service.WithMetrics(service.NewMetrics(metricsCollector))}

	// === Optional nonce rate limiting ===
	var redisClient goredis.UniversalClient
	if cfg.RateLimitEnabled() {
		redisConfig, err := redis.ConfigFromURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Invalid REDIS_URL")
		}
		redisClient, err = redis.NewUniversalClient(ctx, redisConfig)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable; nonce rate limiting disabled")
		} else {
			defer redisClient.Close()
			healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
			opts = append(opts, service.WithRateLimiter(
				ratelimit.NewFixedWindow(redisClient, "warden:nonce:", cfg.NonceRateLimit, cfg.NonceRateWindow),
			))
			logger.WithFields(logging.Fields{
				"limit":  cfg.NonceRateLimit,
				"window": cfg.NonceRateWindow.String(),
			}).Info("Nonce rate limiting enabled")
		}
	}

	svc, err := service.New(service.Config{
		JWTSecret: cfg.JWTSecret,
		NonceTTL:  cfg.NonceTTL,
		JWTTTL:    cfg.JWTTTL,
	}, authStore, tokenVault, github.NewClient(cfg.GitHubAPIURL), logger, opts...)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create auth service")
	}

	// === HTTP Server ===
	serverConfig := server.DefaultConfig("warden", cfg.Port)
	serverConfig.GinMode = cfg.GinMode
	router := server.SetupServiceRouter(logger, serverConfig, healthChecker, metricsCollector)
	api := router.Group("", middleware.TimeoutMiddleware(cfg.RequestTimeout))
	handlers.New(svc, logger).Register(api, cfg.JWTSecret)

	// === Background Workers ===
	janitor := worker.NewNonceJanitor(svc, logger, cfg.NoncePruneInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx, serverConfig, router, logger) })
	g.Go(func() error { return janitor.Start(gctx) })

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("Warden stopped with error")
	}
	logger.Info("Warden stopped")
}
