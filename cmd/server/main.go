// Copyright 2026 The Ghostgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghostgate/ghostgate/internal/audit"
	"github.com/ghostgate/ghostgate/internal/config"
	"github.com/ghostgate/ghostgate/internal/consent"
	"github.com/ghostgate/ghostgate/internal/identity"
	"github.com/ghostgate/ghostgate/internal/observability/logger"
	"github.com/ghostgate/ghostgate/internal/observability/metrics"
	"github.com/ghostgate/ghostgate/internal/observability/tracing"
	"github.com/ghostgate/ghostgate/internal/ratelimit"
	"github.com/ghostgate/ghostgate/internal/store/postgres"
	"github.com/ghostgate/ghostgate/internal/tenant"
	"github.com/ghostgate/ghostgate/internal/token"
	transportHTTP "github.com/ghostgate/ghostgate/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting ghostgate identity authority")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	consentRepo := postgres.NewConsentRepository(db)
	tokenLogRepo := postgres.NewTokenLogRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	rateLimitRepo := postgres.NewRateLimitRepository(db, cfg.Issuer.RateLimitGranularity)

	// Audit events are persisted and mirrored to the structured log
	auditLogger := audit.NewRecorder(auditRepo)

	// Rate limiter backend for the issuance budget
	var limiter ratelimit.Limiter = rateLimitRepo
	if cfg.Issuer.RateLimitBackend == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		limiter = ratelimit.NewRedisLimiter(redisClient, "rl:")
		slog.Info("using redis rate limiter backend")
	}

	// Initialize helpers
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	masterSecret := []byte(cfg.Issuer.MasterSecret)
	credentialSigner := identity.NewCredentialSigner(masterSecret, cfg.Issuer.CredentialTTL)

	// Initialize services
	identityService := identity.NewService(userRepo, passwordHasher, credentialSigner, nil, auditLogger)
	tenantService := tenant.NewService(
		tenantRepo,
		auditLogger,
		cfg.Issuer.MaxTenantsPerOwner,
		cfg.Issuer.TenantCacheTTL,
		tenant.Defaults{
			TokenTTLSeconds:    int(cfg.Issuer.DefaultTokenTTL / time.Second),
			TokenFormatVersion: cfg.Issuer.TokenFormatVersion,
			RateLimitPerHour:   cfg.Issuer.DefaultRateLimit,
		},
	)
	consentService := consent.NewService(consentRepo, auditLogger)
	ledger := token.NewLedger(tokenLogRepo, auditLogger)
	issuer := token.NewIssuer(
		token.IssuerConfig{
			MasterSecret:     masterSecret,
			DefaultTokenTTL:  cfg.Issuer.DefaultTokenTTL,
			DefaultRateLimit: cfg.Issuer.DefaultRateLimit,
			RateLimitWindow:  cfg.Issuer.RateLimitWindow,
		},
		tenantService,
		consentService,
		limiter,
		ledger,
		tokenLogRepo,
		auditLogger,
		slog.Default(),
	)

	// Per-IP transport limiter
	rateLimiter := transportHTTP.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		tenantService,
		consentService,
		issuer,
		ledger,
		cfg.Security.AdminCredential,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Purge stale rate buckets periodically. Purge failure never blocks the
	// check path; it is retried on the next tick.
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-cfg.Issuer.RateLimitWindow)
			if _, err := rateLimitRepo.DeleteExpired(ctx, cutoff); err != nil {
				slog.ErrorContext(ctx, "failed to purge rate buckets", logger.Error(err))
			}
		}
	}()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
