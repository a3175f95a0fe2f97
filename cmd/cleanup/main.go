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

// Retention purge for operational records: expired token log entries, old
// audit events and stale rate buckets. Intended to run from cron.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ghostgate/ghostgate/internal/config"
	"github.com/ghostgate/ghostgate/internal/observability/logger"
	"github.com/ghostgate/ghostgate/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName + "-cleanup",
	})

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	now := time.Now()
	failed := false

	tokenLogRepo := postgres.NewTokenLogRepository(db)
	purged, err := tokenLogRepo.DeleteExpiredBefore(ctx, now.Add(-cfg.Retention.TokenLog))
	if err != nil {
		slog.Error("failed to purge token log", logger.Error(err))
		failed = true
	} else {
		slog.Info("purged token log entries", logger.RowsAffected(purged))
	}

	auditRepo := postgres.NewAuditRepository(db)
	purged, err = auditRepo.DeleteOlderThan(ctx, now.Add(-cfg.Retention.AuditEvents))
	if err != nil {
		slog.Error("failed to purge audit events", logger.Error(err))
		failed = true
	} else {
		slog.Info("purged audit events", logger.RowsAffected(purged))
	}

	rateLimitRepo := postgres.NewRateLimitRepository(db, cfg.Issuer.RateLimitGranularity)
	purged, err = rateLimitRepo.DeleteExpired(ctx, now.Add(-cfg.Issuer.RateLimitWindow))
	if err != nil {
		slog.Error("failed to purge rate buckets", logger.Error(err))
		failed = true
	} else {
		slog.Info("purged rate buckets", logger.RowsAffected(purged))
	}

	if failed {
		os.Exit(1)
	}
}
