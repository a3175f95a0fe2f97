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

package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/ghostgate/ghostgate/internal/ratelimit"
)

// RateLimitRepository implements ratelimit.Limiter and ratelimit.Purger on
// fixed-granularity buckets. Check runs inside one transaction holding a
// per-(identifier, action) advisory lock, so the window sum and the bucket
// increment are atomic with respect to concurrent callers: under N callers
// at the limit boundary, never more than max succeed.
type RateLimitRepository struct {
	db          *DB
	granularity time.Duration
}

// NewRateLimitRepository creates a bucket limiter with the given bucket
// granularity (typically one minute)
func NewRateLimitRepository(db *DB, granularity time.Duration) *RateLimitRepository {
	if granularity <= 0 {
		granularity = time.Minute
	}
	return &RateLimitRepository{db: db, granularity: granularity}
}

// Check sums the buckets inside the lookback window and increments the
// current bucket only when the sum is below max. Deny never increments.
func (r *RateLimitRepository) Check(ctx context.Context, identifier, action string, max int, window time.Duration) (ratelimit.Result, error) {
	now := time.Now().UTC()
	bucketStart := now.Truncate(r.granularity)
	windowStart := now.Add(-window)

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("failed to begin rate limit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// The advisory lock serializes concurrent checks for the same
	// identifier and action without blocking unrelated pairs. It is
	// released automatically at commit or rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(identifier, action)); err != nil {
		return ratelimit.Result{}, fmt.Errorf("failed to take rate limit lock: %w", err)
	}

	var count int64
	var oldest *time.Time
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(count), 0), MIN(window_start)
		FROM rate_buckets
		WHERE identifier = $1 AND action = $2 AND window_start > $3
	`, identifier, action, windowStart).Scan(&count, &oldest)
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("failed to sum rate buckets: %w", err)
	}

	if count >= int64(max) {
		resetAt := bucketStart.Add(r.granularity)
		if oldest != nil {
			resetAt = oldest.Add(window)
		}
		return ratelimit.Result{
			Allowed:      false,
			CurrentCount: count,
			ResetAt:      resetAt,
		}, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO rate_buckets (identifier, action, window_start, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (identifier, action, window_start)
		DO UPDATE SET count = rate_buckets.count + 1
	`, identifier, action, bucketStart); err != nil {
		return ratelimit.Result{}, fmt.Errorf("failed to increment rate bucket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ratelimit.Result{}, fmt.Errorf("failed to commit rate limit tx: %w", err)
	}

	return ratelimit.Result{
		Allowed:      true,
		CurrentCount: count + 1,
		ResetAt:      bucketStart.Add(window),
	}, nil
}

// DeleteExpired purges buckets older than the cutoff
func (r *RateLimitRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM rate_buckets WHERE window_start < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate buckets: %w", err)
	}
	return result.RowsAffected(), nil
}

func lockKey(identifier, action string) int64 {
	h := fnv.New64a()
	h.Write([]byte(identifier))
	h.Write([]byte{0})
	h.Write([]byte(action))
	return int64(h.Sum64())
}
