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
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ghostgate/ghostgate/internal/token"
)

// TokenLogRepository implements token.LogRepository
type TokenLogRepository struct {
	db *DB
}

// NewTokenLogRepository creates a new token log repository
func NewTokenLogRepository(db *DB) *TokenLogRepository {
	return &TokenLogRepository{db: db}
}

// Append records a newly issued token
func (r *TokenLogRepository) Append(ctx context.Context, entry *token.LogEntry) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO token_log (nonce, tenant_id, user_id, content_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.Nonce, entry.TenantID, entry.UserID, entry.ContentHash, entry.IssuedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert token log entry: %w", err)
	}
	return nil
}

// GetByNonce retrieves an entry by nonce
func (r *TokenLogRepository) GetByNonce(ctx context.Context, nonce string) (*token.LogEntry, error) {
	var entry token.LogEntry
	var revokedAt sql.NullTime
	var reason sql.NullString

	err := r.db.pool.QueryRow(ctx, `
		SELECT nonce, tenant_id, user_id, content_hash, issued_at, expires_at, revoked_at, revocation_reason
		FROM token_log
		WHERE nonce = $1
	`, nonce).Scan(
		&entry.Nonce, &entry.TenantID, &entry.UserID, &entry.ContentHash,
		&entry.IssuedAt, &entry.ExpiresAt, &revokedAt, &reason,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, token.ErrNonceNotFound
		}
		return nil, fmt.Errorf("failed to get token log entry: %w", err)
	}

	if revokedAt.Valid {
		entry.RevokedAt = &revokedAt.Time
	}
	if reason.Valid {
		entry.RevocationReason = reason.String
	}

	return &entry, nil
}

// Revoke sets the revocation marker only when it is currently unset. The
// IS NULL guard makes repeat revocations a reported no-op rather than a
// lost-update race.
func (r *TokenLogRepository) Revoke(ctx context.Context, nonce, reason string, at time.Time) (bool, error) {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE token_log SET revoked_at = $2, revocation_reason = $3
		WHERE nonce = $1 AND revoked_at IS NULL
	`, nonce, at, reason)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// RevokeAllForUser revokes every unexpired, unrevoked entry for a user
func (r *TokenLogRepository) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE token_log SET revoked_at = $2, revocation_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
	`, userID, at, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpiredBefore purges entries whose expiry predates the cutoff
func (r *TokenLogRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM token_log WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge token log: %w", err)
	}
	return result.RowsAffected(), nil
}
