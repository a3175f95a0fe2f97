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

	"github.com/ghostgate/ghostgate/internal/consent"
)

// ConsentRepository implements consent.Repository
type ConsentRepository struct {
	db *DB
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// Get retrieves the consent row for a (user, tenant) pair
func (r *ConsentRepository) Get(ctx context.Context, userID, tenantID string) (*consent.Consent, error) {
	var c consent.Consent
	var revokedAt sql.NullTime
	var revokedBy sql.NullString

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, tenant_id, granted_scopes, active,
			revoked_at, revoked_by, tokens_issued, created_at, updated_at
		FROM consents
		WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID).Scan(
		&c.ID, &c.UserID, &c.TenantID, &c.GrantedScopes, &c.Active,
		&revokedAt, &revokedBy, &c.TokensIssued, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, consent.ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	if revokedAt.Valid {
		c.RevokedAt = &revokedAt.Time
	}
	if revokedBy.Valid {
		c.RevokedBy = revokedBy.String
	}

	return &c, nil
}

// Create inserts the first consent row for a pair
func (r *ConsentRepository) Create(ctx context.Context, c *consent.Consent) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO consents (id, user_id, tenant_id, granted_scopes, active, tokens_issued, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserID, c.TenantID, c.GrantedScopes, c.Active, c.TokensIssued, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert consent: %w", err)
	}
	return nil
}

// Regrant reactivates an existing row in place, preserving tokens_issued
func (r *ConsentRepository) Regrant(ctx context.Context, userID, tenantID string, scopes []string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE consents SET
			active = TRUE,
			revoked_at = NULL,
			revoked_by = NULL,
			granted_scopes = $3,
			updated_at = $4
		WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID, scopes, at)
	if err != nil {
		return fmt.Errorf("failed to regrant consent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return consent.ErrConsentNotFound
	}
	return nil
}

// Revoke marks the row revoked. The active guard distinguishes "already
// revoked" from "never granted" with a second lookup.
func (r *ConsentRepository) Revoke(ctx context.Context, userID, tenantID, revokedBy string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE consents SET
			active = FALSE,
			revoked_at = $3,
			revoked_by = $4,
			updated_at = $3
		WHERE user_id = $1 AND tenant_id = $2 AND active = TRUE
	`, userID, tenantID, at, revokedBy)
	if err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.Get(ctx, userID, tenantID); err != nil {
			return err
		}
		return consent.ErrNotActive
	}
	return nil
}

// ListByUser lists a user's consent rows
func (r *ConsentRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*consent.Consent, error) {
	query := `
		SELECT id, user_id, tenant_id, granted_scopes, active,
			revoked_at, revoked_by, tokens_issued, created_at, updated_at
		FROM consents
		WHERE user_id = $1`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consents: %w", err)
	}
	defer rows.Close()

	var consents []*consent.Consent
	for rows.Next() {
		var c consent.Consent
		var revokedAt sql.NullTime
		var revokedBy sql.NullString
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.TenantID, &c.GrantedScopes, &c.Active,
			&revokedAt, &revokedBy, &c.TokensIssued, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan consent: %w", err)
		}
		if revokedAt.Valid {
			c.RevokedAt = &revokedAt.Time
		}
		if revokedBy.Valid {
			c.RevokedBy = revokedBy.String
		}
		consents = append(consents, &c)
	}

	return consents, rows.Err()
}

// IncrementTokensIssued atomically bumps the usage counter
func (r *ConsentRepository) IncrementTokensIssued(ctx context.Context, userID, tenantID string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE consents SET tokens_issued = tokens_issued + 1
		WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to increment tokens_issued: %w", err)
	}
	if result.RowsAffected() == 0 {
		return consent.ErrConsentNotFound
	}
	return nil
}
