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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ghostgate/ghostgate/internal/tenant"
)

// TenantRepository implements tenant.Repository
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create creates a new tenant
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenants (
			id, name, owner_id, owner_email, callback_urls, allowed_origins,
			allowed_scopes, signing_credential_hash, api_credential_hash,
			token_ttl_seconds, token_format_version, rate_limit_per_hour,
			is_active, is_verified, tokens_issued, created_at, updated_at
		) VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		t.ID, t.Name, t.OwnerID, t.OwnerEmail, t.CallbackURLs, t.AllowedOrigins,
		t.AllowedScopes, t.SigningCredentialHash, t.APICredentialHash,
		t.TokenTTLSeconds, t.TokenFormatVersion, t.RateLimitPerHour,
		t.IsActive, t.IsVerified, t.TokensIssued, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return tenant.ErrDuplicateTenant
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by slug
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var ownerID sql.NullString
	var deactivatedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, owner_email, callback_urls, allowed_origins,
			allowed_scopes, signing_credential_hash, api_credential_hash,
			token_ttl_seconds, token_format_version, rate_limit_per_hour,
			is_active, is_verified, tokens_issued, created_at, updated_at, deactivated_at
		FROM tenants
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.Name, &ownerID, &t.OwnerEmail, &t.CallbackURLs, &t.AllowedOrigins,
		&t.AllowedScopes, &t.SigningCredentialHash, &t.APICredentialHash,
		&t.TokenTTLSeconds, &t.TokenFormatVersion, &t.RateLimitPerHour,
		&t.IsActive, &t.IsVerified, &t.TokensIssued, &t.CreatedAt, &t.UpdatedAt, &deactivatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if ownerID.Valid {
		t.OwnerID = ownerID.String
	}
	if deactivatedAt.Valid {
		t.DeactivatedAt = &deactivatedAt.Time
	}

	return &t, nil
}

// Update persists owner-mutable fields
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET
			name = $2,
			callback_urls = $3,
			allowed_origins = $4,
			allowed_scopes = $5,
			token_ttl_seconds = $6,
			updated_at = NOW()
		WHERE id = $1
	`, t.ID, t.Name, t.CallbackURLs, t.AllowedOrigins, t.AllowedScopes, t.TokenTTLSeconds)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// CountByOwner counts tenants registered by an owner
func (r *TenantRepository) CountByOwner(ctx context.Context, ownerEmail string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tenants WHERE owner_email = $1
	`, ownerEmail).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tenants: %w", err)
	}
	return count, nil
}

// SetVerified flips the verification flag
func (r *TenantRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET is_verified = $2, updated_at = NOW()
		WHERE id = $1
	`, id, verified)
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// SetActive flips the active flag. Deactivation stamps deactivated_at and
// never deletes the row.
func (r *TenantRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	var deactivatedAt *time.Time
	if !active {
		deactivatedAt = &at
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET is_active = $2, deactivated_at = $3, updated_at = $4
		WHERE id = $1
	`, id, active, deactivatedAt, at)
	if err != nil {
		return fmt.Errorf("failed to update active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// IncrementTokensIssued atomically bumps the usage counter
func (r *TenantRepository) IncrementTokensIssued(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET tokens_issued = tokens_issued + 1 WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment tokens_issued: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// List lists tenants with pagination
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, owner_id, owner_email, callback_urls, allowed_origins,
			allowed_scopes, signing_credential_hash, api_credential_hash,
			token_ttl_seconds, token_format_version, rate_limit_per_hour,
			is_active, is_verified, tokens_issued, created_at, updated_at, deactivated_at
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		var ownerID sql.NullString
		var deactivatedAt sql.NullTime
		if err := rows.Scan(
			&t.ID, &t.Name, &ownerID, &t.OwnerEmail, &t.CallbackURLs, &t.AllowedOrigins,
			&t.AllowedScopes, &t.SigningCredentialHash, &t.APICredentialHash,
			&t.TokenTTLSeconds, &t.TokenFormatVersion, &t.RateLimitPerHour,
			&t.IsActive, &t.IsVerified, &t.TokensIssued, &t.CreatedAt, &t.UpdatedAt, &deactivatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		if ownerID.Valid {
			t.OwnerID = ownerID.String
		}
		if deactivatedAt.Valid {
			t.DeactivatedAt = &deactivatedAt.Time
		}
		tenants = append(tenants, &t)
	}

	return tenants, rows.Err()
}
