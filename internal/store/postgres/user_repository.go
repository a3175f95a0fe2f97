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

	"github.com/ghostgate/ghostgate/internal/identity"
)

const pgUniqueViolation = "23505"

// UserRepository implements identity.Repository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, tier, suspended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.PasswordHash, user.Tier, user.Suspended, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*identity.User, error) {
	var user identity.User
	var suspendedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, tier, suspended, suspended_at, created_at, updated_at
		FROM users `+where,
		arg,
	).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Tier,
		&user.Suspended, &suspendedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if suspendedAt.Valid {
		user.SuspendedAt = &suspendedAt.Time
	}

	return &user, nil
}

// SetSuspended flips the suspension flag
func (r *UserRepository) SetSuspended(ctx context.Context, id string, suspended bool, at time.Time) error {
	var suspendedAt *time.Time
	if suspended {
		suspendedAt = &at
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET suspended = $2, suspended_at = $3, updated_at = $4
		WHERE id = $1
	`, id, suspended, suspendedAt, at)
	if err != nil {
		return fmt.Errorf("failed to update suspension: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}
