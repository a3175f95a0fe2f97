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

package token

import (
	"context"
	"time"

	"github.com/ghostgate/ghostgate/internal/audit"
)

// LogEntry is the ledger record for one issued token. It stores the token's
// fingerprint, never the token, and links to the issuing user so "sign out
// everywhere" can find everything to revoke. That linkage stays inside the
// authority: the token itself carries no identity.
type LogEntry struct {
	Nonce            string     `json:"nonce"`
	TenantID         string     `json:"tenant_id"`
	UserID           string     `json:"-"`
	ContentHash      string     `json:"content_hash"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string     `json:"revocation_reason,omitempty"`
}

// Revoked reports whether the entry has a revocation marker
func (e *LogEntry) Revoked() bool {
	return e.RevokedAt != nil
}

// LogRepository defines the interface for token log persistence
type LogRepository interface {
	// Append records a newly issued token
	Append(ctx context.Context, entry *LogEntry) error

	// GetByNonce retrieves an entry by nonce
	GetByNonce(ctx context.Context, nonce string) (*LogEntry, error)

	// Revoke sets the revocation marker only if it is currently unset.
	// Returns true when this call set it, false when it was already set.
	Revoke(ctx context.Context, nonce, reason string, at time.Time) (bool, error)

	// RevokeAllForUser revokes every unexpired, unrevoked entry for a user
	// and returns how many were revoked
	RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int64, error)

	// DeleteExpiredBefore purges entries whose expiry predates the cutoff
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RevocationResult reports the outcome of a revoke call. A repeat revocation
// of the same nonce succeeds with Changed=false.
type RevocationResult struct {
	Revoked bool  `json:"revoked"`
	Count   int64 `json:"revoked_count"`
}

// Ledger is the revocation service over the token log. Revocation is
// advisory: a self-contained token stays signature-valid until expiry, and
// resource servers that want revocation semantics consult the ledger
// alongside signature verification.
type Ledger struct {
	repo        LogRepository
	auditLogger audit.Logger
}

// NewLedger creates a revocation ledger over a log repository
func NewLedger(repo LogRepository, auditLogger audit.Logger) *Ledger {
	return &Ledger{
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// Revoke marks a single nonce revoked. Idempotent: revoking an already
// revoked nonce reports success with a zero count. The caller must own the
// token being revoked.
func (l *Ledger) Revoke(ctx context.Context, userID, nonce, reason string) (*RevocationResult, error) {
	entry, err := l.repo.GetByNonce(ctx, nonce)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrNotOwner
	}

	changed, err := l.repo.Revoke(ctx, nonce, reason, time.Now())
	if err != nil {
		return nil, err
	}

	l.auditLogger.Log(ctx, audit.Event{
		Actor:    userID,
		Action:   audit.ActionTokenRevoked,
		Category: audit.CategoryToken,
		Success:  true,
		Metadata: map[string]any{"nonce": nonce, "reason": reason, "already_revoked": !changed},
	})

	result := &RevocationResult{Revoked: true}
	if changed {
		result.Count = 1
	}
	return result, nil
}

// RevokeAllForUser revokes every live token for a user in one operation
func (l *Ledger) RevokeAllForUser(ctx context.Context, userID, reason string) (*RevocationResult, error) {
	count, err := l.repo.RevokeAllForUser(ctx, userID, reason, time.Now())
	if err != nil {
		return nil, err
	}

	l.auditLogger.Log(ctx, audit.Event{
		Actor:    userID,
		Action:   audit.ActionTokenRevokedAll,
		Category: audit.CategoryToken,
		Success:  true,
		Metadata: map[string]any{"reason": reason, "count": count},
	})

	return &RevocationResult{Revoked: true, Count: count}, nil
}

// IsRevoked reports whether a nonce carries a revocation marker
func (l *Ledger) IsRevoked(ctx context.Context, nonce string) (bool, error) {
	entry, err := l.repo.GetByNonce(ctx, nonce)
	if err != nil {
		return false, err
	}
	return entry.Revoked(), nil
}

// Lookup retrieves the ledger entry for a nonce
func (l *Ledger) Lookup(ctx context.Context, nonce string) (*LogEntry, error) {
	return l.repo.GetByNonce(ctx, nonce)
}

// PurgeExpired removes entries past the retention window
func (l *Ledger) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return l.repo.DeleteExpiredBefore(ctx, time.Now().Add(-retention))
}
