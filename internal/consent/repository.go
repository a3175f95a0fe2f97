package consent

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConsentNotFound = errors.New("consent not found")
	ErrInvalidScope    = errors.New("requested scope not allowed by tenant")
	ErrNotActive       = errors.New("no active consent to revoke")
)

// Repository defines the interface for consent persistence
type Repository interface {
	// Get retrieves the consent row for a (user, tenant) pair.
	// Returns ErrConsentNotFound if the pair has never been granted.
	Get(ctx context.Context, userID, tenantID string) (*Consent, error)

	// Create inserts the first consent row for a pair
	Create(ctx context.Context, consent *Consent) error

	// Regrant reactivates (or rescopes) an existing row: clears revoked_at
	// and revoked_by, replaces granted scopes, preserves tokens_issued.
	Regrant(ctx context.Context, userID, tenantID string, scopes []string, at time.Time) error

	// Revoke marks the row revoked. Returns ErrNotActive when the row is
	// already revoked, ErrConsentNotFound when it does not exist.
	Revoke(ctx context.Context, userID, tenantID, revokedBy string, at time.Time) error

	// ListByUser lists a user's consent rows
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*Consent, error)

	// IncrementTokensIssued atomically bumps the usage counter
	IncrementTokensIssued(ctx context.Context, userID, tenantID string) error
}
