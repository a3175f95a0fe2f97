package tenant

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrDuplicateTenant = errors.New("tenant already exists")
	ErrInvalidSlug     = errors.New("invalid tenant slug")
	ErrQuotaExceeded   = errors.New("tenant quota exceeded for owner")
)

// Repository defines the interface for tenant storage
type Repository interface {
	// Create creates a new tenant. Returns ErrDuplicateTenant when the
	// slug is taken.
	Create(ctx context.Context, tenant *Tenant) error

	// GetByID retrieves a tenant by slug
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// Update persists owner-mutable fields (name, callback URLs, origins,
	// allowed scopes)
	Update(ctx context.Context, tenant *Tenant) error

	// CountByOwner counts tenants registered by an owner
	CountByOwner(ctx context.Context, ownerEmail string) (int, error)

	// SetVerified flips the verification flag (administrative)
	SetVerified(ctx context.Context, id string, verified bool) error

	// SetActive flips the active flag (administrative). Deactivation is
	// soft; the row is never deleted.
	SetActive(ctx context.Context, id string, active bool, at time.Time) error

	// IncrementTokensIssued atomically bumps the usage counter
	IncrementTokensIssued(ctx context.Context, id string) error

	// List lists tenants with pagination
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
}
