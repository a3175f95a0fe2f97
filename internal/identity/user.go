package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrWeakPassword       = errors.New("password does not meet requirements")
)

// Tiers carried into issued tokens. The tier is entitlement metadata only;
// it never identifies the user.
const (
	TierStandard = "standard"
	TierPlus     = "plus"
	TierAdmin    = "admin"
)

// User is a real-identity principal. The pseudonymous identifier is derived
// on the user's device and never appears here or anywhere else server-side.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Tier         string     `json:"tier"`
	Suspended    bool       `json:"suspended"`
	SuspendedAt  *time.Time `json:"suspended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Repository defines the interface for user persistence
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetSuspended flips the suspension flag
	SetSuspended(ctx context.Context, id string, suspended bool, at time.Time) error
}

// KeyVerifier is the port for hardware-key / biometric challenge-response
// verification. The challenge protocol itself is delegated to a
// standards-compliant library wired in at startup; this core only consumes
// its verdict as an alternative to password authentication.
type KeyVerifier interface {
	// VerifyAssertion reports whether the assertion proves possession of a
	// key registered to the user.
	VerifyAssertion(ctx context.Context, userID string, assertion []byte) error
}
