package tenant

import (
	"regexp"
	"strings"
	"time"
)

// DefaultTenantID is the reserved slug of the authority's own tenant.
// It is never stored in the registry; tokens for it are signed with the
// master secret directly.
const DefaultTenantID = "default"

// Slug format rule: lowercase alphanumeric plus hyphen, no leading or
// trailing hyphen, bounded length.
var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

const (
	slugMinLength = 3
	slugMaxLength = 63
)

// Tenant represents a registered application that receives blind tokens
// under its own derived signing secret.
type Tenant struct {
	ID                    string     `json:"tenant_id"`
	Name                  string     `json:"name"`
	OwnerID               string     `json:"owner_id,omitempty"`
	OwnerEmail            string     `json:"owner_email,omitempty"`
	CallbackURLs          []string   `json:"callback_urls"`
	AllowedOrigins        []string   `json:"allowed_origins"`
	AllowedScopes         []string   `json:"allowed_scopes"`
	SigningCredentialHash string     `json:"-"`
	APICredentialHash     string     `json:"-"`
	TokenTTLSeconds       int        `json:"token_ttl_seconds"`
	TokenFormatVersion    int        `json:"token_format_version"`
	RateLimitPerHour      int        `json:"rate_limit_per_hour"`
	IsActive              bool       `json:"is_active"`
	IsVerified            bool       `json:"is_verified"`
	TokensIssued          int64      `json:"tokens_issued"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	DeactivatedAt         *time.Time `json:"deactivated_at,omitempty"`
}

// ValidateSlug checks the tenant_id format rule. The reserved default slug
// is never registrable.
func ValidateSlug(slug string) bool {
	if len(slug) < slugMinLength || len(slug) > slugMaxLength {
		return false
	}
	if slug == DefaultTenantID {
		return false
	}
	// A slug consisting only of hyphens or wildcards identifies nothing.
	if strings.Trim(slug, "-*") == "" {
		return false
	}
	return slugPattern.MatchString(slug)
}

// AllowsScope checks whether a requested scope is in the tenant's allowed set
func (t *Tenant) AllowsScope(scope string) bool {
	for _, s := range t.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AllowsScopes checks whether every requested scope is allowed
func (t *Tenant) AllowsScopes(scopes []string) bool {
	for _, s := range scopes {
		if !t.AllowsScope(s) {
			return false
		}
	}
	return true
}
