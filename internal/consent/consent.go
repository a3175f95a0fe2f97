package consent

import (
	"time"
)

// Revoker identities recorded on revocation
const (
	RevokedByUser   = "user"
	RevokedByTenant = "tenant"
	RevokedByAdmin  = "admin"
	RevokedBySystem = "system"
)

// Consent is the per-(user, tenant) authorization record. At most one row
// exists per pair; revocation is a soft, reactivatable state and the row is
// never deleted, preserving the full trail of authorization decisions.
type Consent struct {
	ID            string     `json:"id"`
	UserID        string     `json:"-"`
	TenantID      string     `json:"tenant_id"`
	GrantedScopes []string   `json:"granted_scopes"`
	Active        bool       `json:"active"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedBy     string     `json:"revoked_by,omitempty"`
	TokensIssued  int64      `json:"tokens_issued"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasScope checks whether a scope was granted
func (c *Consent) HasScope(scope string) bool {
	for _, s := range c.GrantedScopes {
		if s == scope {
			return true
		}
	}
	return false
}
