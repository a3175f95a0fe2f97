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

package tenant

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ghostgate/ghostgate/internal/audit"
)

// Defaults are applied to newly registered tenants
type Defaults struct {
	TokenTTLSeconds    int
	TokenFormatVersion int
	RateLimitPerHour   int
	Scopes             []string
}

// Service provides tenant registry business logic
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	cache       *gocache.Cache
	maxPerOwner int
	defaults    Defaults
}

// NewService creates a new tenant registry service. Lookups on the token
// issuance hot path are served from a short-lived in-process cache.
func NewService(repo Repository, auditLogger audit.Logger, maxPerOwner int, cacheTTL time.Duration, defaults Defaults) *Service {
	if len(defaults.Scopes) == 0 {
		defaults.Scopes = []string{"basic"}
	}
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		cache:       gocache.New(cacheTTL, 2*cacheTTL),
		maxPerOwner: maxPerOwner,
		defaults:    defaults,
	}
}

// RegisterInput holds the caller-supplied registration fields
type RegisterInput struct {
	ID             string
	Name           string
	OwnerID        string
	OwnerEmail     string
	CallbackURLs   []string
	AllowedOrigins []string
	Scopes         []string
}

// Registration is the one-time result of a successful registration. The
// plaintext credentials are returned exactly once and stored only as hashes.
type Registration struct {
	Tenant            *Tenant
	SigningCredential string
	APICredential     string
}

// Register registers a new tenant
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	if !ValidateSlug(in.ID) {
		return nil, ErrInvalidSlug
	}
	if in.Name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}

	if in.OwnerEmail != "" && s.maxPerOwner > 0 {
		count, err := s.repo.CountByOwner(ctx, in.OwnerEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to count owner tenants: %w", err)
		}
		if count >= s.maxPerOwner {
			return nil, ErrQuotaExceeded
		}
	}

	signingCred, err := generateCredential(signingCredentialPrefix)
	if err != nil {
		return nil, err
	}
	apiCred, err := generateCredential(apiCredentialPrefix)
	if err != nil {
		return nil, err
	}

	scopes := in.Scopes
	if len(scopes) == 0 {
		scopes = append([]string{}, s.defaults.Scopes...)
	}

	now := time.Now()
	t := &Tenant{
		ID:                    in.ID,
		Name:                  in.Name,
		OwnerID:               in.OwnerID,
		OwnerEmail:            in.OwnerEmail,
		CallbackURLs:          in.CallbackURLs,
		AllowedOrigins:        in.AllowedOrigins,
		AllowedScopes:         scopes,
		SigningCredentialHash: HashCredential(signingCred),
		APICredentialHash:     HashCredential(apiCred),
		TokenTTLSeconds:       s.defaults.TokenTTLSeconds,
		TokenFormatVersion:    s.defaults.TokenFormatVersion,
		RateLimitPerHour:      s.defaults.RateLimitPerHour,
		IsActive:              true,
		IsVerified:            false,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Actor:    in.OwnerID,
		Action:   audit.ActionTenantRegistered,
		Category: audit.CategoryAdmin,
		Success:  true,
		Metadata: map[string]any{
			"tenant_id":         t.ID,
			"credential_prefix": CredentialAuditPrefix(signingCred),
		},
	})

	return &Registration{
		Tenant:            t,
		SigningCredential: signingCred,
		APICredential:     apiCred,
	}, nil
}

// Lookup retrieves a tenant by slug, serving repeated lookups from cache
func (s *Service) Lookup(ctx context.Context, id string) (*Tenant, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached.(*Tenant), nil
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(id, t)
	return t, nil
}

// UpdateInput holds the owner-mutable fields. Security-relevant flags
// (active, verified) are deliberately absent; an owner may never mutate them.
type UpdateInput struct {
	Name           string
	CallbackURLs   []string
	AllowedOrigins []string
	Scopes         []string
}

// Update applies owner self-service mutations
func (s *Service) Update(ctx context.Context, id, actorID string, in UpdateInput) (*Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		t.Name = in.Name
	}
	if in.CallbackURLs != nil {
		t.CallbackURLs = in.CallbackURLs
	}
	if in.AllowedOrigins != nil {
		t.AllowedOrigins = in.AllowedOrigins
	}
	if in.Scopes != nil {
		t.AllowedScopes = in.Scopes
	}
	t.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	s.cache.Delete(id)

	s.auditLogger.Log(ctx, audit.Event{
		Actor:    actorID,
		Action:   audit.ActionTenantUpdated,
		Category: audit.CategoryAdmin,
		Success:  true,
		Metadata: map[string]any{"tenant_id": id},
	})

	return t, nil
}

// Verify marks a tenant as verified (administrative only)
func (s *Service) Verify(ctx context.Context, id, actorID string) error {
	if err := s.repo.SetVerified(ctx, id, true); err != nil {
		return err
	}
	s.cache.Delete(id)
	s.auditLogger.Log(ctx, audit.Event{
		Actor:    actorID,
		Action:   audit.ActionTenantVerified,
		Category: audit.CategoryAdmin,
		Success:  true,
		Metadata: map[string]any{"tenant_id": id},
	})
	return nil
}

// Suspend soft-deactivates a tenant (administrative only). The row is
// preserved for audit continuity.
func (s *Service) Suspend(ctx context.Context, id, actorID string) error {
	if err := s.repo.SetActive(ctx, id, false, time.Now()); err != nil {
		return err
	}
	s.cache.Delete(id)
	s.auditLogger.Log(ctx, audit.Event{
		Actor:    actorID,
		Action:   audit.ActionTenantSuspended,
		Category: audit.CategorySecurity,
		Success:  true,
		Metadata: map[string]any{"tenant_id": id},
	})
	return nil
}

// Reactivate re-enables a suspended tenant (administrative only)
func (s *Service) Reactivate(ctx context.Context, id, actorID string) error {
	if err := s.repo.SetActive(ctx, id, true, time.Now()); err != nil {
		return err
	}
	s.cache.Delete(id)
	s.auditLogger.Log(ctx, audit.Event{
		Actor:    actorID,
		Action:   audit.ActionTenantReactivated,
		Category: audit.CategoryAdmin,
		Success:  true,
		Metadata: map[string]any{"tenant_id": id},
	})
	return nil
}

// IncrementUsage atomically bumps the issued-token counter
func (s *Service) IncrementUsage(ctx context.Context, id string) error {
	s.cache.Delete(id)
	return s.repo.IncrementTokensIssued(ctx, id)
}

// List lists tenants with pagination
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	return s.repo.List(ctx, limit, offset)
}
