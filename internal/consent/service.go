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

package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghostgate/ghostgate/internal/audit"
	"github.com/ghostgate/ghostgate/internal/tenant"
)

// Service implements the consent state machine:
//
//	NoConsent -> Active -> Revoked -> Active -> ...
//
// Every tenant requires an explicit grant before a token is issued,
// regardless of its verification status. There is no implicit-consent
// shortcut for trusted tenants.
type Service struct {
	repo        Repository
	auditLogger audit.Logger
}

// NewService creates a new consent service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// Grant records an explicit user grant for a tenant. The requested scopes
// must be a subset of the tenant's allowed scopes; an empty request grants
// the tenant's full allowed set. A revoked row is reactivated in place,
// preserving its usage counter.
func (s *Service) Grant(ctx context.Context, userID string, t *tenant.Tenant, scopes []string) (*Consent, error) {
	if len(scopes) == 0 {
		scopes = append([]string{}, t.AllowedScopes...)
	}
	if !t.AllowsScopes(scopes) {
		s.auditLogger.Log(ctx, audit.Event{
			Actor:    userID,
			Action:   audit.ActionConsentGranted,
			Category: audit.CategoryConsent,
			Success:  false,
			Metadata: map[string]any{"tenant_id": t.ID, "reason": "invalid_scope", "scopes": scopes},
		})
		return nil, ErrInvalidScope
	}

	now := time.Now()
	existing, err := s.repo.Get(ctx, userID, t.ID)
	switch {
	case err == nil:
		// Active or Revoked -> Active. Counters are preserved.
		if err := s.repo.Regrant(ctx, userID, t.ID, scopes, now); err != nil {
			return nil, fmt.Errorf("failed to regrant consent: %w", err)
		}
		existing.Active = true
		existing.RevokedAt = nil
		existing.RevokedBy = ""
		existing.GrantedScopes = scopes
		existing.UpdatedAt = now
	case err == ErrConsentNotFound:
		// NoConsent -> Active.
		id, idErr := uuid.NewV7()
		if idErr != nil {
			return nil, fmt.Errorf("failed to generate consent id: %w", idErr)
		}
		existing = &Consent{
			ID:            id.String(),
			UserID:        userID,
			TenantID:      t.ID,
			GrantedScopes: scopes,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Create(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to create consent: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load consent: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Actor:    userID,
		Action:   audit.ActionConsentGranted,
		Category: audit.CategoryConsent,
		Success:  true,
		Metadata: map[string]any{"tenant_id": t.ID, "scopes": scopes},
	})

	return existing, nil
}

// Revoke transitions Active -> Revoked, recording who revoked and when.
// Counters are not reset.
func (s *Service) Revoke(ctx context.Context, userID, tenantID, revokedBy string) error {
	err := s.repo.Revoke(ctx, userID, tenantID, revokedBy, time.Now())
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Actor:    userID,
			Action:   audit.ActionConsentRevoked,
			Category: audit.CategoryConsent,
			Success:  false,
			Metadata: map[string]any{"tenant_id": tenantID, "revoked_by": revokedBy, "reason": err.Error()},
		})
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Actor:    userID,
		Action:   audit.ActionConsentRevoked,
		Category: audit.CategoryConsent,
		Success:  true,
		Metadata: map[string]any{"tenant_id": tenantID, "revoked_by": revokedBy},
	})
	return nil
}

// Get retrieves the consent row for a (user, tenant) pair
func (s *Service) Get(ctx context.Context, userID, tenantID string) (*Consent, error) {
	return s.repo.Get(ctx, userID, tenantID)
}

// ListForUser lists a user's consent rows
func (s *Service) ListForUser(ctx context.Context, userID string, activeOnly bool) ([]*Consent, error) {
	return s.repo.ListByUser(ctx, userID, activeOnly)
}

// IncrementUsage atomically bumps the issued-token counter for a pair
func (s *Service) IncrementUsage(ctx context.Context, userID, tenantID string) error {
	return s.repo.IncrementTokensIssued(ctx, userID, tenantID)
}
