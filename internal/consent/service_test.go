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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostgate/ghostgate/internal/audit"
	"github.com/ghostgate/ghostgate/internal/tenant"
)

// MockRepo is an in-memory consent repository
type MockRepo struct {
	mu   sync.Mutex
	rows map[string]*Consent
}

func NewMockRepo() *MockRepo {
	return &MockRepo{rows: make(map[string]*Consent)}
}

func key(userID, tenantID string) string { return userID + "/" + tenantID }

func (m *MockRepo) Get(ctx context.Context, userID, tenantID string) (*Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[key(userID, tenantID)]
	if !ok {
		return nil, ErrConsentNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockRepo) Create(ctx context.Context, c *Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.rows[key(c.UserID, c.TenantID)] = &cp
	return nil
}

func (m *MockRepo) Regrant(ctx context.Context, userID, tenantID string, scopes []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[key(userID, tenantID)]
	if !ok {
		return ErrConsentNotFound
	}
	c.Active = true
	c.RevokedAt = nil
	c.RevokedBy = ""
	c.GrantedScopes = scopes
	c.UpdatedAt = at
	return nil
}

func (m *MockRepo) Revoke(ctx context.Context, userID, tenantID, revokedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[key(userID, tenantID)]
	if !ok {
		return ErrConsentNotFound
	}
	if !c.Active {
		return ErrNotActive
	}
	c.Active = false
	c.RevokedAt = &at
	c.RevokedBy = revokedBy
	return nil
}

func (m *MockRepo) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Consent
	for _, c := range m.rows {
		if c.UserID == userID && (!activeOnly || c.Active) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRepo) IncrementTokensIssued(ctx context.Context, userID, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[key(userID, tenantID)]
	if !ok {
		return ErrConsentNotFound
	}
	c.TokensIssued++
	return nil
}

func testTenant() *tenant.Tenant {
	return &tenant.Tenant{
		ID:            "demo-app",
		Name:          "Demo App",
		AllowedScopes: []string{"basic", "profile"},
		IsActive:      true,
	}
}

const userID = "a29e1b3c-0000-4000-8000-000000000001"

func TestGrantNewConsent(t *testing.T) {
	service := NewService(NewMockRepo(), audit.NewSlogLogger())

	c, err := service.Grant(context.Background(), userID, testTenant(), []string{"basic"})
	require.NoError(t, err)

	assert.True(t, c.Active)
	assert.Equal(t, []string{"basic"}, c.GrantedScopes)
	assert.NotEmpty(t, c.ID)
	assert.Nil(t, c.RevokedAt)
}

// An empty scope request grants the tenant's full allowed set.
func TestGrantEmptyScopesGrantsFullSet(t *testing.T) {
	service := NewService(NewMockRepo(), audit.NewSlogLogger())

	c, err := service.Grant(context.Background(), userID, testTenant(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"basic", "profile"}, c.GrantedScopes)
}

func TestGrantScopeOutsideAllowedSet(t *testing.T) {
	service := NewService(NewMockRepo(), audit.NewSlogLogger())

	_, err := service.Grant(context.Background(), userID, testTenant(), []string{"basic", "admin"})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

// NoConsent -> Active -> Revoked -> Active. The usage counter survives the
// full cycle.
func TestRevokeRegrantCycle(t *testing.T) {
	repo := NewMockRepo()
	service := NewService(repo, audit.NewSlogLogger())
	ctx := context.Background()
	tn := testTenant()

	_, err := service.Grant(ctx, userID, tn, []string{"basic"})
	require.NoError(t, err)

	require.NoError(t, repo.IncrementTokensIssued(ctx, userID, tn.ID))
	require.NoError(t, repo.IncrementTokensIssued(ctx, userID, tn.ID))

	require.NoError(t, service.Revoke(ctx, userID, tn.ID, RevokedByUser))

	revoked, err := service.Get(ctx, userID, tn.ID)
	require.NoError(t, err)
	assert.False(t, revoked.Active)
	require.NotNil(t, revoked.RevokedAt)
	assert.Equal(t, RevokedByUser, revoked.RevokedBy)
	assert.EqualValues(t, 2, revoked.TokensIssued, "revocation never resets counters")

	regranted, err := service.Grant(ctx, userID, tn, []string{"profile"})
	require.NoError(t, err)
	assert.True(t, regranted.Active)
	assert.Nil(t, regranted.RevokedAt)
	assert.Empty(t, regranted.RevokedBy)
	assert.Equal(t, []string{"profile"}, regranted.GrantedScopes, "re-grant replaces scopes")
	assert.EqualValues(t, 2, regranted.TokensIssued, "counter continues across re-grant")
}

func TestRevokeWithoutConsent(t *testing.T) {
	service := NewService(NewMockRepo(), audit.NewSlogLogger())
	err := service.Revoke(context.Background(), userID, "demo-app", RevokedByUser)
	assert.ErrorIs(t, err, ErrConsentNotFound)
}

func TestRevokeAlreadyRevoked(t *testing.T) {
	service := NewService(NewMockRepo(), audit.NewSlogLogger())
	ctx := context.Background()

	_, err := service.Grant(ctx, userID, testTenant(), nil)
	require.NoError(t, err)
	require.NoError(t, service.Revoke(ctx, userID, "demo-app", RevokedByUser))

	err = service.Revoke(ctx, userID, "demo-app", RevokedByAdmin)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestListForUser(t *testing.T) {
	service := NewService(NewMockRepo(), audit.NewSlogLogger())
	ctx := context.Background()

	other := testTenant()
	other.ID = "other-app"

	_, err := service.Grant(ctx, userID, testTenant(), nil)
	require.NoError(t, err)
	_, err = service.Grant(ctx, userID, other, nil)
	require.NoError(t, err)
	require.NoError(t, service.Revoke(ctx, userID, "other-app", RevokedByUser))

	all, err := service.ListForUser(ctx, userID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := service.ListForUser(ctx, userID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "demo-app", active[0].TenantID)
}

func TestHasScope(t *testing.T) {
	c := &Consent{GrantedScopes: []string{"basic"}}
	assert.True(t, c.HasScope("basic"))
	assert.False(t, c.HasScope("profile"))
}
