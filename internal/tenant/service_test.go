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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostgate/ghostgate/internal/audit"
)

// MockRepo is an in-memory tenant repository
type MockRepo struct {
	mu      sync.Mutex
	tenants map[string]*Tenant
}

func NewMockRepo() *MockRepo {
	return &MockRepo{tenants: make(map[string]*Tenant)}
}

func (m *MockRepo) Create(ctx context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; ok {
		return ErrDuplicateTenant
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MockRepo) GetByID(ctx context.Context, id string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockRepo) Update(ctx context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		return ErrTenantNotFound
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MockRepo) CountByOwner(ctx context.Context, ownerEmail string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.tenants {
		if t.OwnerEmail == ownerEmail {
			count++
		}
	}
	return count, nil
}

func (m *MockRepo) SetVerified(ctx context.Context, id string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return ErrTenantNotFound
	}
	t.IsVerified = verified
	return nil
}

func (m *MockRepo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return ErrTenantNotFound
	}
	t.IsActive = active
	if active {
		t.DeactivatedAt = nil
	} else {
		t.DeactivatedAt = &at
	}
	return nil
}

func (m *MockRepo) IncrementTokensIssued(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return ErrTenantNotFound
	}
	t.TokensIssued++
	return nil
}

func (m *MockRepo) List(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Tenant
	for _, t := range m.tenants {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func newTestService(repo *MockRepo, maxPerOwner int) *Service {
	return NewService(repo, audit.NewSlogLogger(), maxPerOwner, time.Minute, Defaults{
		TokenTTLSeconds:    900,
		TokenFormatVersion: 1,
		RateLimitPerHour:   100,
	})
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"demo-app", "abc", "a1b2c3", strings.Repeat("a", 63)}
	for _, slug := range valid {
		assert.True(t, ValidateSlug(slug), "slug %q", slug)
	}

	invalid := []string{
		"",
		"ab",
		"default",
		"Demo-App",
		"-demo",
		"demo-",
		"demo app",
		"demo_app",
		"---",
		strings.Repeat("a", 64),
	}
	for _, slug := range invalid {
		assert.False(t, ValidateSlug(slug), "slug %q", slug)
	}
}

func TestRegister(t *testing.T) {
	repo := NewMockRepo()
	service := newTestService(repo, 10)

	reg, err := service.Register(context.Background(), RegisterInput{
		ID:         "demo-app",
		Name:       "Demo App",
		OwnerEmail: "owner@example.com",
		Scopes:     []string{"basic", "profile"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(reg.SigningCredential, "gsk_"))
	assert.True(t, strings.HasPrefix(reg.APICredential, "gak_"))

	// Only hashes are stored; the plaintext never appears server-side.
	stored, err := repo.GetByID(context.Background(), "demo-app")
	require.NoError(t, err)
	assert.NotEqual(t, reg.SigningCredential, stored.SigningCredentialHash)
	assert.NotEqual(t, reg.APICredential, stored.APICredentialHash)
	assert.True(t, VerifyCredential(reg.SigningCredential, stored.SigningCredentialHash))
	assert.True(t, VerifyCredential(reg.APICredential, stored.APICredentialHash))
	assert.False(t, VerifyCredential(reg.APICredential, stored.SigningCredentialHash))

	// New tenants start active but unverified, with defaults applied.
	assert.True(t, stored.IsActive)
	assert.False(t, stored.IsVerified)
	assert.Equal(t, 900, stored.TokenTTLSeconds)
	assert.Equal(t, 100, stored.RateLimitPerHour)
	assert.Equal(t, []string{"basic", "profile"}, stored.AllowedScopes)
}

func TestRegisterDefaultScopes(t *testing.T) {
	repo := NewMockRepo()
	service := newTestService(repo, 10)

	reg, err := service.Register(context.Background(), RegisterInput{ID: "demo-app", Name: "Demo App"})
	require.NoError(t, err)
	assert.Equal(t, []string{"basic"}, reg.Tenant.AllowedScopes)
}

func TestRegisterInvalidSlug(t *testing.T) {
	service := newTestService(NewMockRepo(), 10)

	for _, slug := range []string{"Bad Slug", "default", "ab"} {
		_, err := service.Register(context.Background(), RegisterInput{ID: slug, Name: "X"})
		assert.ErrorIs(t, err, ErrInvalidSlug, "slug %q", slug)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	service := newTestService(NewMockRepo(), 10)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{ID: "demo-app", Name: "First"})
	require.NoError(t, err)

	_, err = service.Register(ctx, RegisterInput{ID: "demo-app", Name: "Second"})
	assert.ErrorIs(t, err, ErrDuplicateTenant)
}

func TestRegisterOwnerQuota(t *testing.T) {
	service := newTestService(NewMockRepo(), 2)
	ctx := context.Background()

	for _, id := range []string{"app-one", "app-two"} {
		_, err := service.Register(ctx, RegisterInput{ID: id, Name: id, OwnerEmail: "owner@example.com"})
		require.NoError(t, err)
	}

	_, err := service.Register(ctx, RegisterInput{ID: "app-three", Name: "Three", OwnerEmail: "owner@example.com"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// The quota is per owner, not global.
	_, err = service.Register(ctx, RegisterInput{ID: "app-four", Name: "Four", OwnerEmail: "other@example.com"})
	assert.NoError(t, err)
}

func TestLookupCaching(t *testing.T) {
	repo := NewMockRepo()
	service := newTestService(repo, 10)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{ID: "demo-app", Name: "Demo App"})
	require.NoError(t, err)

	first, err := service.Lookup(ctx, "demo-app")
	require.NoError(t, err)
	assert.Equal(t, "Demo App", first.Name)

	// A direct repo mutation is invisible until the cache entry is dropped.
	repo.mu.Lock()
	repo.tenants["demo-app"].Name = "Renamed"
	repo.mu.Unlock()

	cached, err := service.Lookup(ctx, "demo-app")
	require.NoError(t, err)
	assert.Equal(t, "Demo App", cached.Name)

	// Mutations through the service invalidate the cache.
	_, err = service.Update(ctx, "demo-app", "owner", UpdateInput{Name: "Fresh"})
	require.NoError(t, err)

	fresh, err := service.Lookup(ctx, "demo-app")
	require.NoError(t, err)
	assert.Equal(t, "Fresh", fresh.Name)
}

func TestAdminLifecycle(t *testing.T) {
	repo := NewMockRepo()
	service := newTestService(repo, 10)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{ID: "demo-app", Name: "Demo App"})
	require.NoError(t, err)

	require.NoError(t, service.Verify(ctx, "demo-app", "admin"))
	tn, err := repo.GetByID(ctx, "demo-app")
	require.NoError(t, err)
	assert.True(t, tn.IsVerified)

	// Suspension is a soft deactivation: the row survives.
	require.NoError(t, service.Suspend(ctx, "demo-app", "admin"))
	tn, err = repo.GetByID(ctx, "demo-app")
	require.NoError(t, err)
	assert.False(t, tn.IsActive)
	require.NotNil(t, tn.DeactivatedAt)

	require.NoError(t, service.Reactivate(ctx, "demo-app", "admin"))
	tn, err = repo.GetByID(ctx, "demo-app")
	require.NoError(t, err)
	assert.True(t, tn.IsActive)
	assert.Nil(t, tn.DeactivatedAt)

	assert.ErrorIs(t, service.Verify(ctx, "missing", "admin"), ErrTenantNotFound)
}

func TestUpdateOwnerMutableFieldsOnly(t *testing.T) {
	repo := NewMockRepo()
	service := newTestService(repo, 10)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{ID: "demo-app", Name: "Demo App"})
	require.NoError(t, err)
	require.NoError(t, service.Verify(ctx, "demo-app", "admin"))

	updated, err := service.Update(ctx, "demo-app", "owner", UpdateInput{
		Name:         "Renamed",
		CallbackURLs: []string{"https://demo.example.com/cb"},
		Scopes:       []string{"basic"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, updated.IsVerified, "owner updates cannot touch the verified flag")
	assert.True(t, updated.IsActive)
}

func TestIncrementUsage(t *testing.T) {
	repo := NewMockRepo()
	service := newTestService(repo, 10)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{ID: "demo-app", Name: "Demo App"})
	require.NoError(t, err)

	require.NoError(t, service.IncrementUsage(ctx, "demo-app"))
	require.NoError(t, service.IncrementUsage(ctx, "demo-app"))

	tn, err := repo.GetByID(ctx, "demo-app")
	require.NoError(t, err)
	assert.EqualValues(t, 2, tn.TokensIssued)
}
