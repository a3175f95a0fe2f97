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
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostgate/ghostgate/internal/audit"
	"github.com/ghostgate/ghostgate/internal/consent"
	"github.com/ghostgate/ghostgate/internal/identity"
	"github.com/ghostgate/ghostgate/internal/ratelimit"
	"github.com/ghostgate/ghostgate/internal/tenant"
)

var testMaster = []byte("test-master-secret-32-bytes-long")

// MockTenantRepo is an in-memory tenant registry
type MockTenantRepo struct {
	mu      sync.Mutex
	tenants map[string]*tenant.Tenant
}

func NewMockTenantRepo(tenants ...*tenant.Tenant) *MockTenantRepo {
	m := &MockTenantRepo{tenants: make(map[string]*tenant.Tenant)}
	for _, t := range tenants {
		m.tenants[t.ID] = t
	}
	return m
}

func (m *MockTenantRepo) Create(ctx context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; ok {
		return tenant.ErrDuplicateTenant
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *MockTenantRepo) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTenantRepo) Update(ctx context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

func (m *MockTenantRepo) CountByOwner(ctx context.Context, ownerEmail string) (int, error) {
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

func (m *MockTenantRepo) SetVerified(ctx context.Context, id string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.IsVerified = verified
	return nil
}

func (m *MockTenantRepo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.IsActive = active
	if !active {
		t.DeactivatedAt = &at
	} else {
		t.DeactivatedAt = nil
	}
	return nil
}

func (m *MockTenantRepo) IncrementTokensIssued(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.TokensIssued++
	return nil
}

func (m *MockTenantRepo) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*tenant.Tenant
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

// MockConsentRepo is an in-memory consent registry
type MockConsentRepo struct {
	mu   sync.Mutex
	rows map[string]*consent.Consent
}

func NewMockConsentRepo() *MockConsentRepo {
	return &MockConsentRepo{rows: make(map[string]*consent.Consent)}
}

func consentKey(userID, tenantID string) string { return userID + "/" + tenantID }

func (m *MockConsentRepo) Get(ctx context.Context, userID, tenantID string) (*consent.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[consentKey(userID, tenantID)]
	if !ok {
		return nil, consent.ErrConsentNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockConsentRepo) Create(ctx context.Context, c *consent.Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.rows[consentKey(c.UserID, c.TenantID)] = &cp
	return nil
}

func (m *MockConsentRepo) Regrant(ctx context.Context, userID, tenantID string, scopes []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[consentKey(userID, tenantID)]
	if !ok {
		return consent.ErrConsentNotFound
	}
	c.Active = true
	c.RevokedAt = nil
	c.RevokedBy = ""
	c.GrantedScopes = scopes
	c.UpdatedAt = at
	return nil
}

func (m *MockConsentRepo) Revoke(ctx context.Context, userID, tenantID, revokedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[consentKey(userID, tenantID)]
	if !ok {
		return consent.ErrConsentNotFound
	}
	if !c.Active {
		return consent.ErrNotActive
	}
	c.Active = false
	c.RevokedAt = &at
	c.RevokedBy = revokedBy
	return nil
}

func (m *MockConsentRepo) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*consent.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*consent.Consent
	for _, c := range m.rows {
		if c.UserID == userID && (!activeOnly || c.Active) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockConsentRepo) IncrementTokensIssued(ctx context.Context, userID, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[consentKey(userID, tenantID)]
	if !ok {
		return consent.ErrConsentNotFound
	}
	c.TokensIssued++
	return nil
}

type failingLimiter struct{}

func (failingLimiter) Check(ctx context.Context, identifier, action string, max int, window time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("limiter store down")
}

type issuerFixture struct {
	issuer      *Issuer
	tenantRepo  *MockTenantRepo
	consentRepo *MockConsentRepo
	logRepo     *MockLogRepo
	tenants     *tenant.Service
	consents    *consent.Service
}

func demoTenant() *tenant.Tenant {
	return &tenant.Tenant{
		ID:               "demo-app",
		Name:             "Demo App",
		OwnerEmail:       "owner@example.com",
		AllowedScopes:    []string{"basic", "profile"},
		TokenTTLSeconds:  900,
		RateLimitPerHour: 100,
		IsActive:         true,
		IsVerified:       true,
	}
}

func newIssuerFixture(t *testing.T, limiter ratelimit.Limiter, tenants ...*tenant.Tenant) *issuerFixture {
	t.Helper()
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(time.Minute)
	}
	auditLogger := audit.NewSlogLogger()
	tenantRepo := NewMockTenantRepo(tenants...)
	consentRepo := NewMockConsentRepo()
	logRepo := NewMockLogRepo()

	tenantService := tenant.NewService(tenantRepo, auditLogger, 10, time.Minute, tenant.Defaults{
		TokenTTLSeconds:    900,
		TokenFormatVersion: FormatVersion,
		RateLimitPerHour:   100,
	})
	consentService := consent.NewService(consentRepo, auditLogger)
	ledger := NewLedger(logRepo, auditLogger)

	issuer := NewIssuer(
		IssuerConfig{
			MasterSecret:     testMaster,
			DefaultTokenTTL:  15 * time.Minute,
			DefaultRateLimit: 100,
			RateLimitWindow:  time.Hour,
		},
		tenantService,
		consentService,
		limiter,
		ledger,
		logRepo,
		auditLogger,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return &issuerFixture{
		issuer:      issuer,
		tenantRepo:  tenantRepo,
		consentRepo: consentRepo,
		logRepo:     logRepo,
		tenants:     tenantService,
		consents:    consentService,
	}
}

func testUser() *identity.User {
	return &identity.User{ID: "a29e1b3c-0000-4000-8000-000000000001", Tier: "standard"}
}

func grantConsent(t *testing.T, f *issuerFixture, userID string, scopes []string) {
	t.Helper()
	tn, err := f.tenantRepo.GetByID(context.Background(), "demo-app")
	require.NoError(t, err)
	_, err = f.consents.Grant(context.Background(), userID, tn, scopes)
	require.NoError(t, err)
}

// A token request with no prior consent row always fails with a consent
// redirect, regardless of the tenant's verification flag.
func TestIssueRequiresConsent(t *testing.T) {
	f := newIssuerFixture(t, nil, demoTenant())

	_, err := f.issuer.Issue(context.Background(), testUser(), "demo-app", nil)

	var consentErr *ConsentRequiredError
	require.ErrorAs(t, err, &consentErr)
	assert.Equal(t, "demo-app", consentErr.TenantID)
	assert.Equal(t, "Demo App", consentErr.TenantName)
	assert.Equal(t, []string{"basic", "profile"}, consentErr.AllowedScopes)
}

func TestIssueAfterGrantSucceeds(t *testing.T) {
	f := newIssuerFixture(t, nil, demoTenant())
	user := testUser()
	grantConsent(t, f, user.ID, []string{"basic"})

	issued, err := f.issuer.Issue(context.Background(), user, "demo-app", []string{"basic"})
	require.NoError(t, err)

	assert.Equal(t, "demo-app", issued.TenantID)
	assert.Equal(t, "standard", issued.Tier)
	assert.WithinDuration(t, time.Now().Add(900*time.Second), issued.ExpiresAt, 5*time.Second)

	payload, err := Verify(issued.Token, DeriveTenantSecret(testMaster, "demo-app"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "demo-app", payload.App)
	assert.Equal(t, "standard", payload.Tier)
	assert.Equal(t, FormatVersion, payload.Version)

	// The payload must never carry the caller's identity.
	encoded, _, _ := strings.Cut(issued.Token, ".")
	body, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.NotContains(t, string(body), user.ID)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	for key := range fields {
		assert.Contains(t, []string{"iat", "exp", "tier", "nonce", "app", "v"}, key)
	}

	// Side effects: ledger entry with content hash, counters bumped.
	entry, err := f.logRepo.GetByNonce(context.Background(), payload.Nonce)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(issued.Token), entry.ContentHash)
	assert.NotContains(t, entry.ContentHash, issued.Token)

	tn, err := f.tenantRepo.GetByID(context.Background(), "demo-app")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tn.TokensIssued)

	c, err := f.consentRepo.Get(context.Background(), user.ID, "demo-app")
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.TokensIssued)
}

// After revoke then re-grant the next request succeeds and the usage
// counter continues from its pre-revocation value.
func TestIssueConsentRevokeRegrantPreservesCounter(t *testing.T) {
	f := newIssuerFixture(t, nil, demoTenant())
	user := testUser()
	ctx := context.Background()
	grantConsent(t, f, user.ID, nil)

	_, err := f.issuer.Issue(ctx, user, "demo-app", nil)
	require.NoError(t, err)

	require.NoError(t, f.consents.Revoke(ctx, user.ID, "demo-app", consent.RevokedByUser))

	_, err = f.issuer.Issue(ctx, user, "demo-app", nil)
	var consentErr *ConsentRequiredError
	require.ErrorAs(t, err, &consentErr, "revoked consent blocks issuance")

	grantConsent(t, f, user.ID, nil)
	_, err = f.issuer.Issue(ctx, user, "demo-app", nil)
	require.NoError(t, err)

	c, err := f.consentRepo.Get(ctx, user.ID, "demo-app")
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.TokensIssued, "counter survives the revoke/re-grant cycle")
}

func TestIssueSuspendedAccount(t *testing.T) {
	f := newIssuerFixture(t, nil, demoTenant())
	user := testUser()
	user.Suspended = true

	_, err := f.issuer.Issue(context.Background(), user, "demo-app", nil)
	assert.ErrorIs(t, err, identity.ErrAccountSuspended)

	// Tenant resolution comes first in the pipeline: a suspended caller
	// probing an unknown slug learns nothing beyond what anyone else would.
	_, err = f.issuer.Issue(context.Background(), user, "no-such-app", nil)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestIssueUnknownTenant(t *testing.T) {
	f := newIssuerFixture(t, nil)
	_, err := f.issuer.Issue(context.Background(), testUser(), "no-such-app", nil)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestIssueInactiveTenant(t *testing.T) {
	inactive := demoTenant()
	inactive.IsActive = false
	f := newIssuerFixture(t, nil, inactive)

	_, err := f.issuer.Issue(context.Background(), testUser(), "demo-app", nil)
	assert.ErrorIs(t, err, ErrTenantInactive)
}

func TestIssueScopeNotGranted(t *testing.T) {
	f := newIssuerFixture(t, nil, demoTenant())
	user := testUser()
	grantConsent(t, f, user.ID, []string{"basic"})

	_, err := f.issuer.Issue(context.Background(), user, "demo-app", []string{"profile"})
	assert.ErrorIs(t, err, consent.ErrInvalidScope)
}

func TestIssueRateLimited(t *testing.T) {
	limited := demoTenant()
	limited.RateLimitPerHour = 3
	f := newIssuerFixture(t, nil, limited)
	user := testUser()
	ctx := context.Background()
	grantConsent(t, f, user.ID, nil)

	for i := 0; i < 3; i++ {
		_, err := f.issuer.Issue(ctx, user, "demo-app", nil)
		require.NoError(t, err, "issue %d within budget", i+1)
	}

	_, err := f.issuer.Issue(ctx, user, "demo-app", nil)
	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Greater(t, rateErr.RetryAfter, time.Duration(0))

	// The budget is per (user, tenant): another user is unaffected.
	other := testUser()
	other.ID = "a29e1b3c-0000-4000-8000-000000000002"
	grantConsent(t, f, other.ID, nil)
	_, err = f.issuer.Issue(ctx, other, "demo-app", nil)
	assert.NoError(t, err)
}

// A limiter backend failure fails open by design: availability wins over
// strict abuse prevention.
func TestIssueLimiterFailureFailsOpen(t *testing.T) {
	f := newIssuerFixture(t, failingLimiter{}, demoTenant())
	user := testUser()
	grantConsent(t, f, user.ID, nil)

	_, err := f.issuer.Issue(context.Background(), user, "demo-app", nil)
	assert.NoError(t, err)
}

// The reserved default tenant belongs to the authority itself: no consent
// gate, signed directly under the master secret.
func TestIssueDefaultTenant(t *testing.T) {
	f := newIssuerFixture(t, nil)

	issued, err := f.issuer.Issue(context.Background(), testUser(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, tenant.DefaultTenantID, issued.TenantID)

	payload, err := Verify(issued.Token, testMaster, time.Now())
	require.NoError(t, err)
	assert.Equal(t, tenant.DefaultTenantID, payload.App)
}

func TestIntrospect(t *testing.T) {
	f := newIssuerFixture(t, nil, demoTenant())
	user := testUser()
	ctx := context.Background()
	grantConsent(t, f, user.ID, nil)

	issued, err := f.issuer.Issue(ctx, user, "demo-app", nil)
	require.NoError(t, err)

	result, err := f.issuer.Introspect(ctx, issued.Token, "demo-app")
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.False(t, result.Revoked)
	require.NotNil(t, result.Payload)

	// Signature validity alone does not mean the token is honored.
	ledger := NewLedger(f.logRepo, audit.NewSlogLogger())
	_, err = ledger.Revoke(ctx, user.ID, result.Payload.Nonce, "test")
	require.NoError(t, err)

	result, err = f.issuer.Introspect(ctx, issued.Token, "demo-app")
	require.NoError(t, err)
	assert.False(t, result.Active)
	assert.True(t, result.Revoked)

	// Garbage and cross-tenant tokens report inactive, not an error.
	result, err = f.issuer.Introspect(ctx, "not-a-token", "demo-app")
	require.NoError(t, err)
	assert.False(t, result.Active)

	result, err = f.issuer.Introspect(ctx, issued.Token, "other-app")
	require.NoError(t, err)
	assert.False(t, result.Active)
}
