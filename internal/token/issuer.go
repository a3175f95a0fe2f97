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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ghostgate/ghostgate/internal/audit"
	"github.com/ghostgate/ghostgate/internal/consent"
	"github.com/ghostgate/ghostgate/internal/identity"
	"github.com/ghostgate/ghostgate/internal/observability/logger"
	"github.com/ghostgate/ghostgate/internal/ratelimit"
	"github.com/ghostgate/ghostgate/internal/tenant"
)

// IssuerConfig is the policy the issuer runs under, injected at startup
// instead of read from ambient globals.
type IssuerConfig struct {
	MasterSecret     []byte
	DefaultTokenTTL  time.Duration
	DefaultRateLimit int
	RateLimitWindow  time.Duration
}

// Issued is what a successful issuance returns. It never carries the real
// user identifier.
type Issued struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Tier      string    `json:"tier"`
	TenantID  string    `json:"tenant_id"`
}

// Introspection is the issuer-side view of a presented token
type Introspection struct {
	Active   bool     `json:"active"`
	Revoked  bool     `json:"revoked"`
	Payload  *Payload `json:"payload,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
}

// Issuer mints blind tokens. It is the only component that sees both the
// authenticated caller and the target tenant, and it guarantees the two are
// never joined in anything it emits.
type Issuer struct {
	cfg      IssuerConfig
	tenants  *tenant.Service
	consents *consent.Service
	limiter  ratelimit.Limiter
	ledger   *Ledger
	logRepo  LogRepository
	audit    audit.Logger
	log      *slog.Logger
}

// NewIssuer creates a token issuer
func NewIssuer(cfg IssuerConfig, tenants *tenant.Service, consents *consent.Service, limiter ratelimit.Limiter, ledger *Ledger, logRepo LogRepository, auditLogger audit.Logger, log *slog.Logger) *Issuer {
	return &Issuer{
		cfg:      cfg,
		tenants:  tenants,
		consents: consents,
		limiter:  limiter,
		ledger:   ledger,
		logRepo:  logRepo,
		audit:    auditLogger,
		log:      log,
	}
}

// Issue mints a token for an authenticated user against a tenant. An empty
// tenantID targets the reserved default tenant, which belongs to the
// authority itself: it has no third party to consent to and signs under the
// master secret directly.
func (i *Issuer) Issue(ctx context.Context, user *identity.User, tenantID string, scopes []string) (*Issued, error) {
	t, err := i.resolveTenant(ctx, tenantID)
	if err != nil {
		i.auditFailure(ctx, user.ID, tenantID, "tenant_unavailable")
		return nil, err
	}

	if user.Suspended {
		i.auditFailure(ctx, user.ID, t.ID, "account_suspended")
		return nil, identity.ErrAccountSuspended
	}

	if t.ID != tenant.DefaultTenantID {
		if err := i.checkConsent(ctx, user.ID, t, scopes); err != nil {
			i.auditFailure(ctx, user.ID, t.ID, "consent")
			return nil, err
		}
	}

	if err := i.checkRateLimit(ctx, user.ID, t); err != nil {
		i.auditFailure(ctx, user.ID, t.ID, "rate_limited")
		return nil, err
	}

	nonce, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	ttl := time.Duration(t.TokenTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = i.cfg.DefaultTokenTTL
	}
	expiresAt := now.Add(ttl)

	payload := &Payload{
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
		Tier:      user.Tier,
		Nonce:     nonce.String(),
		App:       t.ID,
		Version:   FormatVersion,
	}

	secret := DeriveTenantSecret(i.cfg.MasterSecret, t.ID)
	signed, err := Sign(payload, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	entry := &LogEntry{
		Nonce:       payload.Nonce,
		TenantID:    t.ID,
		UserID:      user.ID,
		ContentHash: ContentHash(signed),
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
	}
	if err := i.logRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record token: %w", err)
	}

	i.bumpCounters(ctx, user.ID, t)

	i.audit.Log(ctx, audit.Event{
		Actor:    user.ID,
		Action:   audit.ActionTokenIssued,
		Category: audit.CategoryToken,
		Success:  true,
		Metadata: map[string]any{"tenant_id": t.ID, "nonce": payload.Nonce, "tier": user.Tier},
	})

	return &Issued{
		Token:     signed,
		ExpiresAt: expiresAt,
		Tier:      user.Tier,
		TenantID:  t.ID,
	}, nil
}

// Introspect verifies a presented token against its tenant secret and the
// revocation ledger. Signature validity alone does not mean the token is
// still honored.
func (i *Issuer) Introspect(ctx context.Context, signed, tenantID string) (*Introspection, error) {
	if tenantID == "" {
		tenantID = tenant.DefaultTenantID
	}

	secret := DeriveTenantSecret(i.cfg.MasterSecret, tenantID)
	payload, err := Verify(signed, secret, time.Now())
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenSignatureInvalid) || errors.Is(err, ErrTokenMalformed) || errors.Is(err, ErrUnsupportedVersion) {
			return &Introspection{Active: false}, nil
		}
		return nil, err
	}

	revoked, err := i.ledger.IsRevoked(ctx, payload.Nonce)
	if err != nil && !errors.Is(err, ErrNonceNotFound) {
		return nil, err
	}

	return &Introspection{
		Active:   !revoked,
		Revoked:  revoked,
		Payload:  payload,
		TenantID: tenantID,
	}, nil
}

func (i *Issuer) resolveTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	if tenantID == "" || tenantID == tenant.DefaultTenantID {
		return &tenant.Tenant{
			ID:               tenant.DefaultTenantID,
			Name:             "Ghostgate",
			TokenTTLSeconds:  int(i.cfg.DefaultTokenTTL / time.Second),
			RateLimitPerHour: i.cfg.DefaultRateLimit,
			IsActive:         true,
			IsVerified:       true,
		}, nil
	}

	t, err := i.tenants.Lookup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrTenantInactive
	}
	return t, nil
}

func (i *Issuer) checkConsent(ctx context.Context, userID string, t *tenant.Tenant, scopes []string) error {
	c, err := i.consents.Get(ctx, userID, t.ID)
	if err != nil {
		if errors.Is(err, consent.ErrConsentNotFound) {
			return &ConsentRequiredError{
				TenantID:      t.ID,
				TenantName:    t.Name,
				AllowedScopes: append([]string{}, t.AllowedScopes...),
			}
		}
		return err
	}
	if !c.Active {
		return &ConsentRequiredError{
			TenantID:      t.ID,
			TenantName:    t.Name,
			AllowedScopes: append([]string{}, t.AllowedScopes...),
		}
	}
	for _, scope := range scopes {
		if !c.HasScope(scope) {
			return consent.ErrInvalidScope
		}
	}
	return nil
}

// checkRateLimit enforces the per-tenant issuance budget. A limiter backend
// failure fails open: availability wins over strict abuse prevention, and
// the log line flags the gap so it is never silent.
func (i *Issuer) checkRateLimit(ctx context.Context, userID string, t *tenant.Tenant) error {
	max := t.RateLimitPerHour
	if max <= 0 {
		max = i.cfg.DefaultRateLimit
	}

	identifier := userID + ":" + t.ID
	result, err := i.limiter.Check(ctx, identifier, ratelimit.ActionIssueToken, max, i.cfg.RateLimitWindow)
	if err != nil {
		i.log.WarnContext(ctx, "rate limiter unavailable, failing open",
			slog.Bool("rate_limiter_fail_open", true),
			logger.TenantID(t.ID),
			logger.Error(err),
		)
		return nil
	}
	if !result.Allowed {
		i.audit.Log(ctx, audit.Event{
			Actor:    userID,
			Action:   audit.ActionRateLimited,
			Category: audit.CategorySecurity,
			Success:  false,
			Metadata: map[string]any{"tenant_id": t.ID, "action": ratelimit.ActionIssueToken},
		})
		return &RateLimitedError{RetryAfter: time.Until(result.ResetAt)}
	}
	return nil
}

// bumpCounters updates usage statistics. Counter failures are logged, not
// fatal: the token is already minted and recorded.
func (i *Issuer) bumpCounters(ctx context.Context, userID string, t *tenant.Tenant) {
	if t.ID == tenant.DefaultTenantID {
		return
	}
	if err := i.tenants.IncrementUsage(ctx, t.ID); err != nil {
		i.log.ErrorContext(ctx, "failed to increment tenant usage", logger.TenantID(t.ID), logger.Error(err))
	}
	if err := i.consents.IncrementUsage(ctx, userID, t.ID); err != nil {
		i.log.ErrorContext(ctx, "failed to increment consent usage", logger.TenantID(t.ID), logger.Error(err))
	}
}

func (i *Issuer) auditFailure(ctx context.Context, userID, tenantID, reason string) {
	i.audit.Log(ctx, audit.Event{
		Actor:    userID,
		Action:   audit.ActionTokenIssued,
		Category: audit.CategoryToken,
		Success:  false,
		Metadata: map[string]any{"tenant_id": tenantID, "reason": reason},
	})
}
