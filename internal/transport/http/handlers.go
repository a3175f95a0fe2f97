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

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ghostgate/ghostgate/internal/consent"
	"github.com/ghostgate/ghostgate/internal/identity"
	"github.com/ghostgate/ghostgate/internal/tenant"
	"github.com/ghostgate/ghostgate/internal/token"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	tenantService   *tenant.Service
	consentService  *consent.Service
	issuer          *token.Issuer
	ledger          *token.Ledger
	adminCredential string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	tenantService *tenant.Service,
	consentService *consent.Service,
	issuer *token.Issuer,
	ledger *token.Ledger,
	adminCredential string,
) *Handler {
	return &Handler{
		identityService: identityService,
		tenantService:   tenantService,
		consentService:  consentService,
		issuer:          issuer,
		ledger:          ledger,
		adminCredential: adminCredential,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *IPRateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(IPRateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Authentication
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	// Token introspection is credential-authenticated: tenants present
	// their API credential, not a user bearer credential.
	r.Post("/tokens/introspect", h.IntrospectToken)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/tokens", h.IssueToken)
		r.Post("/tokens/revoke", h.RevokeToken)

		r.Post("/tenants", h.CreateTenant)
		r.Get("/tenants/{tenantID}", h.GetTenant)

		r.Get("/consents", h.ListConsents)
		r.Post("/consents", h.GrantConsent)
		r.Delete("/consents", h.RevokeConsent)
	})

	// Administrative routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.AdminMiddleware)

		r.Get("/tenants", h.ListTenants)
		r.Post("/tenants/{tenantID}/verify", h.VerifyTenant)
		r.Post("/tenants/{tenantID}/suspend", h.SuspendTenant)
		r.Post("/tenants/{tenantID}/reactivate", h.ReactivateTenant)
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "ghostgate",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain errors to structured responses. Internal
// failures surface as a generic message only; the detail stays in the logs.
func respondServiceError(w http.ResponseWriter, err error) {
	var consentErr *token.ConsentRequiredError
	var rateErr *token.RateLimitedError

	switch {
	case errors.As(err, &consentErr):
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":            "consent_required",
			"requires_consent": true,
			"tenant_id":        consentErr.TenantID,
			"tenant_name":      consentErr.TenantName,
			"allowed_scopes":   consentErr.AllowedScopes,
		})
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", retryAfterSeconds(rateErr.RetryAfter))
		respondJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       "rate_limited",
			"retry_after": int(rateErr.RetryAfter.Seconds()),
		})
	case errors.Is(err, identity.ErrAccountSuspended):
		respondError(w, http.StatusForbidden, "account suspended")
	case errors.Is(err, tenant.ErrTenantNotFound):
		respondError(w, http.StatusNotFound, "unknown tenant")
	case errors.Is(err, token.ErrTenantInactive):
		respondError(w, http.StatusForbidden, "tenant is not active")
	case errors.Is(err, tenant.ErrInvalidSlug):
		respondError(w, http.StatusBadRequest, "invalid tenant_id")
	case errors.Is(err, tenant.ErrDuplicateTenant):
		respondError(w, http.StatusConflict, "tenant already exists")
	case errors.Is(err, tenant.ErrQuotaExceeded):
		respondError(w, http.StatusForbidden, "tenant quota exceeded")
	case errors.Is(err, consent.ErrInvalidScope):
		respondError(w, http.StatusForbidden, "requested scope not allowed by tenant")
	case errors.Is(err, consent.ErrConsentNotFound), errors.Is(err, consent.ErrNotActive):
		respondError(w, http.StatusNotFound, "no active connection")
	case errors.Is(err, token.ErrNonceNotFound), errors.Is(err, token.ErrNotOwner):
		// NotOwner deliberately reads as not-found: revocation must not
		// confirm someone else's nonce exists.
		respondError(w, http.StatusNotFound, "nonce not found")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
