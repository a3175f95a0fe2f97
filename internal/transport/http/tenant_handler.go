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
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ghostgate/ghostgate/internal/tenant"
)

// CreateTenantRequest represents tenant registration data
type CreateTenantRequest struct {
	TenantID       string   `json:"tenant_id"`
	Name           string   `json:"name"`
	OwnerEmail     string   `json:"owner_email"`
	CallbackURLs   []string `json:"callback_urls"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	Scopes         []string `json:"scopes,omitempty"`
}

// CreateTenant registers a new tenant. The signing and API credentials in
// the response are shown exactly once and stored only as hashes.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" || req.Name == "" || req.OwnerEmail == "" {
		respondError(w, http.StatusBadRequest, "tenant_id, name and owner_email are required")
		return
	}

	reg, err := h.tenantService.Register(r.Context(), tenant.RegisterInput{
		ID:             req.TenantID,
		Name:           req.Name,
		OwnerID:        user.ID,
		OwnerEmail:     req.OwnerEmail,
		CallbackURLs:   req.CallbackURLs,
		AllowedOrigins: req.AllowedOrigins,
		Scopes:         req.Scopes,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"tenant_id":          reg.Tenant.ID,
		"name":               reg.Tenant.Name,
		"allowed_scopes":     reg.Tenant.AllowedScopes,
		"signing_credential": reg.SigningCredential,
		"api_credential":     reg.APICredential,
	})
}

// GetTenant returns a tenant's public profile: what a consent prompt needs,
// nothing about the owner, limits or usage.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.Lookup(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"tenant_id":      t.ID,
		"name":           t.Name,
		"allowed_scopes": t.AllowedScopes,
		"is_verified":    t.IsVerified,
	})
}

// ListTenants lists registered tenants (administrative)
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	tenants, err := h.tenantService.List(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

// VerifyTenant marks a tenant verified (administrative)
func (h *Handler) VerifyTenant(w http.ResponseWriter, r *http.Request) {
	h.adminTenantAction(w, r, h.tenantService.Verify)
}

// SuspendTenant soft-deactivates a tenant (administrative)
func (h *Handler) SuspendTenant(w http.ResponseWriter, r *http.Request) {
	h.adminTenantAction(w, r, h.tenantService.Suspend)
}

// ReactivateTenant re-enables a suspended tenant (administrative)
func (h *Handler) ReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.adminTenantAction(w, r, h.tenantService.Reactivate)
}

func (h *Handler) adminTenantAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id, actorID string) error) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := action(r.Context(), tenantID, "admin"); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"tenant_id": tenantID, "status": "updated"})
}
