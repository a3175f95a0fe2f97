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
	"net/http"

	"github.com/ghostgate/ghostgate/internal/consent"
)

// ListConsents lists the caller's consent rows
func (h *Handler) ListConsents(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	activeOnly := r.URL.Query().Get("active") == "true"

	consents, err := h.consentService.ListForUser(r.Context(), user.ID, activeOnly)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"consents": consents})
}

// GrantConsentRequest represents a consent grant
type GrantConsentRequest struct {
	TenantID string   `json:"tenant_id"`
	Scopes   []string `json:"scopes,omitempty"`
}

// GrantConsent records an explicit grant for a tenant. An empty scope list
// grants the tenant's full allowed set.
func (h *Handler) GrantConsent(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req GrantConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	t, err := h.tenantService.Lookup(r.Context(), req.TenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	c, err := h.consentService.Grant(r.Context(), user.ID, t, req.Scopes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

// RevokeConsent revokes the caller's own consent for a tenant
func (h *Handler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	if err := h.consentService.Revoke(r.Context(), user.ID, tenantID, consent.RevokedByUser); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"tenant_id": tenantID,
		"status":    "revoked",
	})
}
