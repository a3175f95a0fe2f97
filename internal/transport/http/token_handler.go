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
	"log/slog"
	"net/http"

	"github.com/ghostgate/ghostgate/internal/observability/logger"
	"github.com/ghostgate/ghostgate/internal/tenant"
)

// IssueTokenRequest represents a token issuance request. An empty tenant_id
// targets the authority's own default tenant.
type IssueTokenRequest struct {
	TenantID string   `json:"tenant_id,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

// IssueToken mints a blind token for the authenticated caller
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req IssueTokenRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	issued, err := h.issuer.Issue(r.Context(), user, req.TenantID, req.Scopes)
	if err != nil {
		slog.InfoContext(r.Context(), "token issuance rejected",
			logger.TenantID(req.TenantID),
			logger.ErrorType(err.Error()),
		)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":      issued.Token,
		"expires_at": issued.ExpiresAt,
		"tier":       issued.Tier,
		"tenant_id":  issued.TenantID,
	})
}

// RevokeTokenRequest revokes one nonce or every live token of the caller
type RevokeTokenRequest struct {
	Nonce     string `json:"nonce,omitempty"`
	RevokeAll bool   `json:"revoke_all,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RevokeToken marks issued tokens revoked in the ledger
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req RevokeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "user_requested"
	}

	switch {
	case req.RevokeAll:
		result, err := h.ledger.RevokeAllForUser(r.Context(), user.ID, reason)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"revoked_count": result.Count})
	case req.Nonce != "":
		result, err := h.ledger.Revoke(r.Context(), user.ID, req.Nonce, reason)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"revoked_count": result.Count})
	default:
		respondError(w, http.StatusBadRequest, "nonce or revoke_all is required")
	}
}

// IntrospectTokenRequest represents a token introspection request
type IntrospectTokenRequest struct {
	Token    string `json:"token"`
	TenantID string `json:"tenant_id"`
}

// IntrospectToken verifies a presented token and reports its ledger state.
// The caller is a registered tenant authenticating with the API credential
// issued at registration. Resource servers can verify offline; this endpoint
// adds the revocation check that signature validity alone cannot provide.
// Tokens for the reserved default tenant are consumed by the authority
// itself, which consults the ledger directly.
func (h *Handler) IntrospectToken(w http.ResponseWriter, r *http.Request) {
	var req IntrospectTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}
	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	t, err := h.tenantService.Lookup(r.Context(), req.TenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !tenant.VerifyCredential(r.Header.Get("X-API-Credential"), t.APICredentialHash) {
		respondError(w, http.StatusUnauthorized, "invalid api credential")
		return
	}

	result, err := h.issuer.Introspect(r.Context(), req.Token, req.TenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
