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
	"time"

	"github.com/ghostgate/ghostgate/internal/identity"
	"github.com/ghostgate/ghostgate/internal/observability/logger"
)

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch err {
		case identity.ErrUserAlreadyExists:
			respondError(w, http.StatusConflict, "user already exists")
		case identity.ErrWeakPassword:
			respondError(w, http.StatusBadRequest, "password does not meet security requirements")
		default:
			slog.ErrorContext(r.Context(), "failed to register user", logger.Error(err))
			respondError(w, http.StatusBadRequest, "failed to register user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// LoginRequest represents login credentials. Either email and password or
// a hardware-key assertion identifies the caller.
type LoginRequest struct {
	Email     string `json:"email,omitempty"`
	Password  string `json:"password,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Assertion []byte `json:"assertion,omitempty"`
}

// Login authenticates a user and mints a bearer credential
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		user       *identity.User
		credential string
		expiresAt  time.Time
		err        error
	)
	if len(req.Assertion) > 0 {
		user, credential, expiresAt, err = h.identityService.AuthenticateWithKey(r.Context(), req.UserID, req.Assertion)
	} else {
		user, credential, expiresAt, err = h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	}
	if err != nil {
		switch err {
		case identity.ErrAccountSuspended:
			respondError(w, http.StatusForbidden, "account suspended")
		default:
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":    user.ID,
		"tier":       user.Tier,
		"credential": credential,
		"expires_at": expiresAt,
	})
}
