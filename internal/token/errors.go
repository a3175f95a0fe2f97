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
	"errors"
	"fmt"
	"time"
)

// Issuance and verification errors. Caller-input and policy violations are
// distinct sentinel values so the transport layer can map them to structured
// responses without leaking internal detail.
var (
	ErrTenantInactive        = errors.New("tenant is deactivated")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrUnsupportedVersion    = errors.New("unsupported token format version")
	ErrNonceNotFound         = errors.New("nonce not found")
	ErrNotOwner              = errors.New("token not owned by caller")
)

// ConsentRequiredError is returned when no active consent row exists for the
// (user, tenant) pair. It carries what the caller needs to start a grant
// flow; issuance never auto-grants on its behalf.
type ConsentRequiredError struct {
	TenantID      string   `json:"tenant_id"`
	TenantName    string   `json:"tenant_name"`
	AllowedScopes []string `json:"allowed_scopes"`
}

func (e *ConsentRequiredError) Error() string {
	return fmt.Sprintf("consent required for tenant %s", e.TenantID)
}

// RateLimitedError is returned when the issuance budget for a (user, tenant)
// pair is exhausted. RetryAfter is when the oldest contributing window
// expires.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
