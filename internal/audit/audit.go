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

package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event categories
const (
	CategoryAuth     = "auth"
	CategoryToken    = "token"
	CategoryConsent  = "consent"
	CategoryAdmin    = "admin"
	CategorySecurity = "security"
)

// Actions
const (
	ActionLogin             = "login"
	ActionRegister          = "register"
	ActionTokenIssued       = "token_issued"
	ActionTokenRevoked      = "token_revoked"
	ActionTokenRevokedAll   = "token_revoked_all"
	ActionConsentGranted    = "consent_granted"
	ActionConsentRevoked    = "consent_revoked"
	ActionTenantRegistered  = "tenant_registered"
	ActionTenantUpdated     = "tenant_updated"
	ActionTenantVerified    = "tenant_verified"
	ActionTenantSuspended   = "tenant_suspended"
	ActionTenantReactivated = "tenant_reactivated"
	ActionRateLimited       = "rate_limited"
)

// Event represents an auditable action. Actor is empty for events that
// happen before authentication. An event must never carry a real user
// identifier and a pseudonymous identifier at the same time.
type Event struct {
	Actor     string
	Action    string
	Category  string
	Metadata  map[string]any
	Success   bool
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_action", event.Action),
		slog.String("category", event.Category),
		slog.Bool("success", event.Success),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.Actor != "" {
		attrs = append(attrs, slog.String("actor", event.Actor))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	// Flatten metadata
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	secrets := []string{"password", "secret", "token", "key", "authorization", "credential", "api_credential", "signing_credential"}
	for _, s := range secrets {
		if key == s {
			return true
		}
	}
	return false
}
