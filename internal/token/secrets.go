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
	"crypto/hmac"
	"crypto/sha256"

	"github.com/ghostgate/ghostgate/internal/tenant"
)

// DeriveTenantSecret returns the signing secret for a tenant. The reserved
// default tenant signs with the master secret directly; every other tenant
// gets HMAC(master, "tenant:" || tenant_id), a distinct deterministic secret
// the authority can always re-derive and never has to persist. Resource
// servers re-derive the same value to verify offline, so the derivation
// contract here must never change without a format version bump.
func DeriveTenantSecret(masterSecret []byte, tenantID string) []byte {
	if tenantID == tenant.DefaultTenantID {
		return masterSecret
	}
	mac := hmac.New(sha256.New, masterSecret)
	mac.Write([]byte("tenant:" + tenantID))
	return mac.Sum(nil)
}
