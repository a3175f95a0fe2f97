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

package tenant

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// Credential prefixes distinguish the two credential kinds in support
// tooling without revealing anything about the value.
const (
	signingCredentialPrefix = "gsk_"
	apiCredentialPrefix     = "gak_"
)

// generateCredential returns a prefixed high-entropy credential string
func generateCredential(prefix string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate credential: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashCredential produces the irreversible digest stored server-side.
// Plain SHA-256 is sufficient here: credentials carry 256 bits of entropy,
// so dictionary attacks do not apply.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyCredential compares a presented credential against a stored hash
// in constant time.
func VerifyCredential(credential, storedHash string) bool {
	presented := HashCredential(credential)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}

// CredentialAuditPrefix returns a short non-reversible correlation prefix
// safe to place in audit metadata.
func CredentialAuditPrefix(credential string) string {
	hash := HashCredential(credential)
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}
