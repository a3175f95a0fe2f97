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

// Package pseudonym implements the client-side ghost identifier derivation.
//
// This code runs ONLY on the user's device. The authority never computes,
// stores, or receives a pseudonym; without the device-held secret a resource
// server cannot link a pseudonym back to the real identity.
package pseudonym

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SecretSize is the size of the device-held derivation secret in bytes.
const SecretSize = 32

// artifactPrefix marks an exported recovery artifact.
const artifactPrefix = "ghostkey."

var (
	ErrInvalidSecret   = errors.New("derivation secret must be 32 bytes")
	ErrInvalidArtifact = errors.New("invalid recovery artifact")
)

// NewSecret generates a fresh 256-bit derivation secret. It is generated
// once per device and held only in secure local storage.
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate derivation secret: %w", err)
	}
	return secret, nil
}

// Derive computes the ghost identifier for a real user identifier.
// Identical inputs always yield the identical pseudonym; the digest is
// irreversible without the secret.
func Derive(userID string, secret []byte) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if len(secret) != SecretSize {
		return "", ErrInvalidSecret
	}

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write(secret)
	sum := h.Sum(nil)

	// Format the leading 16 digest bytes as a UUID string. No version bits
	// are forced: the value is a digest, not a generated UUID, and changing
	// bits would break determinism across implementations.
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		return "", fmt.Errorf("failed to format pseudonym: %w", err)
	}
	return id.String(), nil
}

// ExportArtifact encodes the secret as a recovery artifact the user can
// store offline. Restoring it on a new device after re-authenticating with
// the real identity provider reconstructs the same pseudonym.
func ExportArtifact(secret []byte) (string, error) {
	if len(secret) != SecretSize {
		return "", ErrInvalidSecret
	}
	check := sha256.Sum256(secret)
	payload := append(append([]byte{}, secret...), check[:4]...)
	return artifactPrefix + base64.RawURLEncoding.EncodeToString(payload), nil
}

// ImportArtifact decodes a recovery artifact back into the secret.
func ImportArtifact(artifact string) ([]byte, error) {
	if !strings.HasPrefix(artifact, artifactPrefix) {
		return nil, ErrInvalidArtifact
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(artifact, artifactPrefix))
	if err != nil {
		return nil, ErrInvalidArtifact
	}
	if len(payload) != SecretSize+4 {
		return nil, ErrInvalidArtifact
	}
	secret := payload[:SecretSize]
	check := sha256.Sum256(secret)
	for i := 0; i < 4; i++ {
		if payload[SecretSize+i] != check[i] {
			return nil, ErrInvalidArtifact
		}
	}
	return secret, nil
}
