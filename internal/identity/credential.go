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

package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const credentialIssuer = "ghostgate"

var (
	ErrCredentialInvalid = errors.New("invalid bearer credential")
	ErrCredentialExpired = errors.New("bearer credential expired")
)

// CredentialSigner mints and verifies the real-identity bearer credential
// clients present to the authority itself (HS256 JWT). This credential is
// strictly authority-facing: it never leaves the authority's trust boundary
// and is unrelated to the blind tokens issued for tenants.
type CredentialSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewCredentialSigner derives the credential signing key from the master
// secret under a fixed label, so the master secret itself never signs
// anything directly reachable by callers.
func NewCredentialSigner(masterSecret []byte, ttl time.Duration) *CredentialSigner {
	mac := hmac.New(sha256.New, masterSecret)
	mac.Write([]byte("credential"))
	return &CredentialSigner{
		secret: mac.Sum(nil),
		ttl:    ttl,
	}
}

type credentialClaims struct {
	Tier string `json:"tier"`
	jwt.RegisteredClaims
}

// Mint issues a bearer credential for an authenticated user
func (s *CredentialSigner) Mint(user *User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := credentialClaims{
		Tier: user.Tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    credentialIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates a bearer credential and returns the subject user ID
func (s *CredentialSigner) Verify(credential string) (string, error) {
	claims := &credentialClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(credentialIssuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrCredentialExpired
		}
		return "", ErrCredentialInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrCredentialInvalid
	}
	return claims.Subject, nil
}
