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
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FormatVersion is the current token payload version. Adding a payload
// field requires bumping this and branching on it in both Sign and Verify.
const FormatVersion = 1

// Payload is the self-contained token body. The field set is fixed per
// version: no identity, no email, no pseudonym, ever.
type Payload struct {
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Tier      string `json:"tier"`
	Nonce     string `json:"nonce"`
	App       string `json:"app"`
	Version   int    `json:"v"`
}

// Expired reports whether the payload is past its expiry at the given time
func (p *Payload) Expired(now time.Time) bool {
	return now.Unix() > p.ExpiresAt
}

// Sign serializes the payload and signs it with HMAC-SHA256 under the
// tenant secret. Wire format: base64url(JSON) + "." + base64url(signature).
func Sign(payload *Payload, secret []byte) (string, error) {
	if payload.Version != FormatVersion {
		return "", ErrUnsupportedVersion
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return encoded + "." + sig, nil
}

// Verify checks the signature and expiry of a signed token and returns its
// payload. The signature comparison is fixed-time. Revocation is a separate
// concern: a verified token may still be revoked in the ledger.
func Verify(signed string, secret []byte, now time.Time) (*Payload, error) {
	encoded, sig, ok := strings.Cut(signed, ".")
	if !ok || encoded == "" || sig == "" {
		return nil, ErrTokenMalformed
	}

	gotSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	if !hmac.Equal(gotSig, mac.Sum(nil)) {
		return nil, ErrTokenSignatureInvalid
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	payload := &Payload{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, ErrTokenMalformed
	}

	if payload.Version != FormatVersion {
		return nil, ErrUnsupportedVersion
	}
	if payload.Expired(now) {
		return nil, ErrTokenExpired
	}

	return payload, nil
}

// ContentHash returns the hex digest of a full signed token. The ledger
// stores this fingerprint instead of the token itself.
func ContentHash(signed string) string {
	sum := sha256.Sum256([]byte(signed))
	return fmt.Sprintf("%x", sum)
}
