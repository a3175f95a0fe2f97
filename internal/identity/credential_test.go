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
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialMintVerifyRoundTrip(t *testing.T) {
	signer := NewCredentialSigner([]byte("test-master-secret-32-bytes-long"), time.Hour)
	user := &User{ID: "user-1", Tier: TierPlus}

	credential, expiresAt, err := signer.Mint(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	subject, err := signer.Verify(credential)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestCredentialVerifyWrongMaster(t *testing.T) {
	signer := NewCredentialSigner([]byte("master-a-master-a-master-a-maste"), time.Hour)
	other := NewCredentialSigner([]byte("master-b-master-b-master-b-maste"), time.Hour)

	credential, _, err := signer.Mint(&User{ID: "user-1", Tier: TierStandard})
	require.NoError(t, err)

	_, err = other.Verify(credential)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestCredentialVerifyExpired(t *testing.T) {
	signer := NewCredentialSigner([]byte("test-master-secret-32-bytes-long"), -time.Minute)

	credential, _, err := signer.Mint(&User{ID: "user-1", Tier: TierStandard})
	require.NoError(t, err)

	_, err = signer.Verify(credential)
	assert.ErrorIs(t, err, ErrCredentialExpired)
}

// A token asserting alg=none must never verify, even with an otherwise
// plausible claim set.
func TestCredentialVerifyRejectsUnsignedAlg(t *testing.T) {
	signer := NewCredentialSigner([]byte("test-master-secret-32-bytes-long"), time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "ghostgate",
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	credential, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = signer.Verify(credential)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestCredentialVerifyRejectsWrongIssuer(t *testing.T) {
	signer := NewCredentialSigner([]byte("test-master-secret-32-bytes-long"), time.Hour)

	// Signed with the right key but the wrong issuer claim.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	credential, err := forged.SignedString(signer.secret)
	require.NoError(t, err)

	_, err = signer.Verify(credential)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := testHasher()

	hash, err := hasher.Hash("correct-horse-battery")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := hasher.Verify("correct-horse-battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Salts are random per hash, so identical passwords never share a hash.
func TestPasswordHasherSaltsDiffer(t *testing.T) {
	hasher := testHasher()

	first, err := hasher.Hash("correct-horse-battery")
	require.NoError(t, err)
	second, err := hasher.Hash("correct-horse-battery")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasherRejectsMalformedHash(t *testing.T) {
	hasher := testHasher()
	for _, encoded := range []string{"", "plaintext", "$bcrypt$whatever", "$argon2id$v=19$m=8192"} {
		_, err := hasher.Verify("anything", encoded)
		assert.Error(t, err, "hash %q", encoded)
	}
}
