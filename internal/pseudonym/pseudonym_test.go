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

package pseudonym

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveDeterministic(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	first, err := Derive("user-1", secret)
	require.NoError(t, err)
	second, err := Derive("user-1", secret)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	_, err = uuid.Parse(first)
	assert.NoError(t, err, "pseudonym is UUID-formatted")
}

// Distinct secrets produce unlinkable pseudonyms for the same user, and the
// pseudonym never contains the real identifier.
func TestDeriveUnlinkable(t *testing.T) {
	secretA, err := NewSecret()
	require.NoError(t, err)
	secretB, err := NewSecret()
	require.NoError(t, err)

	ghostA, err := Derive("user-1", secretA)
	require.NoError(t, err)
	ghostB, err := Derive("user-1", secretB)
	require.NoError(t, err)
	ghostOther, err := Derive("user-2", secretA)
	require.NoError(t, err)

	assert.NotEqual(t, ghostA, ghostB)
	assert.NotEqual(t, ghostA, ghostOther)
	assert.NotContains(t, ghostA, "user-1")
}

func TestDeriveRejectsBadInput(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	_, err = Derive("", secret)
	assert.Error(t, err)

	_, err = Derive("user-1", secret[:16])
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestArtifactRoundTrip(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)

	artifact, err := ExportArtifact(secret)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(artifact, "ghostkey."))

	recovered, err := ImportArtifact(artifact)
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)

	// The recovered secret rebuilds the same pseudonym on a new device.
	original, err := Derive("user-1", secret)
	require.NoError(t, err)
	rebuilt, err := Derive("user-1", recovered)
	require.NoError(t, err)
	assert.Equal(t, original, rebuilt)
}

func TestImportArtifactRejectsTampering(t *testing.T) {
	secret, err := NewSecret()
	require.NoError(t, err)
	artifact, err := ExportArtifact(secret)
	require.NoError(t, err)

	cases := []string{
		"",
		"not-an-artifact",
		"ghostkey.",
		"ghostkey.!!!",
		artifact[:len(artifact)-2],
	}
	// Flip a character inside the payload so the checksum no longer matches.
	body := []byte(artifact)
	last := len(body) - 1
	if body[last] == 'A' {
		body[last] = 'B'
	} else {
		body[last] = 'A'
	}
	cases = append(cases, string(body))

	for _, tc := range cases {
		_, err := ImportArtifact(tc)
		assert.ErrorIs(t, err, ErrInvalidArtifact, "artifact %q", tc)
	}
}

func TestExportArtifactRejectsBadSecret(t *testing.T) {
	_, err := ExportArtifact([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidSecret)
}
