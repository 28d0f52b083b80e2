// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveSlotID(t *testing.T) {
	require := require.New(t)

	a := DeriveSlotID("owner-1", 1)
	require.Equal(a, DeriveSlotID("owner-1", 1))

	// Distinct sequence numbers and owners give distinct identifiers.
	require.NotEqual(a, DeriveSlotID("owner-1", 2))
	require.NotEqual(a, DeriveSlotID("owner-2", 1))
	require.False(a.IsEmpty())
}

func TestStringRoundTrip(t *testing.T) {
	require := require.New(t)

	id := GenerateTestID()
	s := id.String()
	require.Len(s, 2+2*SlotIDLen)
	require.Equal("0x", s[:2])

	parsed, err := FromString(s)
	require.NoError(err)
	require.Equal(id, parsed)

	// Bare hex without the prefix also parses.
	parsed, err = FromString(s[2:])
	require.NoError(err)
	require.Equal(id, parsed)
}

func TestFromStringInvalid(t *testing.T) {
	require := require.New(t)

	_, err := FromString("0x1234")
	require.Error(err)

	_, err = FromString("not-hex")
	require.Error(err)
}

func TestJSONRoundTrip(t *testing.T) {
	require := require.New(t)

	id := GenerateTestID()
	data, err := json.Marshal(id)
	require.NoError(err)
	require.Contains(string(data), id.String())

	var decoded SlotID
	require.NoError(json.Unmarshal(data, &decoded))
	require.Equal(id, decoded)
}
