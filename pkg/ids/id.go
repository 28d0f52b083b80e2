// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SlotIDLen is the byte length of a slot identifier.
const SlotIDLen = 20

// SlotID is the address-like identifier of an advertising slot.
type SlotID [SlotIDLen]byte

// Empty is the zero slot identifier.
var Empty SlotID

// DeriveSlotID derives a slot identifier from the creator identity and the
// registry's creation sequence number. The sequence number strictly increases,
// so identifiers are never reused.
func DeriveSlotID(creator string, seq uint64) SlotID {
	h := sha3.New256()
	h.Write([]byte(creator))

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	h.Write(seqBuf[:])

	var id SlotID
	copy(id[:], h.Sum(nil))
	return id
}

// GenerateTestID creates a random slot identifier for testing.
func GenerateTestID() SlotID {
	var id SlotID
	rand.Read(id[:])
	return id
}

// String returns the 0x-prefixed hex representation of the identifier.
func (id SlotID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the identifier.
func (id SlotID) Bytes() []byte {
	return id[:]
}

// IsEmpty reports whether the identifier is the zero value.
func (id SlotID) IsEmpty() bool {
	return id == Empty
}

// FromString parses a slot identifier from its hex form. A leading "0x" is
// accepted and ignored.
func FromString(s string) (SlotID, error) {
	var id SlotID
	s = strings.TrimPrefix(s, "0x")
	bytes, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(bytes) != SlotIDLen {
		return id, fmt.Errorf("invalid slot ID length: expected %d, got %d", SlotIDLen, len(bytes))
	}
	copy(id[:], bytes)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so slot IDs render as hex in
// JSON facts and API payloads.
func (id SlotID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SlotID) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
