// Package types defines the small set of shared scalar types used
// throughout the grove: content hashes and the all-zero sentinel used in
// place of a missing Merk child.
package types

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the width in bytes of every content hash in the grove
// (value_hash, kv_hash, node_hash, subtree prefixes, MMR/frontier roots).
const HashLength = 32

// Hash is a 32-byte Blake3 digest.
type Hash [HashLength]byte

// ZeroHash is the sentinel used for a missing child link when computing
// node_hash (spec.md §3.1).
var ZeroHash = Hash{}

// BytesToHash converts b to a Hash, left-padding with zeros if b is
// shorter than HashLength and truncating from the left if longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash parses a hex string (with or without "0x" prefix) into a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// Bytes returns the 32-byte slice backing h.
func (h Hash) Bytes() []byte { return h[:] }

// Hex renders h as a "0x"-prefixed hex string.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// SetBytes sets h from b, left-padding or left-truncating to HashLength.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	*h = Hash{}
	copy(h[HashLength-len(b):], b)
}

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool { return h == Hash{} }

func fromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("types: invalid hex hash %q: %v", s, err))
	}
	return b
}
