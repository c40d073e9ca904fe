package internal

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// AsXXHash returns the XXHash128 of the given data.
// This hash is extremely fast and stable across processes and runs,
// which makes it usable as a join key for test identities.
// https://cyan4973.github.io/xxHash/
func AsXXHash(inputs ...[]byte) []byte {
	h := xxh3.New()
	for _, input := range inputs {
		// Write on xxh3 never returns an error.
		_, _ = h.Write(input)
	}

	return Uint128ToBytes(h.Sum128())
}

// HexDigest returns the XXHash128 of the given data as a 32 character
// lowercase hexadecimal string.
func HexDigest(inputs ...[]byte) string {
	return hex.EncodeToString(AsXXHash(inputs...))
}

// Uint128ToBytes converts a uint128 to a byte array
func Uint128ToBytes(a xxh3.Uint128) (b []byte) {
	b = make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], a.Lo)
	binary.LittleEndian.PutUint64(b[8:16], a.Hi)
	return
}
