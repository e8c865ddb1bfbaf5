// Package ids implements the deterministic hash and identity primitives
// that the rest of the engine builds on: NodeID, FrameID, and basis hashes
// are all 32-byte digests over a fixed, endian-stable byte encoding.
package ids

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte content digest. NodeID and FrameID are both Hash values;
// they are type aliases of Hash, so the compiler does not stop a caller from
// passing one where the other is expected.
type Hash [32]byte

// hashLen is the byte width of a Hash, used when decoding fixed-width
// fields out of canonical encodings.
const hashLen = 32

// NodeID identifies a node in the Merkle tree.
type NodeID = Hash

// FrameID identifies an immutable context frame.
type FrameID = Hash

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether h is the all-zero hash (the unset/sentinel value).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ParseHex decodes a 64-character lowercase hex string into a Hash.
func ParseHex(s string) (Hash, error) {
	var h Hash
	if len(s) != hex.EncodedLen(len(h)) {
		return Hash{}, fmt.Errorf("ids: invalid hash length %d, want %d", len(s), hex.EncodedLen(len(h)))
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("ids: invalid hex digits: %w", err)
	}
	copy(h[:], decoded)
	return h, nil
}

// sum256 is the sole hashing primitive every derivation below funnels through.
func sum256(b []byte) Hash {
	return sha256.Sum256(b)
}

// lenPrefixed appends a big-endian uint32 length prefix followed by b to dst.
// This is the canonical way variable-length fields are embedded in a hash
// input so that e.g. ("ab","c") and ("a","bc") never collide.
func lenPrefixed(dst []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, b...)
	return dst
}
