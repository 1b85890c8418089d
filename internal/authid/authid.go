// Package authid defines the authority identifier and its DHT key
// derivation used throughout the discovery engine and record codec.
package authid

import "crypto/sha256"

// ID is a 32-byte sr25519 public key identifying a validator authority.
// Equality is by content, so ID is safe to use as a map key.
type ID [32]byte

// String returns the lowercase hex encoding of the authority id.
func (id ID) String() string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range id {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}

// DhtKey is the 32-byte SHA2-256 digest of an authority id, used as the
// Kademlia record key under which its signed record is published.
type DhtKey [32]byte

// Hash derives the DHT key for an authority id: SHA2-256(id bytes).
// Derivation is deterministic and total.
func Hash(id ID) DhtKey {
	return DhtKey(sha256.Sum256(id[:]))
}

// Bytes returns the key as a byte slice, for use with DHT APIs that take
// []byte / string keys.
func (k DhtKey) Bytes() []byte {
	out := make([]byte, len(k))
	copy(out, k[:])
	return out
}
