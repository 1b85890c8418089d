// Package ss58 implements Substrate's SS58 address encoding (§4.4):
// a version-prefixed, Blake2b-checksummed Base58 encoding of a public
// key. Grounded on the reference encoder in
// original_source/cli/src/commands/authorities.rs (to_ss58/ss58hash),
// reworked as a small standalone Go package in the style of
// pkg/p2pnet/identity.go — a narrow, dependency-light helper with a
// single clear responsibility.
package ss58

import (
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// checksumPrefix is prepended to the address body before hashing, per
// the SS58 specification ("SS58PRE").
var checksumPrefix = []byte("SS58PRE")

// Registry maps well-known network names to their SS58 version/ident.
// Values taken from the Substrate ss58-registry: Polkadot uses 0,
// generic Substrate uses 42, Kusama uses 2.
var Registry = map[string]uint16{
	"polkadot":  0,
	"kusama":    2,
	"substrate": 42,
}

// Lookup resolves a registry name (case-sensitive, as accepted on the
// CLI) to its version number.
func Lookup(name string) (uint16, error) {
	v, ok := Registry[name]
	if !ok {
		return 0, fmt.Errorf("unknown ss58 address format %q (known: polkadot, kusama, substrate)", name)
	}
	return v, nil
}

// Encode renders a 32-byte public key as an SS58 address under the
// given network version, following §4.4 exactly:
//
//  1. ident = version & 0x3FFF
//  2. prefix is one byte if ident <= 63, else the two-byte form below
//  3. body = prefix || pubkey
//  4. checksum = Blake2b-512("SS58PRE" || body)[0:2]
//  5. result = Base58(body || checksum)
func Encode(pubkey [32]byte, version uint16) string {
	ident := version & 0x3FFF

	var prefix []byte
	if ident <= 63 {
		prefix = []byte{byte(ident)}
	} else {
		first := byte((ident&0x00FC)>>2) | 0x40
		second := byte(ident>>8) | byte((ident&0x0003)<<6)
		prefix = []byte{first, second}
	}

	body := make([]byte, 0, len(prefix)+32)
	body = append(body, prefix...)
	body = append(body, pubkey[:]...)

	checksum := ss58Hash(body)
	full := append(body, checksum[:2]...)

	return base58.Encode(full)
}

// Decode reverses Encode: given an SS58 address and the expected
// version, it returns the embedded public key. It fails if the
// checksum doesn't validate or the embedded version doesn't match.
func Decode(addr string, version uint16) ([32]byte, error) {
	var out [32]byte

	raw, err := base58.Decode(addr)
	if err != nil {
		return out, fmt.Errorf("invalid base58: %w", err)
	}

	ident := version & 0x3FFF
	var prefixLen int
	switch {
	case ident <= 63:
		prefixLen = 1
	default:
		prefixLen = 2
	}

	if len(raw) != prefixLen+32+2 {
		return out, fmt.Errorf("unexpected ss58 payload length %d", len(raw))
	}

	body := raw[:len(raw)-2]
	checksum := raw[len(raw)-2:]

	want := ss58Hash(body)
	if want[0] != checksum[0] || want[1] != checksum[1] {
		return out, fmt.Errorf("ss58 checksum mismatch")
	}

	wantPrefix := []byte{byte(ident)}
	if prefixLen == 2 {
		wantPrefix = []byte{byte((ident&0x00FC)>>2) | 0x40, byte(ident>>8) | byte((ident&0x0003)<<6)}
	}
	for i := range wantPrefix {
		if body[i] != wantPrefix[i] {
			return out, fmt.Errorf("ss58 version mismatch")
		}
	}

	copy(out[:], body[prefixLen:])
	return out, nil
}

func ss58Hash(body []byte) [64]byte {
	h, err := blake2b.New512(nil)
	if err != nil {
		// blake2b.New512 only fails for a bad key, and we pass nil.
		panic(fmt.Sprintf("ss58: blake2b init: %v", err))
	}
	h.Write(checksumPrefix)
	h.Write(body)
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}
