package record

import (
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
)

// signingContext is the sr25519 signing context literal Substrate uses
// for all runtime and authority-discovery signatures (§3).
var signingContext = []byte("substrate")

// verifySr25519 checks that sig is a valid sr25519 signature over msg
// under pubkey, using the "substrate" signing context. Grounded on the
// reference verifier in
// original_source/cli/src/commands/authorities.rs (mod sr25519), ported
// to the Go sr25519 implementation used across the Substrate-Go
// ecosystem (DESIGN.md: out-of-pack dependency, no library in the
// retrieval pack implements sr25519/schnorrkel).
func verifySr25519(sig [64]byte, msg []byte, pubkey [32]byte) bool {
	pk, err := schnorrkel.NewPublicKey(pubkey)
	if err != nil {
		return false
	}
	s := &schnorrkel.Signature{}
	if err := s.Decode(sig); err != nil {
		return false
	}

	transcript := schnorrkel.NewSigningContext(signingContext, msg)
	ok, err := pk.Verify(s, transcript)
	if err != nil {
		return false
	}
	return ok
}

// parseSr25519Signature validates that a signature field is exactly
// the 64 bytes sr25519 expects.
func parseSr25519Signature(b []byte) ([64]byte, error) {
	var out [64]byte
	if len(b) != 64 {
		return out, fmt.Errorf("sr25519 signature must be 64 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
