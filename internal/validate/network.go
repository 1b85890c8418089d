// Package validate checks CLI-supplied values before they reach
// networking or decoding code, in the style of peer-up's own
// ServiceName/NetworkName guards: a regexp or parse attempt plus a
// sentinel error, never a panic.
package validate

import (
	"encoding/hex"
	"fmt"
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/authdisco/internal/ss58"
)

// Bootnode checks that a bootnode string parses as a multiaddr and
// names a peer id via a trailing /p2p/<id> component, the shape the
// swarm's bootstrap dialer requires.
func Bootnode(addr string) (ma.Multiaddr, error) {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidBootnode, addr, err)
	}
	if _, err := m.ValueForProtocol(ma.P_P2P); err != nil {
		return nil, fmt.Errorf("%w: %q: missing /p2p/<peer-id> component", ErrInvalidBootnode, addr)
	}
	return m, nil
}

// GenesisHash checks that s is a 32-byte hex string, with or without a
// leading 0x, and returns the decoded bytes.
func GenesisHash(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidGenesisHash, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidGenesisHash, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// AddressFormat checks that name is a known ss58 registry entry and
// returns its version number.
func AddressFormat(name string) (uint16, error) {
	v, err := ss58.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAddressFormat, err)
	}
	return v, nil
}
