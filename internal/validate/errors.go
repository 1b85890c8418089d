package validate

import "errors"

var (
	// ErrInvalidBootnode is returned when a bootnode string does not
	// parse as a multiaddr naming a peer id.
	ErrInvalidBootnode = errors.New("invalid bootnode address")

	// ErrInvalidGenesisHash is returned when a genesis hash string is
	// not 32 bytes of hex.
	ErrInvalidGenesisHash = errors.New("invalid genesis hash")

	// ErrInvalidAddressFormat is returned when an address format name
	// is not a known ss58 registry entry.
	ErrInvalidAddressFormat = errors.New("invalid address format")
)
