// Package record implements the Record Codec (§4.3): decoding and
// cryptographic verification of signed authority DHT records.
//
// Grounded on decode_dht_record in
// original_source/cli/src/commands/authorities.rs, reworked into
// idiomatic Go (typed errors, %w wrapping) in the manner of the
// teacher's own identity/verification code.
package record

import (
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	mh "github.com/multiformats/go-multihash"
)

// Errors returned by Decode. Each corresponds to one of the failure
// conditions enumerated in §4.3.
var (
	ErrBadSignedRecord   = errors.New("record: outer signed record does not decode")
	ErrBadAuthSignature  = errors.New("record: authority signature invalid")
	ErrBadInnerRecord    = errors.New("record: inner authority record does not decode")
	ErrBadAddress        = errors.New("record: address is not a valid multiaddr")
	ErrNoAddresses       = errors.New("record: no addresses in record")
	ErrMixedPeerIDs      = errors.New("record: addresses assert more than one peer id")
	ErrNoPeerSignature   = errors.New("record: peer signature missing")
	ErrPeerIDMismatch    = errors.New("record: peer signature public key does not match asserted peer id")
	ErrBadPeerSignature  = errors.New("record: peer signature invalid")
	ErrBadPeerIDEncoding = errors.New("record: asserted peer id is not a valid multihash-encoded identity")
)

// Decoded is the successful result of decoding and verifying a signed
// authority DHT record: a single peer identity and its ordered address
// list, exactly as they appeared in the record.
type Decoded struct {
	PeerID    peer.ID
	Addresses []ma.Multiaddr
}

// Decode validates and decodes a raw DHT value for the given authority,
// per §4.3. Every listed failure condition returns a wrapped sentinel
// error so callers (the engine) can log at debug and move on without
// inspecting error text.
func Decode(value []byte, authority [32]byte) (*Decoded, error) {
	signed, err := UnmarshalSignedAuthorityRecord(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignedRecord, err)
	}

	authSig, err := parseSr25519Signature(signed.AuthSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAuthSignature, err)
	}
	if !verifySr25519(authSig, signed.Record, authority) {
		return nil, fmt.Errorf("%w: signature does not verify", ErrBadAuthSignature)
	}

	inner, err := UnmarshalAuthorityRecord(signed.Record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInnerRecord, err)
	}

	addrs := make([]ma.Multiaddr, 0, len(inner.Addresses))
	for _, raw := range inner.Addresses {
		a, err := ma.NewMultiaddrBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadAddress, err)
		}
		addrs = append(addrs, a)
	}
	if len(addrs) == 0 {
		return nil, ErrNoAddresses
	}

	peerIDs := make(map[peer.ID]struct{}, 1)
	for _, a := range addrs {
		pid, ok := terminalPeerID(a)
		if !ok {
			continue
		}
		peerIDs[pid] = struct{}{}
	}
	if len(peerIDs) != 1 {
		return nil, fmt.Errorf("%w: found %d distinct peer ids", ErrMixedPeerIDs, len(peerIDs))
	}
	var assertedPeer peer.ID
	for pid := range peerIDs {
		assertedPeer = pid
	}
	if !isIdentityOrSHA256Multihash(assertedPeer) {
		return nil, ErrBadPeerIDEncoding
	}

	if signed.PeerSignature == nil {
		return nil, ErrNoPeerSignature
	}
	peerPub, err := crypto.UnmarshalPublicKey(signed.PeerSignature.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPeerIDMismatch, err)
	}
	derivedPeer, err := peer.IDFromPublicKey(peerPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPeerIDMismatch, err)
	}
	if derivedPeer != assertedPeer {
		return nil, ErrPeerIDMismatch
	}
	ok, err := peerPub.Verify(signed.Record, signed.PeerSignature.Signature)
	if err != nil || !ok {
		return nil, ErrBadPeerSignature
	}

	return &Decoded{PeerID: assertedPeer, Addresses: addrs}, nil
}

// isIdentityOrSHA256Multihash reports whether pid decodes to a
// multihash using one of the two hash functions libp2p peer ids are
// legitimately built from: identity (for small, e.g. ed25519, public
// keys embedded directly) or sha2-256 (for larger keys). A DHT record
// asserting a peer id encoded any other way is rejected outright
// rather than passed on to the signature check below.
func isIdentityOrSHA256Multihash(pid peer.ID) bool {
	decoded, err := mh.Decode([]byte(pid))
	if err != nil {
		return false
	}
	return decoded.Code == mh.IDENTITY || decoded.Code == mh.SHA2_256
}

// terminalPeerID returns the peer id asserted by the last /p2p component
// in a multiaddr, if any. Walking every component (rather than using
// the first match) matches §3's "terminal P2P segment" wording and the
// ma.ForEach idiom already used in pkg/p2pnet/peermanager.go for
// extracting trailing components.
func terminalPeerID(addr ma.Multiaddr) (peer.ID, bool) {
	var (
		found bool
		value string
	)
	ma.ForEach(addr, func(c ma.Component) bool {
		if c.Protocol().Code == ma.P_P2P {
			value = c.Value()
			found = true
		}
		return true
	})
	if !found {
		return "", false
	}
	pid, err := peer.Decode(value)
	if err != nil {
		return "", false
	}
	return pid, true
}
