package notify

import (
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// NodeRole is the single byte asserted in the transactions protocol's
// handshake. Substrate defines several (full, light, authority); this
// implementation only ever dials as a passive observer.
type NodeRole byte

// nodeRoleFull is the node-role byte value used for the handshake on
// ProtocolTransactions (§9 open question: the reference client always
// presents as a full, non-authoring node since it never participates
// in consensus — decided in DESIGN.md).
const nodeRoleFull NodeRole = 1

// BlockAnnouncesHandshake builds the SCALE-encoded handshake payload
// for ProtocolBlockAnnounces: protocol version (1 byte, fixed at 1),
// the genesis hash (32 bytes), the best block number as a
// little-endian u32 (4 bytes, always 0) and the best block hash
// (32 bytes, the genesis hash again), matching the shape of Substrate's
// BlockAnnouncesHandshake without requiring a live chain sync state —
// this client advertises genesis as its best block, which is
// sufficient to complete the handshake with a peer.
func BlockAnnouncesHandshake(genesisHash [32]byte) []byte {
	buf := make([]byte, 0, 1+32+4)
	buf = append(buf, 1) // protocol version
	buf = append(buf, genesisHash[:]...)
	buf = append(buf, 0, 0, 0, 0)        // best block number: genesis (u32, little-endian)
	buf = append(buf, genesisHash[:]...) // best block hash: genesis
	return buf
}

// TransactionsHandshake builds the single-byte node-role handshake
// payload for ProtocolTransactions.
func TransactionsHandshake() []byte {
	return []byte{byte(nodeRoleFull)}
}

// encodeCompactU32 SCALE-encodes a u32 in compact form: single-byte
// mode below 64, four-byte mode otherwise (the two-byte mode is never
// emitted, and values of 1<<30 and above lose their top two bits).
// BlockAnnouncesHandshake does not use it; its block number is a
// fixed-width u32.
func encodeCompactU32(v uint32) []byte {
	if v < 1<<6 {
		return []byte{byte(v << 2)}
	}
	return []byte{
		byte(v<<2) | 0b10,
		byte(v >> 6),
		byte(v >> 14),
		byte(v >> 22),
	}
}

// writeFramedMessage writes b to w prefixed with an unsigned-varint
// length, the framing Substrate's notification protocols use on the
// wire for both handshakes and steady-state notifications.
func writeFramedMessage(w io.Writer, b []byte) error {
	prefix := varint.ToUvarint(uint64(len(b)))
	if _, err := w.Write(prefix); err != nil {
		return fmt.Errorf("notify: write length prefix: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("notify: write frame body: %w", err)
	}
	return nil
}

// readFramedMessage reads one varint-length-prefixed frame from r,
// rejecting frames larger than maxFrame to bound memory use from a
// misbehaving or malicious peer.
func readFramedMessage(r io.Reader, maxFrame int) ([]byte, error) {
	n, err := varint.ReadUvarint(byteReader{r})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeMismatch, err)
	}
	if n > uint64(maxFrame) {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit %d", ErrHandshakeMismatch, n, maxFrame)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeMismatch, err)
	}
	return buf, nil
}

// byteReader adapts an io.Reader to io.ByteReader for varint.ReadUvarint,
// which needs one byte at a time.
type byteReader struct {
	io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
