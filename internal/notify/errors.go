package notify

import "errors"

var (
	// ErrProtocolClosed is returned by Send when the target protocol's
	// substreams are not open.
	ErrProtocolClosed = errors.New("notify: protocol substream not open")
	// ErrHandshakeMismatch is returned when a peer's handshake response
	// cannot be read as a length-prefixed frame.
	ErrHandshakeMismatch = errors.New("notify: malformed handshake frame")
)
