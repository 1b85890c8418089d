// Package notify implements the Notifications Connection Handler
// (§4.2): per-connection substream lifecycle management for the two
// hardcoded notification protocols (block-announces, transactions),
// driven by a single goroutine per peer in the poll-contract order the
// reference handler uses: drain pending events, then per-open-protocol
// send/flush, then per-protocol inbound poll.
//
// Grounded on NotificationsHandler in
// original_source/subp2p-explorer/src/notifications/handler.rs.
package notify

import (
	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolIndex names the two hardcoded protocol slots a Handler
// manages, matching the reference's fixed index 0/1 protocol list.
type ProtocolIndex int

const (
	// ProtocolBlockAnnounces carries block-announce gossip; its
	// handshake asserts the chain's genesis hash and best block.
	ProtocolBlockAnnounces ProtocolIndex = iota
	// ProtocolTransactions carries transaction gossip; its handshake
	// is a single node-role byte.
	ProtocolTransactions

	numProtocols = 2
)

// ProtocolDetails describes one negotiable substream protocol and the
// handshake payload to send when opening or accepting it.
type ProtocolDetails struct {
	Name      protocol.ID
	Handshake []byte
}

// State is a protocol substream's lifecycle state, mirroring the
// reference handler's State enum.
type State int

const (
	// StateClosed: neither substream exists.
	StateClosed State = iota
	// StateOpenDesiredByRemote: the remote opened an inbound substream
	// and is waiting for us to open the matching outbound one.
	StateOpenDesiredByRemote
	// StateOpening: we have asked to open the outbound substream and
	// are waiting for the handshake to complete.
	StateOpening
	// StateOpen: both substreams are open and handshaked; notifications
	// flow in both directions.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpenDesiredByRemote:
		return "open-desired-by-remote"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// EventKind discriminates Event, the union of everything a Handler
// reports to its owner (the ToBehavior enum in the reference).
type EventKind int

const (
	EventHandshakeCompleted EventKind = iota
	EventHandshakeError
	EventOpenDesiredByRemote
	EventCloseDesired
	EventClosed
	EventNotification
)

// Event is one state-machine notification for a single protocol slot.
type Event struct {
	Kind     EventKind
	Protocol ProtocolIndex

	Handshake []byte // EventHandshakeCompleted
	Inbound   bool   // EventHandshakeCompleted: true if we accepted, false if we opened
	Err       error  // EventHandshakeError

	Message []byte // EventNotification
}

// outboundQueueCapacity bounds how many unsent notifications a Handler
// buffers per open protocol. Send does not wait for room: once the
// buffer is full it returns an error and the message is not queued.
const outboundQueueCapacity = 1024
