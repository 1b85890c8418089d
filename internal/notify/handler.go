package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
)

// maxFrameBytes bounds a single notification/handshake frame. Generous
// enough for block-announce gossip without letting a misbehaving peer
// force unbounded allocation.
const maxFrameBytes = 16 * 1024 * 1024

// substream is the minimal surface Handler needs from a libp2p stream;
// *any* network.Stream satisfies it without adaptation, and tests can
// drive the state machine with a plain net.Pipe half.
type substream interface {
	io.Reader
	io.Writer
	io.Closer
}

type protocolState struct {
	state    State
	inbound  substream
	outbound substream
	outQueue chan []byte

	// pendingOpening is set while an outbound open is in flight (we
	// asked the transport to dial the substream but it hasn't
	// resolved yet), mirroring the reference's pending_opening flag.
	pendingOpening bool
}

type openRequest struct {
	protocol ProtocolIndex
	stream   substream // nil: we are the dialer, Handler must open one itself via opener
}

type sendRequest struct {
	protocol ProtocolIndex
	message  []byte
	result   chan error
}

// Opener opens an outbound substream to the handler's peer for a given
// protocol. Supplied by the caller so Handler stays independent of any
// particular host/stream-opening mechanism.
type Opener func(ctx context.Context, p ProtocolIndex) (substream, error)

// Handler manages the two notification protocol substreams for a
// single connected peer, draining queued sends before polling for
// inbound data on every iteration — the same ordering
// original_source/subp2p-explorer/src/notifications/handler.rs's
// poll() enforces.
type Handler struct {
	peer      peer.ID
	protocols [numProtocols]ProtocolDetails
	opener    Opener

	states [numProtocols]*protocolState

	events chan Event

	openReqCh  chan openRequest
	closeReqCh chan ProtocolIndex
	sendReqCh  chan sendRequest
	inboundCh  chan inboundFrame

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// frameKind tags what an inboundFrame represents, since the channel
// carries both substream-read results and cross-goroutine handoffs
// (the freshly opened outbound stream) that must be applied on the
// run() goroutine to avoid racing protocolState.
type frameKind int

const (
	frameOutboundOpened frameKind = iota
	frameOutboundError
	frameInboundHandshake
	frameNotification
	frameSubstreamError
)

type inboundFrame struct {
	kind     frameKind
	protocol ProtocolIndex
	data     []byte
	err      error
	stream   substream // frameOutboundOpened only
}

// NewHandler builds a Handler for peer p. opener is invoked whenever
// the handler needs to dial an outbound substream (in response to
// Open or to match a remote-desired open).
func NewHandler(p peer.ID, protocols [numProtocols]ProtocolDetails, opener Opener) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		peer:       p,
		protocols:  protocols,
		opener:     opener,
		events:     make(chan Event, 64),
		openReqCh:  make(chan openRequest, numProtocols),
		closeReqCh: make(chan ProtocolIndex, numProtocols),
		sendReqCh:  make(chan sendRequest, 64),
		inboundCh:  make(chan inboundFrame, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := range h.states {
		h.states[i] = &protocolState{state: StateClosed}
	}
	h.wg.Add(1)
	go h.run()
	return h
}

// Events returns the channel every state transition and inbound
// notification is reported on.
func (h *Handler) Events() <-chan Event {
	return h.events
}

// Open requests that protocol p's substreams be opened. A no-op if
// already open or opening.
func (h *Handler) Open(p ProtocolIndex) {
	select {
	case h.openReqCh <- openRequest{protocol: p}:
	case <-h.ctx.Done():
	}
}

// AcceptInbound registers a substream the remote opened for protocol p.
func (h *Handler) AcceptInbound(p ProtocolIndex, s substream) {
	select {
	case h.openReqCh <- openRequest{protocol: p, stream: s}:
	case <-h.ctx.Done():
	}
}

// Close requests that protocol p's substreams be torn down.
func (h *Handler) Close(p ProtocolIndex) {
	select {
	case h.closeReqCh <- p:
	case <-h.ctx.Done():
	}
}

// Send queues a notification for delivery on protocol p's outbound
// substream. Returns ErrProtocolClosed if the protocol is not open.
func (h *Handler) Send(p ProtocolIndex, msg []byte) error {
	result := make(chan error, 1)
	select {
	case h.sendReqCh <- sendRequest{protocol: p, message: msg, result: result}:
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// Shutdown stops the handler's goroutine and closes any open
// substreams. Safe to call multiple times.
func (h *Handler) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

func (h *Handler) run() {
	defer h.wg.Done()
	defer h.closeAll()

	for {
		select {
		case <-h.ctx.Done():
			return

		case req := <-h.openReqCh:
			h.handleOpenRequest(req)

		case p := <-h.closeReqCh:
			h.handleCloseRequest(p)

		case req := <-h.sendReqCh:
			h.handleSendRequest(req)

		case frame := <-h.inboundCh:
			h.handleInboundFrame(frame)
		}

		h.drainSends()
	}
}

// drainSends pushes as many queued outbound messages as possible on
// every Open protocol, matching the reference poll()'s "drain as many
// non-blocking sends as possible, then flush" step run once per
// iteration of the main select.
func (h *Handler) drainSends() {
	for i := range h.states {
		st := h.states[i]
		if st.state != StateOpen || st.outQueue == nil {
			continue
		}
		for {
			select {
			case msg := <-st.outQueue:
				if err := writeFramedMessage(st.outbound, msg); err != nil {
					slog.Debug("notify: send failed, closing protocol", "peer", h.peer, "protocol", i, "err", err)
					h.transitionClosed(ProtocolIndex(i))
					h.emit(Event{Kind: EventCloseDesired, Protocol: ProtocolIndex(i)})
				}
			default:
				goto next
			}
		}
	next:
	}
}

func (h *Handler) handleOpenRequest(req openRequest) {
	st := h.states[req.protocol]
	switch st.state {
	case StateClosed:
		if req.stream != nil {
			// Remote opened inbound; we still owe them an outbound leg.
			st.inbound = req.stream
			st.state = StateOpenDesiredByRemote
			h.emit(Event{Kind: EventOpenDesiredByRemote, Protocol: req.protocol})
			h.beginInboundRead(req.protocol)
			if !st.pendingOpening {
				h.dialOutbound(req.protocol)
			}
			return
		}
		if st.pendingOpening {
			// A Close cancelled an earlier outbound dial that is still
			// in flight; wait for it to resolve instead of starting a
			// second, concurrent one.
			return
		}
		st.state = StateOpening
		h.dialOutbound(req.protocol)

	case StateOpenDesiredByRemote:
		st.state = StateOpening
		if req.stream == nil && !st.pendingOpening {
			h.dialOutbound(req.protocol)
		}

	case StateOpening, StateOpen:
		// Already opening/open; nothing to do.
	}
}

// dialOutbound requests an outbound substream for p, marking
// pendingOpening so a concurrent Open cannot start a second dial
// before this one resolves (success, failure, or no opener at all).
func (h *Handler) dialOutbound(p ProtocolIndex) {
	st := h.states[p]
	st.pendingOpening = true

	if h.opener == nil {
		h.emit(Event{Kind: EventHandshakeError, Protocol: p, Err: fmt.Errorf("notify: no opener configured")})
		h.transitionClosed(p)
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		s, err := h.opener(h.ctx, p)
		if err != nil {
			h.sendFrame(inboundFrame{kind: frameOutboundError, protocol: p, err: fmt.Errorf("notify: dial outbound: %w", err)})
			return
		}
		if err := writeFramedMessage(s, h.protocols[p].Handshake); err != nil {
			s.Close()
			h.sendFrame(inboundFrame{kind: frameOutboundError, protocol: p, err: fmt.Errorf("notify: send handshake: %w", err)})
			return
		}
		reply, err := readFramedMessage(s, maxFrameBytes)
		if err != nil {
			s.Close()
			h.sendFrame(inboundFrame{kind: frameOutboundError, protocol: p, err: fmt.Errorf("notify: read handshake reply: %w", err)})
			return
		}

		if !h.sendFrame(inboundFrame{kind: frameOutboundOpened, protocol: p, data: reply, stream: s}) {
			s.Close()
		}
	}()
}

func (h *Handler) beginInboundRead(p ProtocolIndex) {
	st := h.states[p]
	h.wg.Add(1)
	go func(s substream) {
		defer h.wg.Done()
		// First frame off an inbound substream is always the peer's
		// handshake; everything after is a steady-state notification.
		hs, err := readFramedMessage(s, maxFrameBytes)
		if err != nil {
			h.sendFrame(inboundFrame{kind: frameSubstreamError, protocol: p, err: err})
			return
		}
		if !h.sendFrame(inboundFrame{kind: frameInboundHandshake, protocol: p, data: hs}) {
			return
		}
		for {
			msg, err := readFramedMessage(s, maxFrameBytes)
			if err != nil {
				h.sendFrame(inboundFrame{kind: frameSubstreamError, protocol: p, err: err})
				return
			}
			if !h.sendFrame(inboundFrame{kind: frameNotification, protocol: p, data: msg}) {
				return
			}
		}
	}(st.inbound)
}

// sendFrame delivers a frame produced on a reader/dialer goroutine to
// run(), returning false if the handler has shut down in the meantime.
func (h *Handler) sendFrame(f inboundFrame) bool {
	select {
	case h.inboundCh <- f:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Handler) handleInboundFrame(frame inboundFrame) {
	switch frame.kind {
	case frameOutboundOpened:
		h.onOutboundOpened(frame.protocol, frame.stream, frame.data)
	case frameOutboundError:
		h.onOutboundError(frame.protocol, frame.err)
	case frameSubstreamError:
		h.onSubstreamError(frame.protocol, frame.err)
	case frameInboundHandshake:
		h.onInboundHandshake(frame.protocol, frame.data)
	case frameNotification:
		h.onNotification(frame.protocol, frame.data)
	}
}

func (h *Handler) onOutboundOpened(p ProtocolIndex, s substream, handshakeReply []byte) {
	st := h.states[p]
	if st.state == StateClosed {
		// A Close raced this dial to completion; the latch it set is
		// cleared here and the now-unwanted stream is discarded rather
		// than reopening a protocol the behavior already closed.
		st.pendingOpening = false
		s.Close()
		return
	}

	st.outbound = s
	st.pendingOpening = false

	inbound := st.inbound != nil
	st.state = StateOpen
	if st.outQueue == nil {
		st.outQueue = make(chan []byte, outboundQueueCapacity)
	}

	h.emit(Event{Kind: EventHandshakeCompleted, Protocol: p, Handshake: handshakeReply, Inbound: inbound})
}

// onOutboundError handles a failed outbound dial/handshake while
// Opening: the spec's table has this emit HandshakeError, distinct
// from a steady-state substream dying (onSubstreamError/CloseDesired).
func (h *Handler) onOutboundError(p ProtocolIndex, err error) {
	st := h.states[p]
	if st.state == StateClosed {
		// Already closed by a racing Close; just clear the latch.
		st.pendingOpening = false
		return
	}
	slog.Debug("notify: outbound dial failed", "peer", h.peer, "protocol", p, "err", err)
	h.transitionClosed(p)
	h.emit(Event{Kind: EventHandshakeError, Protocol: p, Err: err})
}

func (h *Handler) onInboundHandshake(p ProtocolIndex, handshake []byte) {
	st := h.states[p]
	if err := writeFramedMessage(st.inbound, h.protocols[p].Handshake); err != nil {
		h.transitionClosed(p)
		h.emit(Event{Kind: EventCloseDesired, Protocol: p})
		return
	}
	if st.state != StateOpen {
		st.state = StateOpen
		if st.outQueue == nil {
			st.outQueue = make(chan []byte, outboundQueueCapacity)
		}
	}
	h.emit(Event{Kind: EventHandshakeCompleted, Protocol: p, Handshake: handshake, Inbound: true})
}

func (h *Handler) onSubstreamError(p ProtocolIndex, err error) {
	slog.Debug("notify: substream error", "peer", h.peer, "protocol", p, "err", err)
	h.transitionClosed(p)
	h.emit(Event{Kind: EventCloseDesired, Protocol: p})
}

func (h *Handler) onNotification(p ProtocolIndex, msg []byte) {
	h.emit(Event{Kind: EventNotification, Protocol: p, Message: msg})
}

// handleCloseRequest tears down protocol p. If it was mid-handshake
// (Opening), the in-flight outbound dial is not cancelled — it keeps
// running — so pendingOpening is re-latched after transitionClosed
// clears it, and a HandshakeError is emitted alongside the usual
// Closed, matching the reference's Close/Opening arm.
func (h *Handler) handleCloseRequest(p ProtocolIndex) {
	st := h.states[p]
	wasOpening := st.state == StateOpening

	h.transitionClosed(p)

	if wasOpening {
		st.pendingOpening = true
		h.emit(Event{Kind: EventHandshakeError, Protocol: p})
	}
	h.emit(Event{Kind: EventClosed, Protocol: p})
}

func (h *Handler) handleSendRequest(req sendRequest) {
	st := h.states[req.protocol]
	if st.state != StateOpen {
		req.result <- ErrProtocolClosed
		return
	}
	select {
	case st.outQueue <- req.message:
		req.result <- nil
	default:
		req.result <- fmt.Errorf("notify: outbound queue full for protocol %d", req.protocol)
	}
}

func (h *Handler) transitionClosed(p ProtocolIndex) {
	st := h.states[p]
	if st.inbound != nil {
		st.inbound.Close()
		st.inbound = nil
	}
	if st.outbound != nil {
		st.outbound.Close()
		st.outbound = nil
	}
	st.outQueue = nil
	st.pendingOpening = false
	st.state = StateClosed
}

func (h *Handler) closeAll() {
	for i := range h.states {
		h.transitionClosed(ProtocolIndex(i))
	}
	close(h.events)
}

func (h *Handler) emit(e Event) {
	select {
	case h.events <- e:
	default:
		// Events channel is generously buffered (64); a full buffer
		// means the owner stopped draining, so drop rather than block
		// the state machine goroutine.
		slog.Warn("notify: events channel full, dropping event", "peer", h.peer, "kind", e.Kind)
	}
}
