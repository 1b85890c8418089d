// Package pswarm adapts Go's synchronous go-libp2p-kad-dht client onto
// the asynchronous query/event model the engine is written against
// (QueryID-tagged start calls plus a single Events() channel), mirroring
// the shape of rust-libp2p's Swarm that
// original_source/cli/src/commands/authorities.rs drives with
// futures::select!.
//
// Grounded on the dial-racing goroutine-plus-channel idiom in
// pkg/p2pnet/pathdialer.go and the host construction in
// pkg/p2pnet/network.go.
package pswarm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// QueryID identifies one outstanding DHT query, analogous to
// rust-libp2p's QueryId.
type QueryID uint64

// EventKind discriminates the Event union.
type EventKind int

const (
	// EventGetRecordResult carries the outcome of a GetRecord query
	// started with StartGetRecord.
	EventGetRecordResult EventKind = iota
	// EventGetClosestPeersResult carries the outcome of a
	// GetClosestPeers query started with StartGetClosestPeers.
	EventGetClosestPeersResult
	// EventIdentified fires once per peer when identify completes and
	// its advertised addresses become known.
	EventIdentified
)

// Event is the single union type delivered on Swarm.Events(), matching
// the Rust client's habit of dispatching on one event enum in
// handle_swarm.
type Event struct {
	Kind EventKind

	Query QueryID

	// Populated for EventGetRecordResult.
	RecordValue []byte
	RecordErr   error

	// Populated for EventGetClosestPeersResult.
	ClosestPeers []peer.ID
	ClosestErr   error

	// Populated for EventIdentified.
	Peer            peer.ID
	Addresses       []ma.Multiaddr
	AgentVersion    string
	ProtocolVersion string
}

// Swarm wraps a libp2p host and Kademlia DHT client, synthesizing
// QueryIDs and a unified event stream over their otherwise-synchronous
// APIs.
type Swarm struct {
	Host host.Host
	DHT  *dht.IpfsDHT

	events  chan Event
	nextID  atomic.Uint64
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// New starts the identify-event subscription and returns a ready Swarm.
func New(h host.Host, kdht *dht.IpfsDHT) (*Swarm, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Swarm{
		Host:   h,
		DHT:    kdht,
		events: make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}

	sub, err := h.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("pswarm: subscribe to identify events: %w", err)
	}

	s.wg.Add(1)
	go s.runIdentify(sub)

	return s, nil
}

func (s *Swarm) runIdentify(sub event.Subscription) {
	defer s.wg.Done()
	defer sub.Close()
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt, ok := <-sub.Out():
			if !ok {
				return
			}
			e := evt.(event.EvtPeerIdentificationCompleted)
			s.emit(Event{
				Kind:            EventIdentified,
				Peer:            e.Peer,
				Addresses:       e.ListenAddrs,
				AgentVersion:    e.AgentVersion,
				ProtocolVersion: e.ProtocolVersion,
			})
		}
	}
}

// StartGetRecord issues an asynchronous DHT GetValue for key and
// returns the QueryID that will tag the resulting
// EventGetRecordResult.
func (s *Swarm) StartGetRecord(ctx context.Context, key string) QueryID {
	id := QueryID(s.nextID.Add(1))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		value, err := s.DHT.GetValue(ctx, key)
		s.emit(Event{Kind: EventGetRecordResult, Query: id, RecordValue: value, RecordErr: err})
	}()
	return id
}

// StartGetClosestPeers issues an asynchronous DHT GetClosestPeers for
// key and returns the QueryID that will tag the resulting
// EventGetClosestPeersResult.
func (s *Swarm) StartGetClosestPeers(ctx context.Context, key string) QueryID {
	id := QueryID(s.nextID.Add(1))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		peers, err := s.DHT.GetClosestPeers(ctx, key)
		s.emit(Event{Kind: EventGetClosestPeersResult, Query: id, ClosestPeers: peers, ClosestErr: err})
	}()
	return id
}

// Events returns the channel every query result and identify
// notification is delivered on.
func (s *Swarm) Events() <-chan Event {
	return s.events
}

func (s *Swarm) emit(e Event) {
	select {
	case s.events <- e:
	case <-s.ctx.Done():
	}
}

// Close stops the identify subscription goroutine and waits for any
// in-flight query goroutines to finish emitting. It does not close the
// underlying host or DHT.
func (s *Swarm) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.wg.Wait()
	close(s.events)
}
