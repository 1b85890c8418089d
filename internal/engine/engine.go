// Package engine implements the Authority Discovery Engine (§4.1): a
// bounded-concurrency DHT crawler that resolves a runtime-supplied
// authority set to peer identities, addresses, and identify info.
//
// Grounded on AuthorityDiscovery in
// original_source/cli/src/commands/authorities.rs, reworked from its
// futures::select!-driven poll loop onto a Go select over pswarm's
// event channel and two time.Tickers, in the manner of
// pkg/p2pnet/peermanager.go's reconnect/backoff loop.
package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/authdisco/internal/authid"
	"github.com/shurlinet/authdisco/internal/pswarm"
	"github.com/shurlinet/authdisco/internal/record"
)

// querySwarm is the slice of *pswarm.Swarm the engine depends on,
// narrowed to an interface so the scheduler can be driven by a fake in
// tests instead of a real libp2p host and DHT.
type querySwarm interface {
	StartGetRecord(ctx context.Context, key string) pswarm.QueryID
	StartGetClosestPeers(ctx context.Context, key string) pswarm.QueryID
	Events() <-chan pswarm.Event
}

// peerCloser is the slice of host.Host the engine needs to disconnect
// fully-identified peers once discovery completes.
type peerCloser interface {
	ClosePeer(peer.ID) error
}

// Engine drives DHT record and closest-peers queries to completion (or
// timeout) for a fixed authority set.
type Engine struct {
	swarm querySwarm
	host  peerCloser
	cfg   Config

	authorities []authid.ID
	queryIndex  int
	remaining   map[authid.ID]struct{}

	queries          map[pswarm.QueryID]authid.ID
	permanentQueries map[pswarm.QueryID]authid.ID
	recordsKeys      map[authid.DhtKey]authid.ID

	queriesDiscovery map[pswarm.QueryID]struct{}
	peerInfo         map[peer.ID]IdentifyInfo
	peerDetails      map[peer.ID]*PeerDetails

	authorityToDetails map[authid.ID]map[string]ma.Multiaddr

	dhtErrors     int
	finishedQuery bool

	lastProgressLog time.Time
}

// New builds an Engine for the given authority set. An empty set is
// valid: Discover will no-op and return an empty result immediately.
func New(sw *pswarm.Swarm, h host.Host, authorities []authid.ID, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	remaining := make(map[authid.ID]struct{}, len(authorities))
	for _, a := range authorities {
		remaining[a] = struct{}{}
	}

	return &Engine{
		swarm:            sw,
		host:             h.Network(),
		cfg:              cfg,
		authorities:      authorities,
		remaining:        remaining,
		queries:          make(map[pswarm.QueryID]authid.ID, cfg.MaxRecordQueries),
		permanentQueries: make(map[pswarm.QueryID]authid.ID, len(authorities)),
		recordsKeys:      make(map[authid.DhtKey]authid.ID, len(authorities)),
		queriesDiscovery: make(map[pswarm.QueryID]struct{}, cfg.MaxDiscoveryQueries),
		peerInfo:         make(map[peer.ID]IdentifyInfo),
		peerDetails:      make(map[peer.ID]*PeerDetails),
		authorityToDetails: make(map[authid.ID]map[string]ma.Multiaddr,
			len(authorities)),
	}, nil
}

// Discover runs the query/resubmit/exit-timeout loop until every
// authority has been resolved or the configured timeout elapses.
func (e *Engine) Discover(ctx context.Context) *Result {
	e.advanceDHTQueries(ctx)

	resubmit := time.NewTicker(e.cfg.ResubmitInterval)
	defer resubmit.Stop()
	exit := time.NewTimer(e.cfg.ExitTimeout)
	defer exit.Stop()

	timedOut := false
	for {
		if len(e.authorityToDetails) == len(e.authorities) {
			slog.Info("engine: all authorities discovered from dht")
			break
		}

		select {
		case <-ctx.Done():
			timedOut = true
			goto done

		case ev, ok := <-e.swarm.Events():
			if !ok {
				timedOut = true
				goto done
			}
			e.handleEvent(ctx, ev)

		case <-resubmit.C:
			e.resubmitRemainingDHTQueries(ctx)

		case <-exit.C:
			slog.Warn("engine: exiting due to timeout", "discovered", len(e.authorityToDetails), "total", len(e.authorities))
			timedOut = true
			goto done
		}
	}

done:
	return &Result{
		Authorities:        e.authorities,
		AuthorityToDetails: e.authorityToDetails,
		PeerDetails:        e.peerDetails,
		PeerInfo:           e.peerInfo,
		DHTErrors:          e.dhtErrors,
		TimedOut:           timedOut,
	}
}

// queryDHTRecords starts a GetRecord query for each of the given
// authorities, tracking each QueryID twice: once in the live set
// (cleared on resubmit) and once permanently (a query can still
// complete after it has been logically superseded).
func (e *Engine) queryDHTRecords(ctx context.Context, authorities []authid.ID) {
	for _, a := range authorities {
		key := authid.Hash(a)
		e.recordsKeys[key] = a

		id := e.swarm.StartGetRecord(ctx, string(key.Bytes()))
		e.queries[id] = a
		e.permanentQueries[id] = a
	}
}

// advanceDHTQueries tops up the in-flight query set from the
// not-yet-queried tail of the authority list, up to MaxRecordQueries.
func (e *Engine) advanceDHTQueries(ctx context.Context) {
	for len(e.queries) < e.cfg.MaxRecordQueries {
		if e.queryIndex >= len(e.authorities) {
			slog.Debug("engine: no more authorities to schedule", "in_flight", len(e.queries), "remaining", len(e.remaining))
			return
		}
		next := e.authorities[e.queryIndex]
		e.queryDHTRecords(ctx, []authid.ID{next})
		e.queryIndex++
	}
}

// resubmitRemainingDHTQueries discards the live query set and
// re-issues queries for a random sample of the still-unresolved
// authorities, bounded by MaxRecordQueries. Shuffling avoids
// starvation of authorities near the end of the original list.
func (e *Engine) resubmitRemainingDHTQueries(ctx context.Context) {
	e.queries = make(map[pswarm.QueryID]authid.ID, e.cfg.MaxRecordQueries)

	remaining := make([]authid.ID, 0, len(e.remaining))
	for a := range e.remaining {
		remaining = append(remaining, a)
	}
	rand.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })

	slog.Info("engine: resubmitting remaining queries", "remaining", len(remaining))

	if len(remaining) > e.cfg.MaxRecordQueries {
		remaining = remaining[:e.cfg.MaxRecordQueries]
	}
	e.queryDHTRecords(ctx, remaining)
}

// queryPeerInfo launches GetClosestPeers discovery queries for any peer
// behind a discovered authority whose identify info is not yet known,
// up to MaxDiscoveryQueries in flight.
func (e *Engine) queryPeerInfo(ctx context.Context) {
	if len(e.queriesDiscovery) >= e.cfg.MaxDiscoveryQueries {
		return
	}
	budget := e.cfg.MaxDiscoveryQueries - len(e.queriesDiscovery)

	for p := range e.peerDetails {
		if budget <= 0 {
			break
		}
		if _, known := e.peerInfo[p]; known {
			continue
		}
		id := e.swarm.StartGetClosestPeers(ctx, string(p))
		e.queriesDiscovery[id] = struct{}{}
		budget--
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev pswarm.Event) {
	switch ev.Kind {
	case pswarm.EventGetRecordResult:
		e.handleGetRecordResult(ctx, ev)
	case pswarm.EventGetClosestPeersResult:
		delete(e.queriesDiscovery, ev.Query)
		e.queryPeerInfo(ctx)
	case pswarm.EventIdentified:
		e.handleIdentified(ev)
	}
}

func (e *Engine) handleGetRecordResult(ctx context.Context, ev pswarm.Event) {
	delete(e.queries, ev.Query)

	authority, ok := e.permanentQueries[ev.Query]
	if !ok {
		return
	}
	delete(e.recordsKeys, authid.Hash(authority))

	if ev.RecordErr != nil {
		return
	}

	decoded, err := record.Decode(ev.RecordValue, [32]byte(authority))
	if err != nil {
		slog.Debug("engine: decoding dht record failed", "authority", authority.String(), "err", err)
		e.dhtErrors++
		return
	}

	e.recordDiscovery(authority, decoded.PeerID, decoded.Addresses)
	delete(e.remaining, authority)
	e.advanceDHTQueries(ctx)
	e.logProgress(authority, decoded.PeerID)

	if len(e.peerDetails) == len(e.authorities) && !e.finishedQuery {
		e.onFullyDiscovered(ctx)
	}
}

func (e *Engine) recordDiscovery(authority authid.ID, pid peer.ID, addrs []ma.Multiaddr) {
	set, ok := e.authorityToDetails[authority]
	if !ok {
		set = make(map[string]ma.Multiaddr, len(addrs))
		e.authorityToDetails[authority] = set
	}
	for _, a := range addrs {
		set[a.String()] = a
	}

	pd, ok := e.peerDetails[pid]
	if !ok {
		pd = &PeerDetails{AuthorityID: authority, Addresses: make(map[string]ma.Multiaddr, len(addrs))}
		e.peerDetails[pid] = pd
	}
	for _, a := range addrs {
		pd.Addresses[a.String()] = a
	}
}

func (e *Engine) logProgress(authority authid.ID, pid peer.ID) {
	now := time.Now()
	due := now.Sub(e.lastProgressLog) >= e.cfg.ProgressLogInterval
	if due || len(e.authorityToDetails) == len(e.authorities) {
		slog.Info("engine: authority resolved",
			"discovered", len(e.authorityToDetails),
			"total", len(e.authorities),
			"errors", e.dhtErrors,
			"authority", authority.String(),
			"peer", pid.String())
		e.lastProgressLog = now
	}
}

func (e *Engine) onFullyDiscovered(ctx context.Context) {
	discovered := 0
	for p := range e.peerDetails {
		if _, ok := e.peerInfo[p]; ok {
			discovered++
		}
	}
	slog.Info("engine: all authorities discovered from dht",
		"expected", len(e.authorities), "errors", e.dhtErrors, "identified", discovered)

	for p := range e.peerDetails {
		if _, ok := e.peerInfo[p]; ok {
			_ = e.host.ClosePeer(p)
		}
	}

	e.queryPeerInfo(ctx)
	e.finishedQuery = true
}

func (e *Engine) handleIdentified(ev pswarm.Event) {
	if e.finishedQuery {
		discovered := 0
		for p := range e.peerDetails {
			if _, ok := e.peerInfo[p]; ok {
				discovered++
			}
		}
		slog.Debug("engine: identify info received", "discovered", discovered, "total", len(e.authorities), "peer", ev.Peer.String())
	}
	e.peerInfo[ev.Peer] = IdentifyInfo{AgentVersion: ev.AgentVersion, ProtocolVersion: ev.ProtocolVersion}
}
