package engine

import (
	"context"
	"testing"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/authdisco/internal/authid"
	"github.com/shurlinet/authdisco/internal/pswarm"
	"github.com/shurlinet/authdisco/internal/record"
)

// fakeSwarm is a querySwarm that records every started query without
// ever resolving it, letting tests drive the scheduler directly.
type fakeSwarm struct {
	nextID    uint64
	started   []string
	events    chan pswarm.Event
	recordIDs chan pswarm.QueryID
}

func newFakeSwarm() *fakeSwarm {
	return &fakeSwarm{events: make(chan pswarm.Event, 16), recordIDs: make(chan pswarm.QueryID, 64)}
}

func (f *fakeSwarm) StartGetRecord(_ context.Context, key string) pswarm.QueryID {
	f.nextID++
	f.started = append(f.started, key)
	id := pswarm.QueryID(f.nextID)
	select {
	case f.recordIDs <- id:
	default:
	}
	return id
}

func (f *fakeSwarm) StartGetClosestPeers(_ context.Context, key string) pswarm.QueryID {
	f.nextID++
	return pswarm.QueryID(f.nextID)
}

func (f *fakeSwarm) Events() <-chan pswarm.Event {
	return f.events
}

type fakeCloser struct{ closed []peer.ID }

func (f *fakeCloser) ClosePeer(p peer.ID) error {
	f.closed = append(f.closed, p)
	return nil
}

func someAuthorities(n int) []authid.ID {
	out := make([]authid.ID, n)
	for i := range out {
		out[i][0] = byte(i + 1)
	}
	return out
}

func newTestEngine(t *testing.T, authorities []authid.ID, cfg Config) (*Engine, *fakeSwarm, *fakeCloser) {
	t.Helper()
	sw := newFakeSwarm()
	closer := &fakeCloser{}

	e := &Engine{
		swarm:            sw,
		host:             closer,
		cfg:              cfg.withDefaults(),
		authorities:      authorities,
		remaining:        map[authid.ID]struct{}{},
		queries:          map[pswarm.QueryID]authid.ID{},
		permanentQueries: map[pswarm.QueryID]authid.ID{},
		recordsKeys:      map[authid.DhtKey]authid.ID{},
		queriesDiscovery: map[pswarm.QueryID]struct{}{},
		peerInfo:         map[peer.ID]IdentifyInfo{},
		peerDetails:      map[peer.ID]*PeerDetails{},

		authorityToDetails: map[authid.ID]map[string]ma.Multiaddr{},
	}
	for _, a := range authorities {
		e.remaining[a] = struct{}{}
	}
	return e, sw, closer
}

func TestAdvanceDHTQueriesRespectsCap(t *testing.T) {
	authorities := someAuthorities(5)
	e, sw, _ := newTestEngine(t, authorities, Config{MaxRecordQueries: 3})

	e.advanceDHTQueries(context.Background())

	if len(e.queries) != 3 {
		t.Fatalf("in-flight queries = %d, want 3", len(e.queries))
	}
	if len(sw.started) != 3 {
		t.Fatalf("started queries = %d, want 3", len(sw.started))
	}
	if e.queryIndex != 3 {
		t.Fatalf("queryIndex = %d, want 3", e.queryIndex)
	}
}

func TestAdvanceDHTQueriesStopsAtAuthorityListEnd(t *testing.T) {
	authorities := someAuthorities(2)
	e, _, _ := newTestEngine(t, authorities, Config{MaxRecordQueries: 10})

	e.advanceDHTQueries(context.Background())

	if len(e.queries) != 2 {
		t.Fatalf("in-flight queries = %d, want 2 (bounded by authority count)", len(e.queries))
	}
}

func TestResubmitRemainingDHTQueriesClearsLiveSet(t *testing.T) {
	authorities := someAuthorities(4)
	e, sw, _ := newTestEngine(t, authorities, Config{MaxRecordQueries: 2})
	e.advanceDHTQueries(context.Background())

	sw.started = nil
	e.resubmitRemainingDHTQueries(context.Background())

	if len(e.queries) != 2 {
		t.Fatalf("in-flight queries after resubmit = %d, want 2", len(e.queries))
	}
	if len(sw.started) != 2 {
		t.Fatalf("resubmit started %d queries, want 2", len(sw.started))
	}
}

func TestDefaultConfigAppliedWhenZero(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.MaxRecordQueries != 16 || cfg.MaxDiscoveryQueries != 128 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ResubmitInterval != 60*time.Second || cfg.ExitTimeout != 150*time.Second {
		t.Fatalf("unexpected interval defaults: %+v", cfg)
	}
}

// testAuthority is a real sr25519 keypair (so record.Decode's signature
// check passes) paired with the libp2p peer identity that is the
// authority's single advertised address.
type testAuthority struct {
	id     authid.ID
	secret *schnorrkel.SecretKey
	peer   crypto.PrivKey
	pid    peer.ID
}

func newTestAuthority(t *testing.T) testAuthority {
	t.Helper()
	secret, public, err := schnorrkel.GenerateKeypair()
	if err != nil {
		t.Fatalf("schnorrkel keypair: %v", err)
	}
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		t.Fatalf("ed25519 keypair: %v", err)
	}
	pid, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	return testAuthority{id: authid.ID(public.Encode()), secret: secret, peer: priv, pid: pid}
}

// signedRecordValue builds the wire bytes of a DHT record asserting
// addrs for a, signed by both the authority and (unless omitPeerSig) the
// peer identity a.pid.
func signedRecordValue(t *testing.T, a testAuthority, addrs []string, omitPeerSig bool) []byte {
	t.Helper()

	inner := &record.AuthorityRecord{}
	for _, s := range addrs {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			t.Fatalf("bad test multiaddr %q: %v", s, err)
		}
		inner.Addresses = append(inner.Addresses, addr.Bytes())
	}
	recordBytes := inner.Marshal()

	transcript := schnorrkel.NewSigningContext([]byte("substrate"), recordBytes)
	authSig, err := a.secret.Sign(transcript)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	authSigEnc := authSig.Encode()

	signed := &record.SignedAuthorityRecord{Record: recordBytes, AuthSignature: authSigEnc[:]}

	if !omitPeerSig {
		pub := a.peer.GetPublic()
		pubBytes, err := crypto.MarshalPublicKey(pub)
		if err != nil {
			t.Fatalf("marshal peer pubkey: %v", err)
		}
		sig, err := a.peer.Sign(recordBytes)
		if err != nil {
			t.Fatalf("peer sign: %v", err)
		}
		signed.PeerSignature = &record.PeerSignature{PublicKey: pubBytes, Signature: sig}
	}

	return signed.Marshal()
}

func addrFor(a testAuthority) string {
	return "/ip4/10.0.0.1/tcp/30333/p2p/" + a.pid.String()
}

// findQuery returns the QueryID fakeSwarm assigned to authority's
// GetRecord query, by searching e.permanentQueries for an entry whose
// value is a.
func findQuery(t *testing.T, e *Engine, a authid.ID) pswarm.QueryID {
	t.Helper()
	for id, auth := range e.permanentQueries {
		if auth == a {
			return id
		}
	}
	t.Fatalf("no in-flight query found for authority %s", a.String())
	return 0
}

func TestHandleGetRecordResultMergesValidRecord(t *testing.T) {
	a := newTestAuthority(t)
	e, _, _ := newTestEngine(t, []authid.ID{a.id}, Config{MaxRecordQueries: 4})
	e.advanceDHTQueries(context.Background())

	qid := findQuery(t, e, a.id)
	value := signedRecordValue(t, a, []string{addrFor(a)}, false)

	e.handleEvent(context.Background(), pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: qid, RecordValue: value})

	if _, ok := e.authorityToDetails[a.id]; !ok {
		t.Fatal("authority not recorded as discovered")
	}
	pd, ok := e.peerDetails[a.pid]
	if !ok {
		t.Fatal("peer details not recorded")
	}
	if pd.AuthorityID != a.id {
		t.Errorf("peer details authority = %x, want %x", pd.AuthorityID, a.id)
	}
	if _, stillRemaining := e.remaining[a.id]; stillRemaining {
		t.Error("authority still marked remaining after a valid record")
	}
	if e.dhtErrors != 0 {
		t.Errorf("dhtErrors = %d, want 0", e.dhtErrors)
	}
}

func TestHandleGetRecordResultBadSignatureIncrementsDHTErrors(t *testing.T) {
	a := newTestAuthority(t)
	other := newTestAuthority(t)
	e, _, _ := newTestEngine(t, []authid.ID{a.id}, Config{MaxRecordQueries: 4})
	e.advanceDHTQueries(context.Background())

	qid := findQuery(t, e, a.id)
	// Signed by a different authority's key: signature won't verify
	// against a.id.
	value := signedRecordValue(t, other, []string{addrFor(other)}, false)

	e.handleEvent(context.Background(), pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: qid, RecordValue: value})

	if e.dhtErrors != 1 {
		t.Fatalf("dhtErrors = %d, want 1", e.dhtErrors)
	}
	if _, ok := e.authorityToDetails[a.id]; ok {
		t.Error("authority should not be recorded as discovered on a bad signature")
	}
	if _, stillRemaining := e.remaining[a.id]; !stillRemaining {
		t.Error("authority should still be remaining after a decode failure")
	}
}

func TestHandleGetRecordResultMixedPeerIDsIncrementsDHTErrors(t *testing.T) {
	a := newTestAuthority(t)
	decoy := newTestAuthority(t)
	e, _, _ := newTestEngine(t, []authid.ID{a.id}, Config{MaxRecordQueries: 4})
	e.advanceDHTQueries(context.Background())

	qid := findQuery(t, e, a.id)
	// Two addresses asserting two different peer ids.
	value := signedRecordValue(t, a, []string{addrFor(a), addrFor(decoy)}, false)

	e.handleEvent(context.Background(), pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: qid, RecordValue: value})

	if e.dhtErrors != 1 {
		t.Fatalf("dhtErrors = %d, want 1", e.dhtErrors)
	}
}

func TestHandleGetRecordResultRecordErrLeavesAuthorityRemaining(t *testing.T) {
	a := newTestAuthority(t)
	e, _, _ := newTestEngine(t, []authid.ID{a.id}, Config{MaxRecordQueries: 4})
	e.advanceDHTQueries(context.Background())

	qid := findQuery(t, e, a.id)
	e.handleEvent(context.Background(), pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: qid, RecordErr: context.DeadlineExceeded})

	if e.dhtErrors != 0 {
		t.Errorf("dhtErrors = %d, want 0 (a dht-level error is not a decode error)", e.dhtErrors)
	}
	if _, stillRemaining := e.remaining[a.id]; !stillRemaining {
		t.Error("authority should remain unresolved after a dht query error")
	}
}

func TestHandleIdentifiedPopulatesPeerInfo(t *testing.T) {
	a := newTestAuthority(t)
	e, _, _ := newTestEngine(t, []authid.ID{a.id}, Config{})

	e.handleEvent(context.Background(), pswarm.Event{
		Kind:            pswarm.EventIdentified,
		Peer:            a.pid,
		AgentVersion:    "substrate-node/1.0",
		ProtocolVersion: "/substrate/1.0",
	})

	info, ok := e.peerInfo[a.pid]
	if !ok {
		t.Fatal("peer info not recorded")
	}
	if info.AgentVersion != "substrate-node/1.0" {
		t.Errorf("agent version = %q", info.AgentVersion)
	}
}

func TestOnFullyDiscoveredClosesIdentifiedPeersAndStartsDiscovery(t *testing.T) {
	a := newTestAuthority(t)
	e, _, closer := newTestEngine(t, []authid.ID{a.id}, Config{MaxRecordQueries: 4, MaxDiscoveryQueries: 4})
	e.advanceDHTQueries(context.Background())

	qid := findQuery(t, e, a.id)
	value := signedRecordValue(t, a, []string{addrFor(a)}, false)
	e.handleEvent(context.Background(), pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: qid, RecordValue: value})

	// Not yet identified: onFullyDiscovered should not close the peer,
	// but should have kicked off a closest-peers query for it.
	if len(closer.closed) != 0 {
		t.Fatalf("peer closed before being identified: %v", closer.closed)
	}
	if len(e.queriesDiscovery) != 1 {
		t.Fatalf("discovery queries in flight = %d, want 1", len(e.queriesDiscovery))
	}

	e.handleEvent(context.Background(), pswarm.Event{Kind: pswarm.EventIdentified, Peer: a.pid})
	e.onFullyDiscovered(context.Background())

	if len(closer.closed) != 1 || closer.closed[0] != a.pid {
		t.Fatalf("closed peers = %v, want [%s]", closer.closed, a.pid)
	}
}

// drainLatestRecordID waits for at least one GetRecord query to start
// and returns the most recently assigned QueryID, draining any
// subsequent resubmits that have already queued up. Reading
// sw.recordIDs rather than the engine's internal maps keeps this
// race-free: only the goroutine running Discover ever touches engine
// state, this helper only touches the channel.
func drainLatestRecordID(t *testing.T, sw *fakeSwarm) pswarm.QueryID {
	t.Helper()
	var id pswarm.QueryID
	select {
	case id = <-sw.recordIDs:
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for a GetRecord query to start")
		return 0
	}
	for {
		select {
		case id = <-sw.recordIDs:
		default:
			return id
		}
	}
}

func TestDiscoverResolvesOneAuthorityAndTimesOutOnAnother(t *testing.T) {
	resolved := newTestAuthority(t)
	stuck := newTestAuthority(t)
	e, sw, _ := newTestEngine(t, []authid.ID{resolved.id, stuck.id}, Config{
		MaxRecordQueries: 4,
		ExitTimeout:      50 * time.Millisecond,
		ResubmitInterval: time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		// resolved is first in the authority list, so advanceDHTQueries
		// starts its query before stuck's; the first id off the channel
		// is always resolved's.
		var qid pswarm.QueryID
		select {
		case qid = <-sw.recordIDs:
		case <-time.After(2 * time.Second):
			t.Error("timed out waiting for resolved's query to start")
			return
		}
		value := signedRecordValue(t, resolved, []string{addrFor(resolved)}, false)
		sw.events <- pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: qid, RecordValue: value}
	}()

	res := e.Discover(ctx)

	if !res.TimedOut {
		t.Error("expected Discover to report a timeout with one authority unresolved")
	}
	if _, ok := res.AuthorityToDetails[resolved.id]; !ok {
		t.Error("resolved authority missing from result")
	}
	if _, ok := res.AuthorityToDetails[stuck.id]; ok {
		t.Error("stuck authority should not have been resolved")
	}
}

func TestDiscoverReturnsEarlyOnceAllAuthoritiesResolved(t *testing.T) {
	a := newTestAuthority(t)
	e, sw, _ := newTestEngine(t, []authid.ID{a.id}, Config{
		MaxRecordQueries: 4,
		ExitTimeout:      10 * time.Second,
		ResubmitInterval: time.Hour,
	})

	go func() {
		id := drainLatestRecordID(t, sw)
		value := signedRecordValue(t, a, []string{addrFor(a)}, false)
		sw.events <- pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: id, RecordValue: value}
	}()

	start := time.Now()
	res := e.Discover(context.Background())
	elapsed := time.Since(start)

	if res.TimedOut {
		t.Error("expected Discover to finish without timing out")
	}
	if elapsed >= 10*time.Second {
		t.Error("Discover did not exit early once all authorities resolved")
	}
}

func TestDiscoverResubmitsWithinTwoIntervals(t *testing.T) {
	a := newTestAuthority(t)
	e, sw, _ := newTestEngine(t, []authid.ID{a.id}, Config{
		MaxRecordQueries: 4,
		ResubmitInterval: 10 * time.Millisecond,
		ExitTimeout:      200 * time.Millisecond,
	})

	go func() {
		// Let at least two resubmit ticks fire before resolving, so the
		// authority's query is re-issued under a fresh QueryID; draining
		// the channel to its latest value picks up the most recent one.
		time.Sleep(35 * time.Millisecond)
		id := drainLatestRecordID(t, sw)
		value := signedRecordValue(t, a, []string{addrFor(a)}, false)
		sw.events <- pswarm.Event{Kind: pswarm.EventGetRecordResult, Query: id, RecordValue: value}
	}()

	res := e.Discover(context.Background())

	if res.TimedOut {
		t.Error("expected the resubmitted query to resolve before the exit timeout")
	}
	if _, ok := res.AuthorityToDetails[a.id]; !ok {
		t.Error("authority not resolved after resubmission")
	}
}
