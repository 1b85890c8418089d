package engine

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/authdisco/internal/authid"
)

// Config tunes the scheduler. Zero-value fields are replaced by
// DefaultConfig's values in New.
type Config struct {
	// MaxRecordQueries bounds concurrent in-flight GetRecord queries.
	MaxRecordQueries int
	// MaxDiscoveryQueries bounds concurrent in-flight GetClosestPeers
	// identify-discovery queries.
	MaxDiscoveryQueries int
	// ResubmitInterval is how often unanswered authorities are
	// re-queried.
	ResubmitInterval time.Duration
	// ExitTimeout bounds the overall run; Discover returns once it
	// elapses even if authorities remain undiscovered.
	ExitTimeout time.Duration
	// ProgressLogInterval rate-limits the per-record progress log.
	ProgressLogInterval time.Duration
}

// DefaultConfig mirrors the constants in the reference implementation:
// 16 concurrent record queries, 128 concurrent discovery queries, a 60s
// resubmit interval and a 150s overall exit timeout.
func DefaultConfig() Config {
	return Config{
		MaxRecordQueries:    16,
		MaxDiscoveryQueries: 128,
		ResubmitInterval:    60 * time.Second,
		ExitTimeout:         150 * time.Second,
		ProgressLogInterval: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRecordQueries <= 0 {
		c.MaxRecordQueries = d.MaxRecordQueries
	}
	if c.MaxDiscoveryQueries <= 0 {
		c.MaxDiscoveryQueries = d.MaxDiscoveryQueries
	}
	if c.ResubmitInterval <= 0 {
		c.ResubmitInterval = d.ResubmitInterval
	}
	if c.ExitTimeout <= 0 {
		c.ExitTimeout = d.ExitTimeout
	}
	if c.ProgressLogInterval <= 0 {
		c.ProgressLogInterval = d.ProgressLogInterval
	}
	return c
}

// PeerDetails is everything learned about a peer behind a discovered
// authority: the authority id that led to it and the address set
// collected from every DHT record naming it.
type PeerDetails struct {
	AuthorityID authid.ID
	Addresses   map[string]ma.Multiaddr
}

// IdentifyInfo is the subset of libp2p identify information the report
// needs, captured off pswarm's EventIdentified.
type IdentifyInfo struct {
	AgentVersion    string
	ProtocolVersion string
}

// Result is the terminal snapshot Discover returns: per-authority
// address sets, per-peer identify info, and run-level counters.
type Result struct {
	Authorities        []authid.ID
	AuthorityToDetails map[authid.ID]map[string]ma.Multiaddr
	PeerDetails        map[peer.ID]*PeerDetails
	PeerInfo           map[peer.ID]IdentifyInfo
	DHTErrors          int
	TimedOut           bool
}
