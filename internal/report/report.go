// Package report renders an engine.Result as the human-facing summary
// produced at the end of a discovery run (§6): one line per authority
// plus a closing "Discovered N/M" tally.
//
// Grounded on discover_authorities in
// original_source/cli/src/commands/authorities.rs, which prints this
// summary directly to stdout after AuthorityDiscovery.discover()
// returns; this package separates line construction from printing so
// the CLI can choose plain, colorized, or JSON output.
package report

import (
	"sort"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shurlinet/authdisco/internal/authid"
	"github.com/shurlinet/authdisco/internal/engine"
	"github.com/shurlinet/authdisco/internal/ss58"
)

// Status classifies one authority's outcome, mirroring the four cases
// discover_authorities distinguishes.
type Status int

const (
	// StatusNoResponse: no DHT record was ever found for this authority.
	StatusNoResponse Status = iota
	// StatusNoAddresses: a record was found but it named no addresses.
	StatusNoAddresses
	// StatusReached: a peer behind the authority answered identify.
	StatusReached
	// StatusUnreachable: addresses are known but identify never completed.
	StatusUnreachable
)

// Line is one authority's row in the report.
type Line struct {
	Authority    authid.ID
	SS58         string
	Status       Status
	PeerID       peer.ID
	Addresses    []string
	AgentVersion string
}

// PeerRecord is one (peer_id, identify-info) pair, the raw-output dump
// named in §6's raw_output flag.
type PeerRecord struct {
	PeerID          peer.ID
	AgentVersion    string
	ProtocolVersion string
}

// Summary is the full report: one Line per authority in the order the
// runtime API returned them, the reached/total tally, and every peer's
// identify info for the optional raw-output dump.
type Summary struct {
	Lines   []Line
	Reached int
	Total   int
	Peers   []PeerRecord
}

// Build renders res into a Summary, encoding each authority's public
// key as an SS58 address under the given network version (§4.4).
func Build(res *engine.Result, ss58Version uint16) Summary {
	peerByAuthority := make(map[authid.ID]peer.ID, len(res.PeerDetails))
	for pid, pd := range res.PeerDetails {
		peerByAuthority[pd.AuthorityID] = pid
	}

	lines := make([]Line, 0, len(res.Authorities))
	reached := 0

	for _, a := range res.Authorities {
		line := Line{
			Authority: a,
			SS58:      ss58.Encode([32]byte(a), ss58Version),
		}

		details, ok := res.AuthorityToDetails[a]
		if !ok {
			line.Status = StatusNoResponse
			lines = append(lines, line)
			continue
		}
		if len(details) == 0 {
			line.Status = StatusNoAddresses
			lines = append(lines, line)
			continue
		}

		addrs := make([]string, 0, len(details))
		for addr := range details {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)
		line.Addresses = addrs

		pid, ok := peerByAuthority[a]
		if !ok {
			// Addresses were named in the record but decoding never
			// produced a usable peer id; treat as no-addresses.
			line.Status = StatusNoAddresses
			lines = append(lines, line)
			continue
		}
		line.PeerID = pid

		if info, ok := res.PeerInfo[pid]; ok {
			line.Status = StatusReached
			line.AgentVersion = info.AgentVersion
			reached++
		} else {
			line.Status = StatusUnreachable
		}

		lines = append(lines, line)
	}

	peers := make([]PeerRecord, 0, len(res.PeerInfo))
	for pid, info := range res.PeerInfo {
		peers = append(peers, PeerRecord{
			PeerID:          pid,
			AgentVersion:    info.AgentVersion,
			ProtocolVersion: info.ProtocolVersion,
		})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].PeerID < peers[j].PeerID })

	return Summary{Lines: lines, Reached: reached, Total: len(res.Authorities), Peers: peers}
}
