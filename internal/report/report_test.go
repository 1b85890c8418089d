package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/authdisco/internal/authid"
	"github.com/shurlinet/authdisco/internal/engine"
)

func addr(t *testing.T, s string) ma.Multiaddr {
	t.Helper()
	a, err := ma.NewMultiaddr(s)
	if err != nil {
		t.Fatalf("NewMultiaddr(%q): %v", s, err)
	}
	return a
}

func TestBuildClassifiesEachAuthority(t *testing.T) {
	var noResponse, noAddrs, reached, unreachable authid.ID
	noResponse[0] = 1
	noAddrs[0] = 2
	reached[0] = 3
	unreachable[0] = 4

	a1 := addr(t, "/ip4/1.2.3.4/tcp/30333")

	res := &engine.Result{
		Authorities: []authid.ID{noResponse, noAddrs, reached, unreachable},
		AuthorityToDetails: map[authid.ID]map[string]ma.Multiaddr{
			noAddrs:     {},
			reached:     {a1.String(): a1},
			unreachable: {a1.String(): a1},
		},
		PeerDetails: map[peer.ID]*engine.PeerDetails{
			peer.ID("peer-reached"):     {AuthorityID: reached, Addresses: map[string]ma.Multiaddr{a1.String(): a1}},
			peer.ID("peer-unreachable"): {AuthorityID: unreachable, Addresses: map[string]ma.Multiaddr{a1.String(): a1}},
		},
		PeerInfo: map[peer.ID]engine.IdentifyInfo{
			peer.ID("peer-reached"): {AgentVersion: "substrate-node/v1.0.0"},
		},
	}

	s := Build(res, 0)

	if s.Total != 4 {
		t.Fatalf("Total = %d, want 4", s.Total)
	}
	if s.Reached != 1 {
		t.Fatalf("Reached = %d, want 1", s.Reached)
	}

	want := map[authid.ID]Status{
		noResponse:  StatusNoResponse,
		noAddrs:     StatusNoAddresses,
		reached:     StatusReached,
		unreachable: StatusUnreachable,
	}
	for _, l := range s.Lines {
		if l.Status != want[l.Authority] {
			t.Errorf("authority %s: status = %v, want %v", l.Authority.String(), l.Status, want[l.Authority])
		}
	}
}

func TestPrintPlainIncludesTally(t *testing.T) {
	s := Summary{
		Lines: []Line{
			{SS58: "5Grwv...", Status: StatusNoResponse},
			{SS58: "5FHne...", Status: StatusReached, PeerID: peer.ID("p1"), AgentVersion: "v1.0.0"},
		},
		Reached: 1,
		Total:   2,
	}

	var buf bytes.Buffer
	if err := Print(&buf, s); err != nil {
		t.Fatalf("Print: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "authority=5Grwv... - No dht response") {
		t.Errorf("missing no-response line: %q", out)
	}
	if !strings.Contains(out, "Discovered 1/2 authorities") {
		t.Errorf("missing tally: %q", out)
	}
}

func TestPrintJSONRoundTripsStatus(t *testing.T) {
	s := Summary{
		Lines: []Line{
			{SS58: "5Grwv...", Status: StatusUnreachable, PeerID: peer.ID("p1"), Addresses: []string{"/ip4/1.2.3.4/tcp/30333"}},
		},
		Reached: 0,
		Total:   1,
	}

	var buf bytes.Buffer
	if err := PrintJSON(&buf, s, false); err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"status": "unreachable"`) {
		t.Errorf("json output missing status field: %s", buf.String())
	}
}
