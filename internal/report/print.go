package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shurlinet/authdisco/internal/termcolor"
)

// line returns the plain-text rendering of one Line, matching the four
// formats discover_authorities prints.
func (l Line) line() string {
	switch l.Status {
	case StatusNoResponse:
		return fmt.Sprintf("authority=%s - No dht response", l.SS58)
	case StatusNoAddresses:
		return fmt.Sprintf("authority=%s - No addresses found in DHT record", l.SS58)
	case StatusReached:
		return fmt.Sprintf("authority=%s peer_id=%s addresses=%v version=%s",
			l.SS58, l.PeerID, l.Addresses, l.AgentVersion)
	case StatusUnreachable:
		return fmt.Sprintf("authority=%s peer_id=%s addresses=%v - Cannot be reached",
			l.SS58, l.PeerID, l.Addresses)
	default:
		return fmt.Sprintf("authority=%s - unknown status", l.SS58)
	}
}

// Print writes the summary to w as plain text, one line per authority
// followed by the "Discovered N/M authorities" / "Discovered peers P"
// tally lines.
func Print(w io.Writer, s Summary) error {
	for _, l := range s.Lines {
		if _, err := fmt.Fprintln(w, l.line()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n\n  Discovered %d/%d authorities\n  Discovered peers %d\n", s.Reached, s.Total, len(s.Peers))
	return err
}

// PrintColor writes the summary to stdout via internal/termcolor:
// reached authorities in green, unreachable-but-addressed ones in
// yellow, no-response/no-addresses ones in red.
func PrintColor(s Summary) {
	for _, l := range s.Lines {
		switch l.Status {
		case StatusReached:
			termcolor.Green("%s", l.line())
		case StatusUnreachable:
			termcolor.Yellow("%s", l.line())
		default:
			termcolor.Red("%s", l.line())
		}
	}
	termcolor.Faint("\n\n  Discovered %d/%d authorities\n  Discovered peers %d\n", s.Reached, s.Total, len(s.Peers))
}

// PrintRawDump writes the (peer_id, identify-info) records named by
// §6's raw_output flag as plain text, one per line.
func PrintRawDump(w io.Writer, s Summary) error {
	for _, p := range s.Peers {
		if _, err := fmt.Fprintf(w, "peer_id=%s agent_version=%q protocol_version=%q\n",
			p.PeerID, p.AgentVersion, p.ProtocolVersion); err != nil {
			return err
		}
	}
	return nil
}

// jsonLine is the wire shape for -json output; unlike Line it carries
// no unexported fields and renders peer ids/statuses as strings.
type jsonLine struct {
	Authority    string   `json:"authority"`
	Status       string   `json:"status"`
	PeerID       string   `json:"peer_id,omitempty"`
	Addresses    []string `json:"addresses,omitempty"`
	AgentVersion string   `json:"agent_version,omitempty"`
}

func (s Status) String() string {
	switch s {
	case StatusNoResponse:
		return "no_response"
	case StatusNoAddresses:
		return "no_addresses"
	case StatusReached:
		return "reached"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// jsonPeer is the wire shape of one raw-output peer record.
type jsonPeer struct {
	PeerID          string `json:"peer_id"`
	AgentVersion    string `json:"agent_version,omitempty"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// PrintJSON writes the summary to w as a single JSON object, for
// scripted consumption (the supplemented -json flag). Peer identify
// records are included only when raw is true, matching -raw_output
// -json's combined behavior.
func PrintJSON(w io.Writer, s Summary, raw bool) error {
	out := struct {
		Authorities []jsonLine `json:"authorities"`
		Reached     int        `json:"reached"`
		Total       int        `json:"total"`
		Peers       []jsonPeer `json:"peers,omitempty"`
	}{
		Authorities: make([]jsonLine, len(s.Lines)),
		Reached:     s.Reached,
		Total:       s.Total,
	}
	for i, l := range s.Lines {
		jl := jsonLine{
			Authority:    l.SS58,
			Status:       l.Status.String(),
			Addresses:    l.Addresses,
			AgentVersion: l.AgentVersion,
		}
		if l.PeerID != "" {
			jl.PeerID = l.PeerID.String()
		}
		out.Authorities[i] = jl
	}
	if raw {
		out.Peers = make([]jsonPeer, len(s.Peers))
		for i, p := range s.Peers {
			out.Peers[i] = jsonPeer{
				PeerID:          p.PeerID.String(),
				AgentVersion:    p.AgentVersion,
				ProtocolVersion: p.ProtocolVersion,
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
