// Package config loads the discovery CLI's YAML configuration and
// layers flag overrides on top of it, in the style of peer-up's own
// node configs: a typed struct, a version field for forward
// compatibility, and permissive-file-mode detection before reading
// anything that might name bootstrap addresses or endpoints.
package config

import "time"

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// Config is the full set of knobs discover-authorities accepts, either
// from a YAML file or from flag overrides applied on top of it.
type Config struct {
	Version int `yaml:"version,omitempty"`

	// RuntimeURL is the websocket endpoint the runtime-API client
	// dials for AuthorityDiscoveryApi_authorities.
	RuntimeURL string `yaml:"runtime_url"`

	// GenesisHash is the target chain's genesis hash, hex-encoded. It
	// is required and validated at startup; the crawl itself does not
	// use it.
	GenesisHash string `yaml:"genesis_hash"`

	// Bootnodes are multiaddrs, each ending in /p2p/<id> (checked at
	// startup), the swarm dials before starting DHT queries.
	Bootnodes []string `yaml:"bootnodes"`

	// AddressFormat names the SS58 network used to render authority
	// ids in the report: "polkadot", "kusama", or "substrate".
	AddressFormat string `yaml:"address_format,omitempty"`

	// Engine tunes the discovery scheduler.
	Engine EngineConfig `yaml:"engine,omitempty"`

	// MetricsListenAddress, if non-empty, serves Prometheus metrics on
	// this address for the run's duration.
	MetricsListenAddress string `yaml:"metrics_listen_address,omitempty"`

	// Identity optionally persists the libp2p host key across runs;
	// an empty path uses a fresh ephemeral identity each run.
	Identity IdentityConfig `yaml:"identity,omitempty"`

	// Output controls report rendering.
	Output OutputConfig `yaml:"output,omitempty"`

	// Verbosity sets the slog level: "debug", "info", "warn", "error".
	Verbosity string `yaml:"verbosity,omitempty"`
}

// EngineConfig mirrors engine.Config with YAML-friendly duration
// strings; zero fields fall back to engine.DefaultConfig at runtime.
type EngineConfig struct {
	MaxRecordQueries    int           `yaml:"max_record_queries,omitempty"`
	MaxDiscoveryQueries int           `yaml:"max_discovery_queries,omitempty"`
	ResubmitInterval    time.Duration `yaml:"resubmit_interval,omitempty"`
	ExitTimeout         time.Duration `yaml:"exit_timeout,omitempty"`
}

// IdentityConfig names where the host keypair is stored.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file,omitempty"`
}

// OutputConfig controls how the final report is rendered.
type OutputConfig struct {
	// Raw replaces the authority report with a plain-text dump of every
	// identified peer's (peer_id, identify-info) pair (the -raw_output
	// flag); combined with -json it adds that dump to the JSON report as
	// its "peers" array.
	Raw bool `yaml:"raw,omitempty"`
	// Color forces or disables ANSI coloring; nil leaves the decision
	// to termcolor's own TTY detection.
	Color *bool `yaml:"color,omitempty"`
}

// IsColorForced reports whether Color was explicitly set, and its value.
func (o OutputConfig) IsColorForced() (forced, value bool) {
	if o.Color == nil {
		return false, false
	}
	return true, *o.Color
}

// Default returns a Config with every field at its zero-risk default:
// no bootnodes, Polkadot address format, engine defaults, info logging.
func Default() Config {
	return Config{
		Version:       CurrentConfigVersion,
		AddressFormat: "polkadot",
		Verbosity:     "info",
	}
}
