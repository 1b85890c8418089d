package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shurlinet/authdisco/internal/config"
)

// flags is the parsed command line, before any YAML config overlay is
// applied. Empty/zero fields mean "not set on the command line" so
// applyOverrides can tell a flag apart from its zero value.
type flags struct {
	configPath string

	url           string
	genesis       string
	bootnodes     stringList
	timeout       time.Duration
	addressFormat string

	rawOutput   bool
	jsonOutput  bool
	metricsAddr string
	verbose     bool

	keyFile string
}

// stringList accumulates repeated -bootnodes flags into a slice.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// parseFlags parses args into a flags value. It does not touch any
// config file; that happens afterward in loadConfig.
func parseFlags(args []string) (*flags, error) {
	fs := flag.NewFlagSet("discover-authorities", flag.ContinueOnError)

	f := &flags{}
	fs.StringVar(&f.configPath, "config", "", "path to a discover-authorities.yaml config file")
	fs.StringVar(&f.url, "url", "", "websocket RPC endpoint of the node to query (state_call)")
	fs.StringVar(&f.genesis, "genesis", "", "genesis hash of the target chain, hex encoded")
	fs.Var(&f.bootnodes, "bootnodes", "bootnode multiaddr, repeatable (/ip4/.../tcp/.../p2p/...)")
	fs.DurationVar(&f.timeout, "timeout", 0, "overall discovery timeout, e.g. 150s (default from engine config)")
	fs.StringVar(&f.addressFormat, "address_format", "", "ss58 address format: polkadot, kusama, or substrate")
	fs.BoolVar(&f.rawOutput, "raw_output", false, "dump every identified (peer_id, identify-info) pair instead of the authority report")
	fs.BoolVar(&f.jsonOutput, "json", false, "emit the report as JSON instead of text")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address for the run's duration")
	fs.BoolVar(&f.verbose, "v", false, "enable debug logging")
	fs.StringVar(&f.keyFile, "key-file", "", "persist the libp2p host identity at this path instead of using an ephemeral key")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// applyOverrides layers flags that were explicitly set on top of cfg,
// in the order config-file-then-flags so the command line always wins.
func (f *flags) applyOverrides(cfg *config.Config) {
	if f.url != "" {
		cfg.RuntimeURL = f.url
	}
	if f.genesis != "" {
		cfg.GenesisHash = f.genesis
	}
	if len(f.bootnodes) > 0 {
		cfg.Bootnodes = f.bootnodes
	}
	if f.addressFormat != "" {
		cfg.AddressFormat = f.addressFormat
	}
	if f.timeout > 0 {
		cfg.Engine.ExitTimeout = f.timeout
	}
	if f.rawOutput {
		cfg.Output.Raw = true
	}
	if f.metricsAddr != "" {
		cfg.MetricsListenAddress = f.metricsAddr
	}
	if f.verbose {
		cfg.Verbosity = "debug"
	}
	if f.keyFile != "" {
		cfg.Identity.KeyFile = f.keyFile
	}
}

// loadConfig builds the effective Config: the YAML file named by
// -config (or found in a standard location) if one exists, flag values
// layered on top, and validation of the result.
func loadConfig(f *flags) (*config.Config, error) {
	cfg := config.Default()

	path, err := config.FindConfigFile(f.configPath)
	switch {
	case err == nil:
		loaded, loadErr := config.Load(path)
		if loadErr != nil {
			return nil, loadErr
		}
		cfg = *loaded
		config.ResolveConfigPaths(&cfg, filepath.Dir(path))
	case f.configPath != "":
		// an explicit -config path that doesn't exist is an error;
		// falling back to defaults silently would be surprising.
		return nil, err
	}

	f.applyOverrides(&cfg)

	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return &cfg, nil
}
