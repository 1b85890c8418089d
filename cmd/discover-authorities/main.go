// Command discover-authorities crawls the DHT for the current
// authority set of a Substrate chain and reports which authorities
// have a reachable peer behind them.
//
// Usage:
//
//	discover-authorities -url ws://node:9944 -genesis 0xabc...
//	discover-authorities -config discover-authorities.yaml -json
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/authdisco/internal/config"
	"github.com/shurlinet/authdisco/internal/engine"
	"github.com/shurlinet/authdisco/internal/identity"
	"github.com/shurlinet/authdisco/internal/metricsx"
	"github.com/shurlinet/authdisco/internal/pswarm"
	"github.com/shurlinet/authdisco/internal/report"
	"github.com/shurlinet/authdisco/internal/runtimeapi"
	"github.com/shurlinet/authdisco/internal/validate"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "discover-authorities: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, args []string, stdout *os.File) error {
	f, err := parseFlags(args)
	if err != nil {
		return configError(err)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return configError(err)
	}

	setupLogging(cfg.Verbosity)

	ss58Version, err := validate.AddressFormat(cfg.AddressFormat)
	if err != nil {
		return configError(err)
	}
	genesis, err := validate.GenesisHash(cfg.GenesisHash)
	if err != nil {
		return configError(err)
	}
	bootAddrs := make([]ma.Multiaddr, 0, len(cfg.Bootnodes))
	for _, b := range cfg.Bootnodes {
		addr, err := validate.Bootnode(b)
		if err != nil {
			return configError(err)
		}
		bootAddrs = append(bootAddrs, addr)
	}
	_ = genesis // reserved for the notifications handler's handshake; unused by the crawl itself

	slog.Info("discover-authorities starting", "runtime_url", cfg.RuntimeURL, "address_format", cfg.AddressFormat, "bootnodes", len(bootAddrs))

	authorities, err := runtimeapi.FetchAuthorities(ctx, cfg.RuntimeURL)
	if err != nil {
		return rpcError(err)
	}
	slog.Info("fetched authority set", "count", len(authorities))

	priv, err := identity.Resolve(cfg.Identity.KeyFile)
	if err != nil {
		return configError(err)
	}

	h, kdht, err := buildSwarm(ctx, priv)
	if err != nil {
		return rpcError(err)
	}
	defer h.Close()
	defer kdht.Close()

	dialBootnodes(ctx, h, bootAddrs)

	var metrics *metricsx.Metrics
	if cfg.MetricsListenAddress != "" {
		metrics = metricsx.New(version, runtime.Version())
		srv := &http.Server{Addr: cfg.MetricsListenAddress, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
		metrics.AuthoritiesTotal.Set(float64(len(authorities)))
	}

	sw, err := pswarm.New(h, kdht)
	if err != nil {
		return rpcError(err)
	}
	defer sw.Close()

	eng, err := engine.New(sw, h, authorities, engineConfigFrom(cfg.Engine))
	if err != nil {
		return rpcError(err)
	}

	exitTimeout := cfg.Engine.ExitTimeout
	if exitTimeout <= 0 {
		exitTimeout = engine.DefaultConfig().ExitTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, exitTimeout)
	defer cancel()

	res := eng.Discover(runCtx)
	if metrics != nil {
		metrics.DHTErrorsTotal.Add(float64(res.DHTErrors))
	}

	summary := report.Build(res, ss58Version)
	if metrics != nil {
		metrics.AuthoritiesReached.Set(float64(summary.Reached))
	}
	if err := printReport(stdout, summary, cfg.Output, f.jsonOutput, cfg.Output.Raw); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}

	return nil
}

// engineConfigFrom converts the YAML-friendly config.EngineConfig into
// engine.Config; zero fields fall back to engine.DefaultConfig inside
// engine.New.
func engineConfigFrom(c config.EngineConfig) engine.Config {
	return engine.Config{
		MaxRecordQueries:    c.MaxRecordQueries,
		MaxDiscoveryQueries: c.MaxDiscoveryQueries,
		ResubmitInterval:    c.ResubmitInterval,
		ExitTimeout:         c.ExitTimeout,
	}
}

func printReport(w *os.File, s report.Summary, out config.OutputConfig, jsonOutput, rawOutput bool) error {
	switch {
	case jsonOutput:
		return report.PrintJSON(w, s, rawOutput)
	case rawOutput:
		return report.PrintRawDump(w, s)
	default:
		if wantColor(w, out) {
			report.PrintColor(s)
			return nil
		}
		return report.Print(w, s)
	}
}

// wantColor decides whether to use termcolor's ANSI output: an
// explicit output.color setting always wins, otherwise color is used
// only when stdout is a terminal.
func wantColor(f *os.File, out config.OutputConfig) bool {
	if forced, value := out.IsColorForced(); forced {
		return value
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func setupLogging(verbosity string) {
	level := slog.LevelInfo
	switch verbosity {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildSwarm constructs a client-mode libp2p host and Kademlia DHT,
// the swarm discovery queries are issued against.
func buildSwarm(ctx context.Context, priv crypto.PrivKey) (host.Host, *dht.IpfsDHT, error) {
	h, err := libp2p.New(libp2p.Identity(priv), libp2p.NoListenAddrs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to construct libp2p host: %w", err)
	}

	kdht, err := dht.New(ctx, h, dht.Mode(dht.ModeClient))
	if err != nil {
		h.Close()
		return nil, nil, fmt.Errorf("failed to construct kademlia dht client: %w", err)
	}

	return h, kdht, nil
}

// dialBootnodes connects to every bootnode address, logging (but not
// failing the run on) individual dial errors: a subset of reachable
// bootnodes is enough to seed the DHT routing table.
func dialBootnodes(ctx context.Context, h host.Host, addrs []ma.Multiaddr) {
	for _, addr := range addrs {
		info, err := peerAddrInfo(addr)
		if err != nil {
			slog.Warn("skipping bootnode with unparsable peer info", "addr", addr.String(), "err", err)
			continue
		}
		if err := h.Connect(ctx, info); err != nil {
			slog.Warn("failed to connect to bootnode", "peer", info.ID.String(), "err", err)
			continue
		}
		slog.Debug("connected to bootnode", "peer", info.ID.String())
	}
}

func peerAddrInfo(addr ma.Multiaddr) (peer.AddrInfo, error) {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return peer.AddrInfo{}, err
	}
	return *info, nil
}
