package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadParsesFieldsAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
runtime_url: "wss://rpc.polkadot.io"
genesis_hash: "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c"
bootnodes:
  - "/dns/p2p.polkadot.io/tcp/30333/p2p/12D3KooWEdsXX9657ppNqqrrwLi52ixqRhKQqCENhtBodBDiGJJ"
engine:
  max_record_queries: 8
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RuntimeURL != "wss://rpc.polkadot.io" {
		t.Errorf("RuntimeURL = %q", cfg.RuntimeURL)
	}
	if len(cfg.Bootnodes) != 1 {
		t.Fatalf("Bootnodes = %v", cfg.Bootnodes)
	}
	if cfg.Engine.MaxRecordQueries != 8 {
		t.Errorf("Engine.MaxRecordQueries = %d, want 8", cfg.Engine.MaxRecordQueries)
	}
	if cfg.AddressFormat != "polkadot" {
		t.Errorf("AddressFormat default = %q, want polkadot", cfg.AddressFormat)
	}
}

func TestLoadRejectsPermissiveMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("runtime_url: x\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for world-readable config file")
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "version: 99\nruntime_url: x\ngenesis_hash: y\n")

	_, err := Load(path)
	if !errors.Is(err, ErrConfigVersionTooNew) {
		t.Fatalf("err = %v, want ErrConfigVersionTooNew", err)
	}
}

func TestValidateRequiresRuntimeURLAndGenesis(t *testing.T) {
	if err := Validate(&Config{}); err == nil {
		t.Error("expected error for empty config")
	}
	if err := Validate(&Config{RuntimeURL: "wss://x"}); err == nil {
		t.Error("expected error when genesis_hash is missing")
	}
	if err := Validate(&Config{RuntimeURL: "wss://x", GenesisHash: "0xabc"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFindConfigFileReturnsExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "runtime_url: x\ngenesis_hash: y\n")

	found, err := FindConfigFile(path)
	if err != nil {
		t.Fatalf("FindConfigFile: %v", err)
	}
	if found != path {
		t.Errorf("found = %q, want %q", found, path)
	}
}

func TestFindConfigFileErrorsWhenExplicitPathMissing(t *testing.T) {
	if _, err := FindConfigFile("/nonexistent/path/config.yaml"); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestResolveConfigPathsJoinsRelativeKeyFile(t *testing.T) {
	cfg := &Config{Identity: IdentityConfig{KeyFile: "host.key"}}
	ResolveConfigPaths(cfg, "/etc/discover-authorities")
	if cfg.Identity.KeyFile != "/etc/discover-authorities/host.key" {
		t.Errorf("KeyFile = %q", cfg.Identity.KeyFile)
	}
}
