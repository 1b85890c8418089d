package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// checkConfigFilePermissions returns an error if a config file has overly
// permissive permissions (group/world readable), so Load refuses it. Config files may name bootstrap
// endpoints and a key file path.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// Load reads and parses a discover-authorities YAML config file.
func Load(path string) (*Config, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade discover-authorities", ErrConfigVersionTooNew, cfg.Version, CurrentConfigVersion)
	}

	return &cfg, nil
}

// FindConfigFile searches for a config file in standard locations.
// Search order: explicitPath (if given), ./discover-authorities.yaml,
// ~/.config/discover-authorities/config.yaml, /etc/discover-authorities/config.yaml.
func FindConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{"discover-authorities.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "discover-authorities", "config.yaml"))
	}
	searchPaths = append(searchPaths, filepath.Join("/etc", "discover-authorities", "config.yaml"))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w; searched:\n  %s", ErrConfigNotFound, strings.Join(searchPaths, "\n  "))
}

// Validate checks that the fields required to run a discovery pass are
// present, deferring network-shape checks (multiaddr parsing, hex
// decoding) to internal/validate.
func Validate(cfg *Config) error {
	if cfg.RuntimeURL == "" {
		return fmt.Errorf("runtime_url is required")
	}
	if cfg.GenesisHash == "" {
		return fmt.Errorf("genesis_hash is required")
	}
	return nil
}

// ResolveConfigPaths resolves a relative identity key file path to be
// relative to the config file's directory, so configs under
// ~/.config/discover-authorities/ can reference key files portably.
func ResolveConfigPaths(cfg *Config, configDir string) {
	if cfg.Identity.KeyFile != "" && !filepath.IsAbs(cfg.Identity.KeyFile) {
		cfg.Identity.KeyFile = filepath.Join(configDir, cfg.Identity.KeyFile)
	}
}
