package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kikiverse/kiki-deploy/internal/domain/config"
)

const (
	kikiFileName    = "kiki.toml"
	foundryFileName = "foundry.toml"
)

// foundryTOML is the part of foundry.toml used when a project has no kiki.toml
type foundryTOML struct {
	RpcEndpoints map[string]string         `toml:"rpc_endpoints"`
	Profile      map[string]map[string]any `toml:"profile"`
}

// loadKikiConfig loads kiki.toml, falling back to the networks and output directory of
// foundry.toml. Returns the config and the file it came from.
func loadKikiConfig(projectRoot string) (*config.KikiFileConfig, string, error) {
	kikiPath := filepath.Join(projectRoot, kikiFileName)
	if _, err := os.Stat(kikiPath); err == nil {
		var cfg config.KikiFileConfig
		if _, err := toml.DecodeFile(kikiPath, &cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", kikiFileName, err)
		}
		return withDefaults(&cfg), kikiFileName, nil
	}

	foundryPath := filepath.Join(projectRoot, foundryFileName)
	if _, err := os.Stat(foundryPath); err == nil {
		var raw foundryTOML
		if _, err := toml.DecodeFile(foundryPath, &raw); err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", foundryFileName, err)
		}
		cfg := &config.KikiFileConfig{Networks: make(map[string]config.NetworkConfig)}
		for name, url := range raw.RpcEndpoints {
			cfg.Networks[name] = config.NetworkConfig{RPCURL: url, Live: true}
		}
		if out, ok := raw.Profile["default"]["out"].(string); ok && out != "" {
			cfg.Paths.Artifacts = []string{out}
		}
		return withDefaults(cfg), foundryFileName, nil
	}

	return withDefaults(&config.KikiFileConfig{}), "", nil
}

// withDefaults fills everything the file left out
func withDefaults(cfg *config.KikiFileConfig) *config.KikiFileConfig {
	if cfg.Networks == nil {
		cfg.Networks = make(map[string]config.NetworkConfig)
	}
	for name, network := range builtinNetworks {
		if _, ok := cfg.Networks[name]; !ok {
			cfg.Networks[name] = network
		}
	}
	if len(cfg.Accounts) == 0 {
		cfg.Accounts = config.DefaultAccounts()
	}
	if len(cfg.Paths.Artifacts) == 0 {
		cfg.Paths.Artifacts = []string{"out", "artifacts"}
	}
	if cfg.Paths.Deployments == "" {
		cfg.Paths.Deployments = "deployments"
	}
	if cfg.Paths.Manifests == "" {
		cfg.Paths.Manifests = ".openzeppelin"
	}
	if cfg.Manifest.Backend == "" {
		cfg.Manifest.Backend = config.ManifestBackendFile
	}
	return cfg
}

// resolvePaths makes the configured paths absolute
func resolvePaths(projectRoot string, p config.PathsConfig) config.Paths {
	abs := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(projectRoot, path)
	}
	paths := config.Paths{
		Deployments: abs(p.Deployments),
		Manifests:   abs(p.Manifests),
		Plan:        abs(p.Plan),
	}
	for _, dir := range p.Artifacts {
		paths.Artifacts = append(paths.Artifacts, abs(dir))
	}
	return paths
}
