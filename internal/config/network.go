package config

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/config"
)

// DefaultNetwork is used when no network is selected
const DefaultNetwork = "localhost"

const localRPCURL = "http://127.0.0.1:8545"

// builtinNetworks are always available unless kiki.toml redefines them
var builtinNetworks = map[string]config.NetworkConfig{
	"localhost": {RPCURL: localRPCURL, ChainID: 31337, Tags: []string{"local"}},
	"hardhat":   {RPCURL: localRPCURL, ChainID: 31337, Tags: []string{"local"}},
	"anvil":     {RPCURL: localRPCURL, ChainID: 31337, Tags: []string{"local"}},
}

// ResolveNetwork resolves a network name against the loaded configuration, expanding
// ${VAR} references in the RPC URL
func ResolveNetwork(cfg *config.KikiFileConfig, name string) (*domain.Network, error) {
	if name == "" {
		name = DefaultNetwork
	}
	nc, ok := cfg.Networks[name]
	if !ok {
		return nil, fmt.Errorf("network '%s' not found, configured: %v", name, NetworkNames(cfg))
	}

	rpcURL, err := expandRequired(fmt.Sprintf("networks.%s.rpc_url", name), nc.RPCURL)
	if err != nil {
		return nil, err
	}
	if rpcURL == "" {
		return nil, fmt.Errorf("network '%s' has no rpc_url, set it or export %s", name, GenerateEnvVarName(name))
	}

	return &domain.Network{
		Name:    name,
		ChainID: nc.ChainID,
		RPCURL:  rpcURL,
		Live:    nc.Live,
		Tags:    nc.Tags,
	}, nil
}

// NetworkNames returns the sorted names of every configured network
func NetworkNames(cfg *config.KikiFileConfig) []string {
	names := lo.Keys(cfg.Networks)
	sort.Strings(names)
	return names
}
