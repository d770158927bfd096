package config

import (
	"time"

	"github.com/kikiverse/kiki-deploy/internal/domain"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Context settings
	Network  *domain.Network
	Accounts domain.Accounts
	// Fork names the network whose state the local node forked, empty when not forking
	Fork        string
	ForkChainID uint64

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool // Output in JSON format
	Timeout        time.Duration

	// Resolved configurations
	Paths      Paths
	Manifest   ManifestConfig
	ConfigFile string // "kiki.toml" or "foundry.toml"
	KikiConfig *KikiFileConfig
}

// Env returns the deployment environment the use cases run in
func (c *RuntimeConfig) Env() *domain.Env {
	return &domain.Env{
		Network:     c.Network,
		Accounts:    c.Accounts,
		Fork:        c.Fork,
		ForkChainID: c.ForkChainID,
	}
}

// Paths are the resolved, absolute project locations
type Paths struct {
	Artifacts   []string
	Deployments string
	Manifests   string
	Plan        string // empty selects the built-in plan
}
