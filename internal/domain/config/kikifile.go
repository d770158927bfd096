package config

import (
	"fmt"
)

// Manifest store backends
const (
	ManifestBackendFile   = "file"
	ManifestBackendSQLite = "sqlite"
	ManifestBackendMemory = "memory"
)

// KikiFileConfig represents kiki.toml
type KikiFileConfig struct {
	Networks map[string]NetworkConfig `toml:"networks"`
	Accounts map[string]AccountConfig `toml:"accounts"`
	Paths    PathsConfig              `toml:"paths"`
	Manifest ManifestConfig           `toml:"manifest"`
}

// NetworkConfig represents a [networks.<name>] section
type NetworkConfig struct {
	RPCURL  string   `toml:"rpc_url"`
	ChainID uint64   `toml:"chain_id"`
	Live    bool     `toml:"live"`
	Tags    []string `toml:"tags,omitempty"`
}

// PathsConfig represents the [paths] section. Relative paths are resolved against the
// project root.
type PathsConfig struct {
	Artifacts   []string `toml:"artifacts,omitempty"`
	Deployments string   `toml:"deployments,omitempty"`
	Manifests   string   `toml:"manifests,omitempty"`
	Plan        string   `toml:"plan,omitempty"`
}

// ManifestConfig represents the [manifest] section
type ManifestConfig struct {
	Backend string `toml:"backend,omitempty"`
	DSN     string `toml:"dsn,omitempty"`
}

// AccountConfig is a named account in [accounts]. It is either a table with exactly one
// of index, private_key or address, or a string naming another account.
type AccountConfig struct {
	Index      *int   `toml:"index,omitempty"`
	PrivateKey string `toml:"private_key,omitempty"` //nolint:gosec // holds env var reference, not a literal secret
	Address    string `toml:"address,omitempty"`
	Alias      string `toml:"-"`
}

// UnmarshalTOML accepts both the table and the alias form
func (a *AccountConfig) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		a.Alias = v
		return nil
	case int64:
		i := int(v)
		a.Index = &i
		return nil
	case map[string]any:
		for key, value := range v {
			switch key {
			case "index":
				n, ok := value.(int64)
				if !ok || n < 0 {
					return fmt.Errorf("index must be a non-negative integer")
				}
				i := int(n)
				a.Index = &i
			case "private_key":
				s, ok := value.(string)
				if !ok {
					return fmt.Errorf("private_key must be a string")
				}
				a.PrivateKey = s
			case "address":
				s, ok := value.(string)
				if !ok {
					return fmt.Errorf("address must be a string")
				}
				a.Address = s
			default:
				return fmt.Errorf("unknown account field %q", key)
			}
		}
		return a.validate()
	default:
		return fmt.Errorf("account must be a table, an index or the name of another account")
	}
}

func (a *AccountConfig) validate() error {
	set := 0
	if a.Index != nil {
		set++
	}
	if a.PrivateKey != "" {
		set++
	}
	if a.Address != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("account needs exactly one of index, private_key or address")
	}
	return nil
}

// DefaultAccounts mirrors the usual local setup: two dev keys and owner aliased to admin
func DefaultAccounts() map[string]AccountConfig {
	zero, one := 0, 1
	return map[string]AccountConfig{
		"deployer": {Index: &zero},
		"admin":    {Index: &one},
		"owner":    {Alias: "admin"},
	}
}
