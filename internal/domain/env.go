package domain

import (
	"crypto/ecdsa"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Named account roles used throughout the deployment plans
const (
	RoleDeployer = "deployer"
	RoleAdmin    = "admin"
	RoleOwner    = "owner"
)

// Network is the resolved network a run targets
type Network struct {
	Name    string   `json:"name"`
	ChainID uint64   `json:"chainId"`
	RPCURL  string   `json:"rpcUrl"`
	Live    bool     `json:"live"`
	Tags    []string `json:"tags,omitempty"`
}

// Account is a named account role resolved to a concrete signer
type Account struct {
	Role       string
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// CanSign reports whether transactions can be signed for the account
func (a *Account) CanSign() bool {
	return a != nil && a.PrivateKey != nil
}

// Accounts maps role names to resolved accounts
type Accounts map[string]*Account

// Get returns the account for a role
func (a Accounts) Get(role string) (*Account, error) {
	acc, ok := a[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, role)
	}
	return acc, nil
}

// Roles returns the sorted role names
func (a Accounts) Roles() []string {
	roles := make([]string, 0, len(a))
	for r := range a {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Env is the explicit context every deployment operation runs in
type Env struct {
	Network  *Network
	Accounts Accounts
	// Fork names the network whose manifest is used when running against a forked snapshot
	Fork string
	// ForkChainID is the chain id of the forked network, zero when not forking
	ForkChainID uint64
}

// IsForking reports whether the run targets a forked network snapshot
func (e *Env) IsForking() bool {
	return e.Fork != ""
}

// ManifestChainID returns the chain id under which the upgrade manifest is kept
func (e *Env) ManifestChainID() uint64 {
	if e.IsForking() && e.ForkChainID != 0 {
		return e.ForkChainID
	}
	return e.Network.ChainID
}
