package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/config"
)

// devKeys are the well-known keys local nodes (anvil, hardhat) fund at genesis
var devKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
	"92db14e403b83dfe3df233f83dfa3a0d7096f21ca9b0d6d6b8d88b2b4ec1564e",
	"4bbbf85ce3377467afe5d46f804f221813b2bb87f24d81f60f1fcdbf7cbf4356",
	"dbda1821b80551c9d65939329250298aa3472ba22feea921c0cf5d620ea67b97",
	"2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6",
}

// errLocalOnly marks index accounts on live networks. They are left out so the role
// only fails when something uses it.
var errLocalOnly = errors.New("index accounts are only available on local networks")

// ResolveAccounts turns the configured named accounts into signers for a network.
// Aliases resolve to the same account under the alias role.
func ResolveAccounts(accounts map[string]config.AccountConfig, network *domain.Network) (domain.Accounts, error) {
	resolved := make(domain.Accounts, len(accounts))
	for role := range accounts {
		acc, err := resolveAccount(accounts, network, role, map[string]bool{})
		if errors.Is(err, errLocalOnly) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", role, err)
		}
		resolved[role] = &domain.Account{Role: role, Address: acc.Address, PrivateKey: acc.PrivateKey}
	}
	return resolved, nil
}

func resolveAccount(accounts map[string]config.AccountConfig, network *domain.Network, role string, visiting map[string]bool) (*domain.Account, error) {
	if visiting[role] {
		return nil, fmt.Errorf("alias cycle through %s", role)
	}
	visiting[role] = true

	ac, ok := accounts[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, role)
	}

	switch {
	case ac.Alias != "":
		return resolveAccount(accounts, network, ac.Alias, visiting)
	case ac.Index != nil:
		if network.Live {
			return nil, fmt.Errorf("%w, %s is live", errLocalOnly, network.Name)
		}
		if *ac.Index >= len(devKeys) {
			return nil, fmt.Errorf("index %d out of range, local nodes fund %d accounts", *ac.Index, len(devKeys))
		}
		return accountFromKey(role, devKeys[*ac.Index])
	case ac.PrivateKey != "":
		key, err := expandRequired("private_key", ac.PrivateKey)
		if err != nil {
			return nil, err
		}
		return accountFromKey(role, key)
	case ac.Address != "":
		address, err := expandRequired("address", ac.Address)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAddress, address)
		}
		return &domain.Account{Role: role, Address: common.HexToAddress(address)}, nil
	default:
		return nil, fmt.Errorf("account has no index, private_key or address")
	}
}

func accountFromKey(role, hexKey string) (*domain.Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &domain.Account{
		Role:       role,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, nil
}
