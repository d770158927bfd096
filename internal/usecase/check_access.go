package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/samber/lo"
)

// AccessCheck is the result of calling a restricted function from one account
type AccessCheck struct {
	Contract string
	Method   string
	Role     string
	Account  common.Address
	// Allowed is whether the account is expected to succeed
	Allowed bool
	Passed  bool
	Error   error
}

// CheckAccess proves that restricted functions succeed for the allowed account and
// revert for every other named account. Calls are simulated, so no state changes.
type CheckAccess struct {
	store DeploymentStore
	chain ChainClient
}

// NewCheckAccess creates a new CheckAccess use case
func NewCheckAccess(store DeploymentStore, chain ChainClient) *CheckAccess {
	return &CheckAccess{store: store, chain: chain}
}

// Run checks the named contracts, or every contract with restricted functions when none are given
func (uc *CheckAccess) Run(ctx context.Context, env *domain.Env, contracts []string) ([]*AccessCheck, error) {
	if len(contracts) == 0 {
		contracts = lo.Keys(domain.RestrictedFunctions)
		sort.Strings(contracts)
	}

	var checks []*AccessCheck
	for _, name := range contracts {
		fns, ok := domain.RestrictedFunctions[name]
		if !ok {
			return nil, fmt.Errorf("%w: no restricted functions known for %s", domain.ErrNotFound, name)
		}
		dep, err := uc.store.GetDeployment(ctx, env.Network.Name, name)
		if err != nil {
			return nil, err
		}
		contractABI, err := parseABI(dep.ABI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ABI of %s: %w", name, err)
		}
		to := common.HexToAddress(dep.Address)
		scope := newArgScope(ctx, env, uc.store).withSelf(to)

		for _, fn := range fns {
			m, ok := contractABI.Methods[fn.Method]
			if !ok {
				return nil, fmt.Errorf("method %s not found on %s", fn.Method, name)
			}
			args, err := scope.resolveArgs(m.Inputs, fn.Args)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", name, fn.Method, err)
			}
			data, err := contractABI.Pack(fn.Method, args...)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s.%s: %w", name, fn.Method, err)
			}
			allowed, err := env.Accounts.Get(fn.Role)
			if err != nil {
				return nil, err
			}

			for _, role := range env.Accounts.Roles() {
				acc := env.Accounts[role]
				if acc.Address == allowed.Address && role != fn.Role {
					continue
				}
				check := &AccessCheck{
					Contract: name,
					Method:   fn.Method,
					Role:     role,
					Account:  acc.Address,
					Allowed:  acc.Address == allowed.Address,
				}
				_, err := uc.chain.Call(ctx, acc.Address, to, data)
				switch {
				case check.Allowed:
					check.Passed = err == nil
					check.Error = err
				case errors.Is(err, domain.ErrReverted):
					check.Passed = true
				default:
					check.Error = err
					if err == nil {
						check.Error = fmt.Errorf("%s succeeded for %s", fn.Method, role)
					}
				}
				checks = append(checks, check)
			}
		}
	}
	return checks, nil
}
