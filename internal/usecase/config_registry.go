package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kikiverse/kiki-deploy/internal/domain"
)

// maxArrayRead bounds element-by-element reads of array values
const maxArrayRead = 1024

// ConfigSetParams contains parameters for writing a registry value
type ConfigSetParams struct {
	Kind  domain.ConfigValueKind
	Key   string
	Value string
	// From is the sending role, defaulting to the registry owner
	From string
}

// ConfigGetParams contains parameters for reading a registry value
type ConfigGetParams struct {
	Kind domain.ConfigValueKind
	Key  string
	// Index reads one element of an array value; nil reads the whole array
	Index *big.Int
}

// ConfigEntry is a value read from the registry
type ConfigEntry struct {
	Kind     domain.ConfigValueKind
	Key      string
	KeyHash  common.Hash
	Value    any
	Registry common.Address
}

// ConfigSetResult contains the outcome of a registry write
type ConfigSetResult struct {
	ConfigEntry
	TxHash common.Hash
}

// ConfigRegistry reads and writes the typed mappings of the deployed Config contract
type ConfigRegistry struct {
	store    DeploymentStore
	chain    ChainClient
	deployer *contractDeployer
}

// NewConfigRegistry creates a new ConfigRegistry use case
func NewConfigRegistry(store DeploymentStore, chain ChainClient, progress ProgressSink) *ConfigRegistry {
	if progress == nil {
		progress = NopProgress{}
	}
	return &ConfigRegistry{
		store:    store,
		chain:    chain,
		deployer: &contractDeployer{store: store, chain: chain, progress: progress},
	}
}

// Set writes value under key. Only the registry owner can write; any other sender reverts.
func (uc *ConfigRegistry) Set(ctx context.Context, env *domain.Env, params ConfigSetParams) (*ConfigSetResult, error) {
	registry, registryABI, err := uc.registry(ctx, env)
	if err != nil {
		return nil, err
	}
	method, ok := registryABI.Methods[params.Kind.Setter()]
	if !ok {
		return nil, fmt.Errorf("registry has no %s method", params.Kind.Setter())
	}

	scope := newArgScope(ctx, env, uc.store)
	key, err := resolveKey(params.Key)
	if err != nil {
		return nil, err
	}
	var raw any = params.Value
	if params.Kind.IsArray() {
		raw = splitList(params.Value)
	}
	value, err := scope.convert(raw, method.Inputs[1].Type)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", params.Kind, err)
	}

	from := params.From
	if from == "" {
		from = domain.RoleOwner
	}
	tx, err := uc.deployer.transact(ctx, env, from, registry, registryABI, method.Name, key, value)
	if err != nil {
		return nil, err
	}

	return &ConfigSetResult{
		ConfigEntry: ConfigEntry{
			Kind:     params.Kind,
			Key:      params.Key,
			KeyHash:  key,
			Value:    renderArg(value),
			Registry: registry,
		},
		TxHash: tx.TxHash,
	}, nil
}

// Get reads the value stored under key. Unset keys read as the zero value of the kind.
func (uc *ConfigRegistry) Get(ctx context.Context, env *domain.Env, params ConfigGetParams) (*ConfigEntry, error) {
	registry, registryABI, err := uc.registry(ctx, env)
	if err != nil {
		return nil, err
	}
	key, err := resolveKey(params.Key)
	if err != nil {
		return nil, err
	}

	entry := &ConfigEntry{Kind: params.Kind, Key: params.Key, KeyHash: key, Registry: registry}

	if !params.Kind.IsArray() {
		v, err := uc.read(ctx, registry, registryABI, params.Kind.Getter(), key)
		if err != nil {
			return nil, err
		}
		entry.Value = renderArg(v)
		return entry, nil
	}

	if params.Index != nil {
		v, err := uc.read(ctx, registry, registryABI, params.Kind.Getter(), key, params.Index)
		if err != nil {
			return nil, err
		}
		entry.Value = renderArg(v)
		return entry, nil
	}

	// Public array getters revert past the last element
	values := []any{}
	for i := int64(0); i < maxArrayRead; i++ {
		v, err := uc.read(ctx, registry, registryABI, params.Kind.Getter(), key, big.NewInt(i))
		if errors.Is(err, domain.ErrReverted) {
			break
		}
		if err != nil {
			return nil, err
		}
		values = append(values, renderArg(v))
	}
	entry.Value = values
	return entry, nil
}

func (uc *ConfigRegistry) read(ctx context.Context, registry common.Address, registryABI *abi.ABI, method string, args ...any) (any, error) {
	data, err := registryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	out, err := uc.chain.Call(ctx, common.Address{}, registry, data)
	if err != nil {
		return nil, err
	}
	values, err := registryABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no value", method)
	}
	return values[0], nil
}

func (uc *ConfigRegistry) registry(ctx context.Context, env *domain.Env) (common.Address, *abi.ABI, error) {
	dep, err := uc.store.GetDeployment(ctx, env.Network.Name, domain.ConfigContract)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("config registry is not deployed on %s: %w", env.Network.Name, err)
	}
	registryABI, err := parseABI(dep.ABI)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	return common.HexToAddress(dep.Address), registryABI, nil
}

// resolveKey accepts a 32-byte hex key as is and hashes anything else as a key name
func resolveKey(key string) (common.Hash, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return common.Hash{}, fmt.Errorf("key is required")
	}
	if strings.HasPrefix(key, "id(") && strings.HasSuffix(key, ")") {
		key = key[3 : len(key)-1]
	}
	if strings.HasPrefix(key, "0x") && len(key) == 66 {
		return common.HexToHash(key), nil
	}
	return domain.ConfigKey(key), nil
}

func splitList(s string) []any {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return []any{}
	}
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// Register points key name at address
func (uc *ConfigRegistry) Register(ctx context.Context, env *domain.Env, name string, address common.Address) (*ConfigSetResult, error) {
	return uc.Set(ctx, env, ConfigSetParams{
		Kind:  domain.ConfigAddress,
		Key:   name,
		Value: address.Hex(),
	})
}
