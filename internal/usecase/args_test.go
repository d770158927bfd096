package usecase

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

func abiType(t *testing.T, s string) abi.Type {
	t.Helper()
	typ, err := abi.NewType(s, "", nil)
	require.NoError(t, err)
	return typ
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		in      any
		want    any
		wantErr string
	}{
		{name: "uint256 decimal string", typ: "uint256", in: "10000000000000000000", want: new(big.Int).Mul(big.NewInt(1e10), big.NewInt(1e9))},
		{name: "uint256 exponent", typ: "uint256", in: "1e9", want: big.NewInt(1e9)},
		{name: "uint256 hex", typ: "uint256", in: "0x2a", want: big.NewInt(42)},
		{name: "uint256 underscores", typ: "uint256", in: "1_000", want: big.NewInt(1000)},
		{name: "uint64 from int", typ: "uint64", in: 1, want: uint64(1)},
		{name: "uint8 from float", typ: "uint8", in: float64(18), want: uint8(18)},
		{name: "int32 negative", typ: "int32", in: -5, want: int32(-5)},
		{name: "uint8 overflow", typ: "uint8", in: 256, wantErr: "overflows"},
		{name: "int8 minimum", typ: "int8", in: -128, want: int8(-128)},
		{name: "int8 maximum", typ: "int8", in: 127, want: int8(127)},
		{name: "int8 below minimum", typ: "int8", in: -129, wantErr: "overflows"},
		{name: "int8 above maximum", typ: "int8", in: 128, wantErr: "overflows"},
		{name: "int256 minimum", typ: "int256", in: "-57896044618658097711785492504343953926634992332820282019728792003956564819968", want: new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))},
		{name: "uint negative", typ: "uint256", in: -1, wantErr: "negative"},
		{name: "fraction", typ: "uint256", in: "1.5", wantErr: "not an integer"},
		{name: "bool string", typ: "bool", in: "true", want: true},
		{name: "string from number", typ: "string", in: 12, want: "12"},
		{name: "address", typ: "address", in: "0x70997970c51812dc3a010c7d01b50e0d17dc79c8", want: common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")},
		{name: "bad address", typ: "address", in: "0x1234", wantErr: "invalid address"},
		{name: "bytes", typ: "bytes", in: "0x0102", want: []byte{1, 2}},
		{name: "bytes4 too long", typ: "bytes4", in: "0x0102030405", wantErr: "do not fit"},
		{name: "uint256 slice", typ: "uint256[]", in: []any{1, "2"}, want: []*big.Int{big.NewInt(1), big.NewInt(2)}},
		{name: "fixed array length", typ: "uint8[2]", in: []any{1}, wantErr: "expected 2 elements"},
		{name: "not a list", typ: "address[]", in: "0x00", wantErr: "expected a list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertValue(tt.in, abiType(t, tt.typ))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if n, ok := tt.want.(*big.Int); ok {
				require.IsType(t, &big.Int{}, got)
				assert.Equal(t, 0, n.Cmp(got.(*big.Int)), "got %v", got)
				return
			}
			if want, ok := tt.want.([]*big.Int); ok {
				items := got.([]*big.Int)
				require.Len(t, items, len(want))
				for i := range want {
					assert.Equal(t, 0, want[i].Cmp(items[i]))
				}
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("bytes32 from hex", func(t *testing.T) {
		got, err := convertValue("0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc", abiType(t, "bytes32"))
		require.NoError(t, err)
		assert.Equal(t, "0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc", renderArg(got))
	})
}

// stubStore serves a single deployment
type stubStore struct {
	DeploymentStore
	deployments map[string]*models.Deployment
}

func (s stubStore) GetDeployment(ctx context.Context, network, name string) (*models.Deployment, error) {
	if d, ok := s.deployments[name]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func TestArgScope_Expand(t *testing.T) {
	owner := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	config := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	env := &domain.Env{
		Network:  &domain.Network{Name: "localhost", ChainID: 31337},
		Accounts: domain.Accounts{domain.RoleOwner: {Role: domain.RoleOwner, Address: owner}},
	}
	store := stubStore{deployments: map[string]*models.Deployment{
		"Config": {Name: "Config", Address: config.Hex()},
	}}
	scope := newArgScope(context.Background(), env, store)

	tests := []struct {
		in      any
		want    any
		wantErr error
	}{
		{in: "$owner", want: owner},
		{in: "@Config", want: config},
		{in: "id(KKT)", want: domain.ConfigKey("KKT")},
		{in: "plain", want: "plain"},
		{in: 7, want: 7},
		{in: "$nobody", wantErr: domain.ErrUnknownAccount},
		{in: "@Missing", wantErr: domain.ErrNotFound},
	}
	for _, tt := range tests {
		got, err := scope.expand(tt.in)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	_, err := scope.expand("@self")
	assert.Error(t, err)

	self := common.HexToAddress("0x0000000000000000000000000000000000000001")
	got, err := scope.withSelf(self).expand("@self")
	require.NoError(t, err)
	assert.Equal(t, self, got)
}

func TestResolveArgs_ListElementsAreExpanded(t *testing.T) {
	owner := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	config := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	env := &domain.Env{
		Network:  &domain.Network{Name: "localhost", ChainID: 31337},
		Accounts: domain.Accounts{domain.RoleOwner: {Role: domain.RoleOwner, Address: owner}},
	}
	store := stubStore{deployments: map[string]*models.Deployment{
		"Config": {Name: "Config", Address: config.Hex()},
	}}
	scope := newArgScope(context.Background(), env, store)
	inputs := abi.Arguments{
		{Name: "operators", Type: abiType(t, "address[]")},
		{Name: "keys", Type: abiType(t, "bytes32[2]")},
	}

	got, err := scope.resolveArgs(inputs, []any{
		[]any{"@Config", "$owner"},
		[]any{"id(KKT)", "id(RECEIVER)"},
	})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{config, owner}, got[0])
	assert.Equal(t, [2][32]byte{domain.ConfigKey("KKT"), domain.ConfigKey("RECEIVER")}, got[1])

	_, err = scope.resolveArgs(inputs[:1], []any{[]any{"@Missing"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveArgs_CountMismatch(t *testing.T) {
	scope := newArgScope(context.Background(), &domain.Env{Network: &domain.Network{}}, stubStore{})
	inputs := abi.Arguments{{Name: "owner", Type: abiType(t, "address")}}

	_, err := scope.resolveArgs(inputs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 arguments, got 0")

	_, err = scope.resolveArgs(inputs, []any{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument owner (address)")
}

func TestRenderArg(t *testing.T) {
	assert.Equal(t, "12", renderArg(big.NewInt(12)))
	assert.Equal(t, "0x0102", renderArg([]byte{1, 2}))
	assert.Equal(t, []any{"1", "2"}, renderArg([]*big.Int{big.NewInt(1), big.NewInt(2)}))
	assert.Equal(t, "0x01020304", renderArg([4]byte{1, 2, 3, 4}))
	assert.Equal(t, true, renderArg(true))
}
