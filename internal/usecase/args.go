package usecase

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kikiverse/kiki-deploy/internal/domain"
)

// argScope resolves the references allowed in plan arguments:
//
//	@Name     address of the deployment Name on the current network
//	@self     address of the contract deployed by the current step
//	$role     address of a named account
//	id(text)  keccak256 of text
type argScope struct {
	ctx      context.Context
	env      *domain.Env
	store    DeploymentStore
	self     *common.Address
	resolved map[string]common.Address
}

func newArgScope(ctx context.Context, env *domain.Env, store DeploymentStore) *argScope {
	return &argScope{
		ctx:      ctx,
		env:      env,
		store:    store,
		resolved: make(map[string]common.Address),
	}
}

func (s *argScope) withSelf(addr common.Address) *argScope {
	clone := *s
	clone.self = &addr
	return &clone
}

// expand turns a reference string into the value it names. Non-reference values pass through.
func (s *argScope) expand(raw any) (any, error) {
	str, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	str = strings.TrimSpace(str)
	switch {
	case str == "@self":
		if s.self == nil {
			return nil, fmt.Errorf("@self used before the contract was deployed")
		}
		return *s.self, nil
	case strings.HasPrefix(str, "@"):
		return s.deploymentAddress(str[1:])
	case strings.HasPrefix(str, "$"):
		acc, err := s.env.Accounts.Get(str[1:])
		if err != nil {
			return nil, err
		}
		return acc.Address, nil
	case strings.HasPrefix(str, "id(") && strings.HasSuffix(str, ")"):
		return domain.ConfigKey(str[3 : len(str)-1]), nil
	}
	return str, nil
}

func (s *argScope) deploymentAddress(name string) (common.Address, error) {
	if addr, ok := s.resolved[name]; ok {
		return addr, nil
	}
	dep, err := s.store.GetDeployment(s.ctx, s.env.Network.Name, name)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve @%s: %w", name, err)
	}
	addr := common.HexToAddress(dep.Address)
	s.resolved[name] = addr
	return addr, nil
}

// resolveArgs converts raw plan arguments into Go values matching the ABI inputs
func (s *argScope) resolveArgs(inputs abi.Arguments, raw []any) ([]any, error) {
	if len(inputs) != len(raw) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(raw))
	}
	out := make([]any, len(raw))
	for i, input := range inputs {
		v, err := s.convert(raw[i], input.Type)
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func (s *argScope) convert(raw any, t abi.Type) (any, error) {
	if items, ok := raw.([]any); ok && (t.T == abi.SliceTy || t.T == abi.ArrayTy) {
		return toList(items, t, s.convert)
	}
	v, err := s.expand(raw)
	if err != nil {
		return nil, err
	}
	return convertValue(v, t)
}

func convertValue(v any, t abi.Type) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		return fitInteger(n, t)
	case abi.BoolTy:
		return toBool(v)
	case abi.StringTy:
		return fmt.Sprint(v), nil
	case abi.FixedBytesTy:
		return toFixedBytes(v, t)
	case abi.BytesTy:
		return toBytes(v)
	case abi.SliceTy, abi.ArrayTy:
		return toList(v, t, convertValue)
	}
	return nil, fmt.Errorf("unsupported argument type %s", t.String())
}

func toAddress(v any) (common.Address, error) {
	switch x := v.(type) {
	case common.Address:
		return x, nil
	case string:
		if !common.IsHexAddress(x) {
			return common.Address{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, x)
		}
		return common.HexToAddress(x), nil
	}
	return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidAddress, v)
}

// toBigInt accepts Go integers, floats holding integers, and decimal, hex or
// exponent strings ("10000000000000000000", "0x2a", "1e9")
func toBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return new(big.Int).Set(x), nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case float64:
		return floatToInt(new(big.Float).SetFloat64(x))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), "_", "")
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			n, ok := new(big.Int).SetString(s[2:], 16)
			if !ok {
				return nil, fmt.Errorf("invalid hex integer %q", x)
			}
			return n, nil
		}
		if n, ok := new(big.Int).SetString(s, 10); ok {
			return n, nil
		}
		f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return floatToInt(f)
	}
	return nil, fmt.Errorf("invalid integer %v", v)
}

func floatToInt(f *big.Float) (*big.Int, error) {
	n, acc := f.Int(nil)
	if acc != big.Exact {
		return nil, fmt.Errorf("%s is not an integer", f.String())
	}
	return n, nil
}

// fitInteger converts n into the Go type the ABI packer expects for t
func fitInteger(n *big.Int, t abi.Type) (any, error) {
	if t.T == abi.UintTy && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s for %s", n, t.String())
	}
	bits, magnitude := t.Size, n
	if t.T == abi.IntTy {
		bits--
		// -2^(bits-1) is the smallest value, so negatives are measured as -n-1
		if n.Sign() < 0 {
			magnitude = new(big.Int).Not(n)
		}
	}
	if magnitude.BitLen() > bits {
		return nil, fmt.Errorf("value %s overflows %s", n, t.String())
	}
	goType := t.GetType()
	if goType == reflect.TypeOf(&big.Int{}) {
		return n, nil
	}
	rv := reflect.New(goType).Elem()
	switch goType.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		rv.SetUint(n.Uint64())
	default:
		rv.SetInt(n.Int64())
	}
	return rv.Interface(), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	}
	return false, fmt.Errorf("invalid bool %v", v)
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case common.Hash:
		return x.Bytes(), nil
	case string:
		if x == "" || x == "0x" {
			return []byte{}, nil
		}
		return hexutil.Decode(x)
	}
	return nil, fmt.Errorf("invalid bytes %v", v)
}

func toFixedBytes(v any, t abi.Type) (any, error) {
	b, err := toBytes(v)
	if err != nil {
		return nil, err
	}
	if len(b) > t.Size {
		return nil, fmt.Errorf("%d bytes do not fit %s", len(b), t.String())
	}
	rv := reflect.New(t.GetType()).Elem()
	reflect.Copy(rv, reflect.ValueOf(b))
	return rv.Interface(), nil
}

func toList(v any, t abi.Type, convert func(any, abi.Type) (any, error)) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list for %s", t.String())
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return nil, fmt.Errorf("expected %d elements for %s, got %d", t.Size, t.String(), len(items))
	}
	var rv reflect.Value
	if t.T == abi.ArrayTy {
		rv = reflect.New(t.GetType()).Elem()
	} else {
		rv = reflect.MakeSlice(t.GetType(), len(items), len(items))
	}
	for i, item := range items {
		elem, err := convert(item, *t.Elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		rv.Index(i).Set(reflect.ValueOf(elem))
	}
	return rv.Interface(), nil
}

// renderArgs produces a JSON-friendly copy of resolved arguments for deployment records
func renderArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = renderArg(a)
	}
	return out
}

func renderArg(a any) any {
	switch x := a.(type) {
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case *big.Int:
		return x.String()
	case []byte:
		return hexutil.Encode(x)
	case [32]byte:
		return common.Hash(x).Hex()
	}
	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return hexutil.Encode(b)
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = renderArg(rv.Index(i).Interface())
		}
		return out
	}
	return a
}
