package usecase_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kikiverse/kiki-deploy/internal/adapters/manifest"
	"github.com/kikiverse/kiki-deploy/internal/adapters/plan"
	"github.com/kikiverse/kiki-deploy/internal/adapters/repository/deployments"
	"github.com/kikiverse/kiki-deploy/internal/adapters/upgrades"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// ABI builders for the test artifacts

func params(typs []string) string {
	parts := make([]string, len(typs))
	for i, t := range typs {
		parts[i] = fmt.Sprintf(`{"name":"a%d","type":%q}`, i, t)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func fn(name, mutability string, inputs []string, outputs ...string) string {
	return fmt.Sprintf(`{"type":"function","name":%q,"inputs":%s,"outputs":%s,"stateMutability":%q}`,
		name, params(inputs), params(outputs), mutability)
}

func mut(name string, inputs ...string) string { return fn(name, "nonpayable", inputs) }

func view(name string, inputs []string, output string) string {
	return fn(name, "view", inputs, output)
}

func ctor(inputs ...string) string {
	return fmt.Sprintf(`{"type":"constructor","inputs":%s,"stateMutability":"nonpayable"}`, params(inputs))
}

func in(typs ...string) []string { return typs }

func newArtifact(name string, layout *models.StorageLayout, entries ...string) *models.Artifact {
	code := append(append([]byte{0x60, 0x80}, name...), 0x00)
	return &models.Artifact{
		Name:             name,
		ABI:              json.RawMessage("[" + strings.Join(entries, ",") + "]"),
		Bytecode:         hexutil.Encode(code),
		DeployedBytecode: "0x6080604052",
		StorageLayout:    layout,
	}
}

var ownable = []string{
	view("owner", nil, "address"),
	mut("renounceOwnership"),
	mut("transferOwnership", "address"),
}

var erc721 = []string{
	mut("approve", "address", "uint256"),
	mut("setApprovalForAll", "address", "bool"),
	mut("transferFrom", "address", "address", "uint256"),
	mut("safeTransferFrom", "address", "address", "uint256"),
	mut("safeTransferFrom", "address", "address", "uint256", "bytes"),
	view("ownerOf", in("uint256"), "address"),
}

func kikiArtifacts() map[string]*models.Artifact {
	config := append([]string{
		ctor("address"),
		mut("setBytes32", "bytes32", "bytes32"),
		mut("setUint256", "bytes32", "uint256"),
		mut("setBool", "bytes32", "bool"),
		mut("setAddress", "bytes32", "address"),
		mut("setUintArray", "bytes32", "uint256[]"),
		mut("setAddressArray", "bytes32", "address[]"),
		view("keyToBytes32", in("bytes32"), "bytes32"),
		view("keyToUint256", in("bytes32"), "uint256"),
		view("keyToBool", in("bytes32"), "bool"),
		view("keyToAddress", in("bytes32"), "address"),
		view("keyToUintArray", in("bytes32", "uint256"), "uint256"),
		view("keyToAddressArray", in("bytes32", "uint256"), "address"),
	}, ownable...)

	kiki := []string{
		ctor("address"),
		mut("approve", "address", "uint256"),
		mut("transfer", "address", "uint256"),
		mut("transferFrom", "address", "address", "uint256"),
		mut("increaseAllowance", "address", "uint256"),
		mut("decreaseAllowance", "address", "uint256"),
		view("balanceOf", in("address"), "uint256"),
	}

	nft := append(append([]string{
		ctor("address", "string"),
		mut("addMinter", "address"),
		mut("removeMinter", "address"),
		mut("mint", "address"),
	}, erc721...), ownable...)

	box := append(append([]string{
		ctor("address", "address", "address", "bytes32", "uint64", "string"),
		fn("buy", "payable", nil),
		mut("open", "uint256"),
		mut("setKikiBoxes", "uint256[]"),
		mut("rawFulfillRandomWords", "uint256", "uint256[]"),
		mut("burn", "uint256"),
	}, erc721...), ownable...)

	vrf := []string{
		ctor("uint96", "uint96"),
		fn("createSubscription", "nonpayable", nil, "uint64"),
		mut("fundSubscription", "uint64", "uint96"),
		`{"type":"event","name":"SubscriptionCreated","inputs":[{"name":"subId","type":"uint64","indexed":true},{"name":"owner","type":"address","indexed":false}],"anonymous":false}`,
	}

	proxy := []string{
		`{"type":"constructor","inputs":[{"name":"_logic","type":"address"},{"name":"admin_","type":"address"},{"name":"_data","type":"bytes"}],"stateMutability":"payable"}`,
		mut("upgradeTo", "address"),
		fn("upgradeToAndCall", "payable", in("address", "bytes")),
		mut("changeAdmin", "address"),
		mut("admin"),
		mut("implementation"),
	}

	demo := []string{mut("initialize", "uint256"), view("old", nil, "uint256")}

	all := []*models.Artifact{
		newArtifact("Config", nil, config...),
		newArtifact("Kiki", nil, kiki...),
		newArtifact("KikiNft", nil, nft...),
		newArtifact("KikiBlindBox", nil, box...),
		newArtifact(usecase.VRFCoordinatorMock, nil, vrf...),
		newArtifact(usecase.ProxyContract, nil, proxy...),
		newArtifact("DemoV1", demoLayout("old", "name", "decimals"), demo...),
		newArtifact("DemoV2", demoLayout("old", "name", "decimals", "version"), demo...),
		newArtifact("DemoV2Removed", demoLayout("old", "decimals"), demo...),
		newArtifact("DemoNoLayout", nil, demo...),
	}
	killable := newArtifact("DemoKillable", demoLayout("old"), demo...)
	killable.DeployedBytecode = "0x6000ff"
	all = append(all, killable)

	out := make(map[string]*models.Artifact, len(all))
	for _, a := range all {
		out[a.Name] = a
	}
	return out
}

// demoLayout lays out uint256 fields one per slot in the given order
func demoLayout(labels ...string) *models.StorageLayout {
	layout := &models.StorageLayout{
		Types: map[string]models.TypeItem{
			"t_uint256": {Encoding: "inplace", Label: "uint256", NumberOfBytes: "32"},
		},
	}
	for i, label := range labels {
		layout.Storage = append(layout.Storage, models.StorageItem{
			Contract: "contracts/Demo.sol:Demo",
			Label:    label,
			Slot:     fmt.Sprint(i),
			Type:     "t_uint256",
		})
	}
	return layout
}

// fakeArtifacts serves a fixed artifact set
type fakeArtifacts struct {
	artifacts map[string]*models.Artifact
}

func (f *fakeArtifacts) GetArtifact(ctx context.Context, name string) (*models.Artifact, error) {
	a, ok := f.artifacts[name]
	if !ok {
		return nil, &domain.ArtifactNotFoundError{Name: name}
	}
	return a, nil
}

func (f *fakeArtifacts) ListArtifacts(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.artifacts))
	for n := range f.artifacts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// fakeContract emulates the behaviour of the deployed contracts the use cases talk to
type fakeContract struct {
	name   string
	abi    *abi.ABI
	owner  common.Address
	values map[string]any
	impl   common.Address
	admin  common.Address
	subs   uint64
	funded map[uint64]*big.Int
}

func (c *fakeContract) clone() *fakeContract {
	out := *c
	out.values = make(map[string]any, len(c.values))
	for k, v := range c.values {
		out.values[k] = v
	}
	out.funded = make(map[uint64]*big.Int, len(c.funded))
	for k, v := range c.funded {
		out.funded[k] = v
	}
	return &out
}

type chainState struct {
	contracts map[common.Address]*fakeContract
	nonces    map[common.Address]uint64
	block     uint64
}

func (s *chainState) clone() *chainState {
	out := &chainState{
		contracts: make(map[common.Address]*fakeContract, len(s.contracts)),
		nonces:    make(map[common.Address]uint64, len(s.nonces)),
		block:     s.block,
	}
	for k, v := range s.contracts {
		out.contracts[k] = v.clone()
	}
	for k, v := range s.nonces {
		out.nonces[k] = v
	}
	return out
}

var subscriptionCreated = crypto.Keccak256Hash([]byte("SubscriptionCreated(uint64,address)"))

// fakeChain is an in-memory chain that recognises contracts by their creation code
type fakeChain struct {
	mu        sync.Mutex
	chainID   uint64
	artifacts map[string]*models.Artifact
	state     *chainState
	snapshots map[string]*chainState
	nextSnap  int
	// txs counts mined transactions
	txs int
}

var (
	_ usecase.ChainClient = (*fakeChain)(nil)
	_ usecase.Snapshotter = (*fakeChain)(nil)
)

func newFakeChain(chainID uint64, artifacts map[string]*models.Artifact) *fakeChain {
	return &fakeChain{
		chainID:   chainID,
		artifacts: artifacts,
		state: &chainState{
			contracts: make(map[common.Address]*fakeContract),
			nonces:    make(map[common.Address]uint64),
		},
		snapshots: make(map[string]*chainState),
	}
}

func (f *fakeChain) ChainID(ctx context.Context) (uint64, error) { return f.chainID, nil }

func (f *fakeChain) Deploy(ctx context.Context, from *domain.Account, initCode []byte) (*usecase.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		match *models.Artifact
		code  []byte
	)
	for _, a := range f.artifacts {
		c := a.CreationCode()
		if bytes.HasPrefix(initCode, c) && len(c) > len(code) {
			match, code = a, c
		}
	}
	if match == nil {
		return nil, fmt.Errorf("unknown creation code")
	}
	parsed, err := match.ParsedABI()
	if err != nil {
		return nil, err
	}
	args, err := parsed.Constructor.Inputs.Unpack(initCode[len(code):])
	if err != nil {
		return nil, fmt.Errorf("bad constructor args for %s: %w", match.Name, err)
	}

	c := &fakeContract{name: match.Name, abi: parsed, values: map[string]any{}, funded: map[uint64]*big.Int{}}
	switch match.Name {
	case "Config", "KikiNft":
		c.owner = args[0].(common.Address)
	case usecase.ProxyContract:
		c.impl = args[0].(common.Address)
		c.admin = args[1].(common.Address)
	}

	address := crypto.CreateAddress(from.Address, f.state.nonces[from.Address])
	f.state.nonces[from.Address]++
	f.state.contracts[address] = c
	return f.mined(address, nil), nil
}

func (f *fakeChain) mined(address common.Address, logs []*types.Log) *usecase.TxResult {
	f.state.block++
	f.txs++
	return &usecase.TxResult{
		TxHash:          crypto.Keccak256Hash(address.Bytes(), new(big.Int).SetUint64(f.state.block).Bytes()),
		ContractAddress: address,
		BlockNumber:     f.state.block,
		Logs:            logs,
	}
}

func (f *fakeChain) Transact(ctx context.Context, from *domain.Account, to common.Address, data []byte) (*usecase.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.state.contracts[to]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	_, logs, err := c.exec(to, from.Address, data, true)
	if err != nil {
		return nil, err
	}
	f.state.nonces[from.Address]++
	res := f.mined(common.Address{}, logs)
	return res, nil
}

func (f *fakeChain) Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.state.contracts[to]
	if !ok {
		return nil, nil
	}
	out, _, err := c.exec(to, from, data, false)
	return out, err
}

func (f *fakeChain) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.state.contracts[address]; ok {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (f *fakeChain) StorageAt(ctx context.Context, address common.Address, slot common.Hash) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.state.contracts[address]
	if ok && c.name == usecase.ProxyContract && slot == usecase.ImplementationSlot {
		return common.BytesToHash(c.impl.Bytes()), nil
	}
	return common.Hash{}, nil
}

func (f *fakeChain) Snapshot(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSnap++
	id := hexutil.EncodeUint64(uint64(f.nextSnap))
	f.snapshots[id] = f.state.clone()
	return id, nil
}

func (f *fakeChain) Revert(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[id]
	if !ok {
		return fmt.Errorf("unknown snapshot %s", id)
	}
	// later snapshots are discarded the way anvil and hardhat do
	for other := range f.snapshots {
		if n, _ := hexutil.DecodeUint64(other); n >= hexutil.MustDecodeUint64(id) {
			delete(f.snapshots, other)
		}
	}
	f.state = s.clone()
	return nil
}

func (f *fakeChain) contract(address string) *fakeContract {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.contracts[common.HexToAddress(address)]
}

func (f *fakeChain) txCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs
}

func revert(reason string) error {
	return &domain.RevertError{Reason: reason}
}

func (c *fakeContract) exec(self, from common.Address, data []byte, commit bool) ([]byte, []*types.Log, error) {
	if len(data) < 4 {
		return nil, nil, nil
	}
	m, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, revert("unknown selector")
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("bad calldata for %s: %w", m.Name, err)
	}

	switch c.name {
	case "Config":
		switch {
		case strings.HasPrefix(m.Name, "set"):
			if from != c.owner {
				return nil, nil, revert("Ownable: caller is not the owner")
			}
			if commit {
				key := args[0].([32]byte)
				c.values[strings.TrimPrefix(m.Name, "set")+":"+hexutil.Encode(key[:])] = args[1]
			}
			return nil, nil, nil
		case strings.HasPrefix(m.Name, "keyTo"):
			key := args[0].([32]byte)
			v, ok := c.values[strings.TrimPrefix(m.Name, "keyTo")+":"+hexutil.Encode(key[:])]
			if len(args) == 2 {
				idx := args[1].(*big.Int)
				if !ok || idx.Cmp(big.NewInt(int64(reflect.ValueOf(v).Len()))) >= 0 {
					return nil, nil, revert("")
				}
				v = reflect.ValueOf(v).Index(int(idx.Int64())).Interface()
			} else if !ok {
				v = zeroValue(m.Outputs[0].Type)
			}
			out, err := m.Outputs.Pack(v)
			return out, nil, err
		case m.Name == "owner":
			out, err := m.Outputs.Pack(c.owner)
			return out, nil, err
		}

	case usecase.ProxyContract:
		if m.Name == "upgradeTo" || m.Name == "upgradeToAndCall" {
			if from != c.admin {
				return nil, nil, revert("")
			}
			if commit {
				c.impl = args[0].(common.Address)
			}
		}

	case usecase.VRFCoordinatorMock:
		switch m.Name {
		case "createSubscription":
			id := c.subs + 1
			if commit {
				c.subs = id
			}
			log := &types.Log{
				Address: self,
				Topics:  []common.Hash{subscriptionCreated, common.BigToHash(new(big.Int).SetUint64(id))},
			}
			out, err := m.Outputs.Pack(id)
			return out, []*types.Log{log}, err
		case "fundSubscription":
			id := args[0].(uint64)
			if id == 0 || id > c.subs {
				return nil, nil, revert("InvalidSubscription")
			}
			if commit {
				c.funded[id] = args[1].(*big.Int)
			}
		}
	}
	return nil, nil, nil
}

func zeroValue(t abi.Type) any {
	if t.GetType() == reflect.TypeOf(&big.Int{}) {
		return new(big.Int)
	}
	return reflect.New(t.GetType()).Elem().Interface()
}

// stubConfirmer answers every prompt the same way
type stubConfirmer struct {
	answer bool
	asked  int
}

func (s *stubConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	s.asked++
	return s.answer, nil
}

// staticPlan serves an in-memory plan
type staticPlan struct {
	plan *domain.Plan
}

func (s staticPlan) LoadPlan(ctx context.Context, path string) (*domain.Plan, error) {
	return s.plan, nil
}

var (
	deployerAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	adminAddress    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func localEnv() *domain.Env {
	return &domain.Env{
		Network: &domain.Network{Name: "localhost", ChainID: 31337, RPCURL: "http://127.0.0.1:8545"},
		Accounts: domain.Accounts{
			domain.RoleDeployer: {Role: domain.RoleDeployer, Address: deployerAddress},
			domain.RoleAdmin:    {Role: domain.RoleAdmin, Address: adminAddress},
			domain.RoleOwner:    {Role: domain.RoleOwner, Address: adminAddress},
		},
	}
}

// harness wires the use cases to in-memory adapters
type harness struct {
	chain     *fakeChain
	artifacts *fakeArtifacts
	store     *deployments.MemoryRepository
	manifests *manifest.MemoryStore
	confirmer *stubConfirmer
	env       *domain.Env

	proxies  *usecase.DeployProxy
	vrf      *usecase.BootstrapVRF
	deploy   *usecase.DeploySequence
	registry *usecase.ConfigRegistry
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithPlans(t, plan.NewLoader())
}

func newHarnessWithPlans(t *testing.T, plans usecase.PlanLoader) *harness {
	t.Helper()
	artifacts := &fakeArtifacts{artifacts: kikiArtifacts()}
	h := &harness{
		chain:     newFakeChain(31337, artifacts.artifacts),
		artifacts: artifacts,
		store:     deployments.NewMemoryRepository(),
		manifests: manifest.NewMemoryStore(),
		confirmer: &stubConfirmer{},
		env:       localEnv(),
	}
	h.proxies = usecase.NewDeployProxy(h.artifacts, h.store, h.manifests, h.chain, upgrades.NewValidator(nil), nil)
	h.vrf = usecase.NewBootstrapVRF(h.artifacts, h.store, h.chain, nil)
	h.deploy = usecase.NewDeploySequence(plans, h.artifacts, h.store, h.chain, h.proxies, h.vrf, h.confirmer, nil)
	h.registry = usecase.NewConfigRegistry(h.store, h.chain, nil)
	return h
}

func (h *harness) address(t *testing.T, name string) string {
	t.Helper()
	dep, err := h.store.GetDeployment(context.Background(), h.env.Network.Name, name)
	if err != nil {
		t.Fatalf("deployment %s: %v", name, err)
	}
	return dep.Address
}
