package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiverse/kiki-deploy/internal/domain"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// fakeNode answers the subset of JSON-RPC the client uses
type fakeNode struct {
	mu          sync.Mutex
	chainID     uint64
	estimateErr *rpcError
	callErr     *rpcError
	code        map[common.Address]string
	storage     map[common.Hash]string
	sent        []*types.Transaction
	unsigned    []map[string]any
	status      string
	snapshots   int
	methods     []string
}

func newFakeNode(chainID uint64) *fakeNode {
	return &fakeNode{
		chainID: chainID,
		code:    map[common.Address]string{},
		storage: map[common.Hash]string{},
		status:  "0x1",
	}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methods = append(n.methods, req.Method)

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "eth_chainId":
		resp.Result = hexutil.EncodeUint64(n.chainID)
	case "eth_getCode":
		var addr common.Address
		_ = json.Unmarshal(req.Params[0], &addr)
		code, ok := n.code[addr]
		if !ok {
			code = "0x"
		}
		resp.Result = code
	case "eth_getStorageAt":
		var slot common.Hash
		_ = json.Unmarshal(req.Params[1], &slot)
		value, ok := n.storage[slot]
		if !ok {
			value = common.Hash{}.Hex()
		}
		resp.Result = value
	case "eth_call":
		if n.callErr != nil {
			resp.Error = n.callErr
		} else {
			resp.Result = "0x000000000000000000000000000000000000000000000000000000000000002a"
		}
	case "eth_estimateGas":
		if n.estimateErr != nil {
			resp.Error = n.estimateErr
		} else {
			resp.Result = "0x5208"
		}
	case "eth_getTransactionCount":
		resp.Result = hexutil.EncodeUint64(uint64(len(n.sent)))
	case "eth_gasPrice":
		resp.Result = "0x3b9aca00"
	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		_ = json.Unmarshal(req.Params[0], &raw)
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			resp.Error = &rpcError{Code: -32000, Message: err.Error()}
			break
		}
		n.sent = append(n.sent, tx)
		resp.Result = tx.Hash().Hex()
	case "eth_sendTransaction":
		var args map[string]any
		_ = json.Unmarshal(req.Params[0], &args)
		n.unsigned = append(n.unsigned, args)
		resp.Result = common.BytesToHash([]byte{0xbe, 0xef}).Hex()
	case "eth_getTransactionReceipt":
		var hash common.Hash
		_ = json.Unmarshal(req.Params[0], &hash)
		resp.Result = n.receipt(hash)
	case "evm_snapshot":
		n.snapshots++
		resp.Result = hexutil.EncodeUint64(uint64(n.snapshots))
	case "evm_revert":
		var id string
		_ = json.Unmarshal(req.Params[0], &id)
		resp.Result = id == hexutil.EncodeUint64(uint64(n.snapshots))
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) receipt(hash common.Hash) map[string]any {
	return map[string]any{
		"transactionHash":   hash.Hex(),
		"transactionIndex":  "0x0",
		"blockHash":         common.BytesToHash([]byte{0x01}).Hex(),
		"blockNumber":       "0x7",
		"status":            n.status,
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"effectiveGasPrice": "0x3b9aca00",
		"type":              "0x0",
		"logsBloom":         hexutil.Encode(make([]byte, types.BloomByteLength)),
		"logs":              []any{},
		"contractAddress":   "0x5fbdb2315678afecb367f032d93f642f64180aa3",
	}
}

func (n *fakeNode) calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.methods {
		if m == method {
			count++
		}
	}
	return count
}

func dialFake(t *testing.T, node *fakeNode, chainID uint64) *Client {
	t.Helper()
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)

	client, err := Dial(context.Background(), &domain.Network{Name: "localhost", RPCURL: server.URL, ChainID: chainID}, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func devAccount(t *testing.T) *domain.Account {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	return &domain.Account{Role: domain.RoleDeployer, Address: crypto.PubkeyToAddress(key.PublicKey), PrivateKey: key}
}

func revertData(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...))
}

func TestDial_ChainIDMismatch(t *testing.T) {
	server := httptest.NewServer(newFakeNode(31337))
	defer server.Close()

	_, err := Dial(context.Background(), &domain.Network{Name: "sepolia", RPCURL: server.URL, ChainID: 11155111}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetworkMismatch))
	assert.Contains(t, err.Error(), "node reports 31337")
}

func TestDial_AdoptsNodeChainID(t *testing.T) {
	server := httptest.NewServer(newFakeNode(31337))
	defer server.Close()

	network := &domain.Network{Name: "localhost", RPCURL: server.URL}
	client, err := Dial(context.Background(), network, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, uint64(31337), network.ChainID)
	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), id)
}

func TestDeploy_SignsAndWaitsForReceipt(t *testing.T) {
	node := newFakeNode(31337)
	client := dialFake(t, node, 31337)
	from := devAccount(t)

	result, err := client.Deploy(context.Background(), from, []byte{0x60, 0x80})
	require.NoError(t, err)

	require.Len(t, node.sent, 1)
	tx := node.sent[0]
	assert.Nil(t, tx.To())
	assert.Equal(t, []byte{0x60, 0x80}, tx.Data())
	assert.Equal(t, uint64(0x5208*120/100), tx.Gas())

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	require.NoError(t, err)
	assert.Equal(t, from.Address, sender)

	assert.Equal(t, tx.Hash(), result.TxHash)
	assert.Equal(t, common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"), result.ContractAddress)
	assert.Equal(t, uint64(7), result.BlockNumber)
}

func TestTransact_FailedReceiptIsRevert(t *testing.T) {
	node := newFakeNode(31337)
	node.status = "0x0"
	client := dialFake(t, node, 31337)

	_, err := client.Transact(context.Background(), devAccount(t), common.HexToAddress("0x01"), []byte{0x01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrReverted))
}

func TestTransact_EstimateRevertSendsNothing(t *testing.T) {
	node := newFakeNode(31337)
	client := dialFake(t, node, 31337)
	node.estimateErr = &rpcError{Code: 3, Message: "execution reverted: Ownable: caller is not the owner", Data: revertData(t, "Ownable: caller is not the owner")}

	_, err := client.Transact(context.Background(), devAccount(t), common.HexToAddress("0x01"), []byte{0x01})
	require.Error(t, err)

	var revert *domain.RevertError
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, "Ownable: caller is not the owner", revert.Reason)
	assert.Empty(t, node.sent)
	assert.Zero(t, node.calls("eth_sendRawTransaction"))
}

func TestTransact_UnsignedAccountUsesNodeSigning(t *testing.T) {
	node := newFakeNode(31337)
	client := dialFake(t, node, 31337)
	from := &domain.Account{Role: domain.RoleAdmin, Address: common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")}

	result, err := client.Transact(context.Background(), from, common.HexToAddress("0x02"), []byte{0xab})
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash([]byte{0xbe, 0xef}), result.TxHash)

	require.Len(t, node.unsigned, 1)
	assert.True(t, strings.EqualFold(from.Address.Hex(), node.unsigned[0]["from"].(string)))
	assert.Equal(t, "0xab", node.unsigned[0]["data"])
}

func TestCall(t *testing.T) {
	node := newFakeNode(31337)
	client := dialFake(t, node, 31337)

	out, err := client.Call(context.Background(), common.Address{}, common.HexToAddress("0x01"), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, byte(0x2a), out[31])

	node.callErr = &rpcError{Code: 3, Message: "execution reverted"}
	_, err = client.Call(context.Background(), common.Address{}, common.HexToAddress("0x01"), []byte{0x01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrReverted))
}

func TestCodeAndStorage(t *testing.T) {
	node := newFakeNode(31337)
	addr := common.HexToAddress("0x1234")
	slot := common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	node.code[addr] = "0x6080"
	node.storage[slot] = common.BytesToHash(common.HexToAddress("0xbeef").Bytes()).Hex()
	client := dialFake(t, node, 31337)

	code, err := client.CodeAt(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)

	value, err := client.StorageAt(context.Background(), addr, slot)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xbeef"), common.BytesToAddress(value.Bytes()))
}

func TestSnapshotRevert(t *testing.T) {
	client := dialFake(t, newFakeNode(31337), 31337)
	ctx := context.Background()

	id, err := client.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x1", id)

	require.NoError(t, client.Revert(ctx, id))
	assert.Error(t, client.Revert(ctx, "0x9"))
}

func TestAsRevert(t *testing.T) {
	assert.Nil(t, asRevert(errors.New("connection refused")))
	assert.Equal(t, "", asRevert(errors.New("execution reverted")).Reason)
	assert.Equal(t, "not owner", asRevert(errors.New("VM Exception: reverted with reason string: not owner")).Reason)
}
