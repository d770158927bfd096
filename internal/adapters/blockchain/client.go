package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

const (
	// gasMarginPercent is added on top of every gas estimate
	gasMarginPercent    = 20
	receiptPollInterval = 500 * time.Millisecond
)

// Client implements ChainClient and Snapshotter over a JSON-RPC endpoint. Transactions
// are signed locally when the account carries a key; otherwise they are sent unsigned
// through eth_sendTransaction, which local nodes accept for unlocked and impersonated
// accounts.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	chainID *big.Int
	log     *slog.Logger

	// serialises nonce assignment
	mu sync.Mutex
}

var (
	_ usecase.ChainClient = (*Client)(nil)
	_ usecase.Snapshotter = (*Client)(nil)
)

// Dial connects to the network's RPC endpoint and verifies its chain id. A network
// without a configured chain id adopts the node's.
func Dial(ctx context.Context, network *domain.Network, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if network.RPCURL == "" {
		return nil, fmt.Errorf("network %s has no rpc url", network.Name)
	}

	rpcClient, err := rpc.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if network.ChainID == 0 {
		network.ChainID = chainID.Uint64()
	} else if chainID.Uint64() != network.ChainID {
		rpcClient.Close()
		return nil, fmt.Errorf("%w: %s expects chain id %d, node reports %d",
			domain.ErrNetworkMismatch, network.Name, network.ChainID, chainID.Uint64())
	}

	return &Client{
		rpc:     rpcClient,
		eth:     eth,
		chainID: chainID,
		log:     log.With("component", "chain", "network", network.Name),
	}, nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	return c.chainID.Uint64(), nil
}

// Deploy sends a contract creation transaction and waits for it to be mined
func (c *Client) Deploy(ctx context.Context, from *domain.Account, initCode []byte) (*usecase.TxResult, error) {
	return c.send(ctx, from, nil, initCode)
}

// Transact sends a transaction to a contract and waits for it to be mined
func (c *Client) Transact(ctx context.Context, from *domain.Account, to common.Address, data []byte) (*usecase.TxResult, error) {
	return c.send(ctx, from, &to, data)
}

// Call executes a read-only call against the latest block
func (c *Client) Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		if revert := asRevert(err); revert != nil {
			return nil, revert
		}
		return nil, fmt.Errorf("call to %s failed: %w", to.Hex(), err)
	}
	return out, nil
}

func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	return c.eth.CodeAt(ctx, address, nil)
}

func (c *Client) StorageAt(ctx context.Context, address common.Address, slot common.Hash) (common.Hash, error) {
	raw, err := c.eth.StorageAt(ctx, address, slot, nil)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(raw), nil
}

// Snapshot records the node state and returns the snapshot id
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := c.rpc.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot failed: %w", err)
	}
	return id, nil
}

// Revert restores a snapshot. Snapshots are single use.
func (c *Client) Revert(ctx context.Context, id string) error {
	var ok bool
	if err := c.rpc.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return fmt.Errorf("evm_revert failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("evm_revert returned false for snapshot %s", id)
	}
	return nil
}

func (c *Client) send(ctx context.Context, from *domain.Account, to *common.Address, data []byte) (*usecase.TxResult, error) {
	if from == nil {
		return nil, fmt.Errorf("%w: no sender", domain.ErrUnknownAccount)
	}

	c.mu.Lock()
	hash, tx, err := c.submit(ctx, from, to, data)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.log.Debug("sent transaction", "from", from.Address.Hex(), "hash", hash.Hex(), "create", to == nil)

	var receipt *types.Receipt
	if tx != nil {
		receipt, err = bind.WaitMined(ctx, c.eth, tx)
	} else {
		receipt, err = c.waitReceipt(ctx, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", hash.Hex(), err)
	}

	result := &usecase.TxResult{
		TxHash:          receipt.TxHash,
		ContractAddress: receipt.ContractAddress,
		Logs:            receipt.Logs,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, &domain.RevertError{TxHash: receipt.TxHash.Hex()}
	}
	return result, nil
}

// submit estimates, signs and broadcasts a transaction. Estimation failures that carry
// a revert are reported as reverts so nothing is broadcast. The signed transaction is
// nil when the node signed it.
func (c *Client) submit(ctx context.Context, from *domain.Account, to *common.Address, data []byte) (common.Hash, *types.Transaction, error) {
	msg := ethereum.CallMsg{From: from.Address, To: to, Data: data}
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		if revert := asRevert(err); revert != nil {
			return common.Hash{}, nil, revert
		}
		return common.Hash{}, nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas += gas * gasMarginPercent / 100

	if !from.CanSign() {
		hash, err := c.sendUnsigned(ctx, from.Address, to, data, gas)
		return hash, nil, err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, from.Address)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(from.PrivateKey, c.chainID)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	tx, err := opts.Signer(from.Address, types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Data:     data,
	}))
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		if revert := asRevert(err); revert != nil {
			return common.Hash{}, nil, revert
		}
		return common.Hash{}, nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return tx.Hash(), tx, nil
}

type sendTxArgs struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to,omitempty"`
	Gas  hexutil.Uint64  `json:"gas"`
	Data hexutil.Bytes   `json:"data"`
}

func (c *Client) sendUnsigned(ctx context.Context, from common.Address, to *common.Address, data []byte, gas uint64) (common.Hash, error) {
	var hash common.Hash
	args := sendTxArgs{From: from, To: to, Gas: hexutil.Uint64(gas), Data: data}
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		if revert := asRevert(err); revert != nil {
			return common.Hash{}, revert
		}
		return common.Hash{}, fmt.Errorf("failed to send transaction from %s: %w", from.Hex(), err)
	}
	return hash, nil
}

// waitReceipt polls for the receipt of a transaction known only by hash
func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.log.Debug("receipt retrieval failed", "hash", hash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// asRevert extracts a revert from an RPC error, decoding Error(string) payloads
func asRevert(err error) *domain.RevertError {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return &domain.RevertError{Reason: reason}
				}
				if len(data) >= 4 {
					return &domain.RevertError{Reason: fmt.Sprintf("custom error %s", hexutil.Encode(data[:4]))}
				}
				return &domain.RevertError{}
			}
		}
	}

	msg := err.Error()
	idx := strings.Index(strings.ToLower(msg), "revert")
	if idx < 0 {
		return nil
	}
	reason := msg[idx:]
	if i := strings.Index(reason, ":"); i >= 0 {
		reason = strings.TrimSpace(reason[i+1:])
	} else {
		reason = ""
	}
	return &domain.RevertError{Reason: reason}
}
