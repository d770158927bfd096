package blockchain

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// LazyClient dials the network on first use. A failed dial is retried on the next call.
type LazyClient struct {
	network *domain.Network
	log     *slog.Logger
	dial    func(ctx context.Context, network *domain.Network, log *slog.Logger) (*Client, error)

	mu     sync.Mutex
	client *Client
}

var (
	_ usecase.ChainClient = (*LazyClient)(nil)
	_ usecase.Snapshotter = (*LazyClient)(nil)
)

// NewLazyClient creates a client for network without connecting
func NewLazyClient(network *domain.Network, log *slog.Logger) *LazyClient {
	return &LazyClient{network: network, log: log, dial: Dial}
}

func (l *LazyClient) get(ctx context.Context) (*Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	c, err := l.dial(ctx, l.network, l.log)
	if err != nil {
		return nil, err
	}
	l.client = c
	return c, nil
}

// Close releases the connection if one was made
func (l *LazyClient) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
}

func (l *LazyClient) ChainID(ctx context.Context) (uint64, error) {
	c, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	return c.ChainID(ctx)
}

func (l *LazyClient) Deploy(ctx context.Context, from *domain.Account, initCode []byte) (*usecase.TxResult, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Deploy(ctx, from, initCode)
}

func (l *LazyClient) Transact(ctx context.Context, from *domain.Account, to common.Address, data []byte) (*usecase.TxResult, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Transact(ctx, from, to, data)
}

func (l *LazyClient) Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, from, to, data)
}

func (l *LazyClient) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.CodeAt(ctx, address)
}

func (l *LazyClient) StorageAt(ctx context.Context, address common.Address, slot common.Hash) (common.Hash, error) {
	c, err := l.get(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return c.StorageAt(ctx, address, slot)
}

func (l *LazyClient) Snapshot(ctx context.Context) (string, error) {
	c, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return c.Snapshot(ctx)
}

func (l *LazyClient) Revert(ctx context.Context, id string) error {
	c, err := l.get(ctx)
	if err != nil {
		return err
	}
	return c.Revert(ctx, id)
}
