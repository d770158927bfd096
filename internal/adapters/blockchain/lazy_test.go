package blockchain

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiverse/kiki-deploy/internal/domain"
)

func TestLazyClient_DialsOnFirstUse(t *testing.T) {
	node := newFakeNode(31337)
	server := httptest.NewServer(node)
	defer server.Close()

	network := &domain.Network{Name: "localhost", RPCURL: server.URL}
	client := NewLazyClient(network, nil)
	defer client.Close()

	assert.Zero(t, node.calls("eth_chainId"))

	_, err := client.CodeAt(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	_, err = client.StorageAt(context.Background(), common.HexToAddress("0x01"), common.Hash{})
	require.NoError(t, err)

	// one dial, one verification
	assert.Equal(t, 1, node.calls("eth_chainId"))
	assert.Equal(t, uint64(31337), network.ChainID)
}

func TestLazyClient_RetriesFailedDial(t *testing.T) {
	node := newFakeNode(31337)
	server := httptest.NewServer(node)
	defer server.Close()

	network := &domain.Network{Name: "localhost", RPCURL: server.URL, ChainID: 1}
	client := NewLazyClient(network, nil)
	defer client.Close()

	_, err := client.ChainID(context.Background())
	require.ErrorIs(t, err, domain.ErrNetworkMismatch)

	network.ChainID = 31337
	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), id)
}
