package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

func TestBootstrapVRF(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	result, err := h.vrf.Run(ctx, h.env)
	require.NoError(t, err)
	assert.Equal(t, domain.StepDeployed, result.Outcome)
	assert.Equal(t, "1", result.SubscriptionID.String())
	assert.Equal(t, 3, result.Transactions)

	assert.Equal(t, usecase.VRFFundAmount, result.Funded.String())

	coordinator := h.chain.contract(result.Coordinator.Address)
	require.NotNil(t, coordinator)
	assert.Equal(t, uint64(1), coordinator.subs)
	require.Contains(t, coordinator.funded, uint64(1))
	assert.Equal(t, usecase.VRFFundAmount, coordinator.funded[1].String())
	assert.Equal(t, []any{usecase.VRFBaseFee, usecase.VRFGasPriceLink}, result.Coordinator.Args)

	t.Run("second run reuses the subscription", func(t *testing.T) {
		txs := h.chain.txCount()
		again, err := h.vrf.Run(ctx, h.env)
		require.NoError(t, err)
		assert.Equal(t, domain.StepReused, again.Outcome)
		assert.Equal(t, "1", again.SubscriptionID.String())
		assert.Equal(t, txs, h.chain.txCount())
	})
}

func TestBootstrapVRF_RefusesLiveNetworks(t *testing.T) {
	h := newHarness(t)
	h.env.Network.Live = true

	_, err := h.vrf.Run(context.Background(), h.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live network")
	assert.Equal(t, 0, h.chain.txCount())
}
