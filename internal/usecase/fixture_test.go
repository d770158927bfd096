package usecase_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

func TestFixture_RevertsToDeployedState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fixture := usecase.NewFixture(h.deploy, h.store, h.chain)
	params := usecase.DeployParams{Tags: []string{"Config"}}

	first, err := fixture.Load(ctx, h.env, params)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Deployed)
	deployedTxs := h.chain.txCount()

	_, err = h.registry.Set(ctx, h.env, usecase.ConfigSetParams{Kind: domain.ConfigUint256, Key: "fee", Value: "5"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		again, err := fixture.Load(ctx, h.env, params)
		require.NoError(t, err)
		assert.Equal(t, 0, again.Deployed)

		fee, err := h.registry.Get(ctx, h.env, usecase.ConfigGetParams{Kind: domain.ConfigUint256, Key: "fee"})
		require.NoError(t, err)
		assert.Equal(t, "0", fee.Value)

		// the fixture state is reusable after further writes
		_, err = h.registry.Set(ctx, h.env, usecase.ConfigSetParams{Kind: domain.ConfigUint256, Key: "fee", Value: "7"})
		require.NoError(t, err)
	}
	assert.Equal(t, deployedTxs+3, h.chain.txCount())
}

func TestFixture_TagSetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fixture := usecase.NewFixture(h.deploy, h.store, h.chain)

	_, err := fixture.Load(ctx, h.env, usecase.DeployParams{Tags: []string{"Config"}})
	require.NoError(t, err)

	kiki, err := fixture.Load(ctx, h.env, usecase.DeployParams{Tags: []string{"Kiki"}})
	require.NoError(t, err)
	assert.Equal(t, 1, kiki.Deployed)
}

func TestFixture_RestoresDeploymentRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fixture := usecase.NewFixture(h.deploy, h.store, h.chain)
	network := h.env.Network.Name

	_, err := fixture.Load(ctx, h.env, usecase.DeployParams{Tags: []string{"Config"}})
	require.NoError(t, err)
	config := h.address(t, "Config")

	_, err = fixture.Load(ctx, h.env, usecase.DeployParams{Tags: []string{"Kiki"}})
	require.NoError(t, err)
	kiki := h.address(t, "Kiki")

	_, err = fixture.Load(ctx, h.env, usecase.DeployParams{Tags: []string{"Config"}})
	require.NoError(t, err)

	code, err := h.chain.CodeAt(ctx, common.HexToAddress(kiki))
	require.NoError(t, err)
	assert.Empty(t, code)
	_, err = h.store.GetDeployment(ctx, network, "Kiki")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.store.GetStepState(ctx, network, "Kiki")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, config, h.address(t, "Config"))

	// the Kiki snapshot was taken after the Config one, so it is redeployed on top of Config
	again, err := fixture.Load(ctx, h.env, usecase.DeployParams{Tags: []string{"Kiki"}})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Deployed)
	assert.Equal(t, config, h.address(t, "Config"))
	code, err = h.chain.CodeAt(ctx, common.HexToAddress(h.address(t, "Kiki")))
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}
