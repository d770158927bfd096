package usecase_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

func demoParams(contract string) usecase.ProxyParams {
	return usecase.ProxyParams{Name: "Demo", Contract: contract}
}

func manifestJSON(t *testing.T, h *harness, chainID uint64) string {
	t.Helper()
	m, err := h.manifests.Read(context.Background(), chainID)
	require.NoError(t, err)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return string(data)
}

func TestDeployProxy_FirstDeployment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	params := demoParams("DemoV1")
	params.Method = "initialize"
	params.Args = []any{"10"}

	result, err := h.proxies.Run(ctx, h.env, params)
	require.NoError(t, err)
	assert.Equal(t, domain.StepDeployed, result.Outcome)
	assert.Equal(t, 2, result.Transactions)
	assert.True(t, result.ManifestSaved)

	proxy := h.chain.contract(result.Deployment.Address)
	require.NotNil(t, proxy)
	assert.Equal(t, usecase.ProxyContract, proxy.name)
	assert.Equal(t, result.Implementation.Address, proxy.impl.Hex())
	assert.Equal(t, adminAddress, proxy.admin)

	// the named record exposes the implementation ABI at the proxy address
	assert.Equal(t, "DemoV1", result.Deployment.ContractName)
	assert.Equal(t, models.ProxyDeployment, result.Deployment.Type)
	require.NotNil(t, result.Deployment.ProxyInfo)
	assert.Len(t, result.Deployment.ProxyInfo.History, 1)

	m, err := h.manifests.Read(ctx, 31337)
	require.NoError(t, err)
	impl, ok := m.Impls[result.Version.LinkedWithoutMetadata]
	require.True(t, ok)
	assert.Equal(t, result.Implementation.Address, impl.Address)
	assert.Equal(t, "old", impl.Layout.Storage[0].Label)
	require.Len(t, m.Proxies, 1)
	assert.Equal(t, result.Deployment.Address, m.Proxies[0].Address)
	assert.Equal(t, models.ProxyKindTransparent, m.Proxies[0].Kind)
}

func TestDeployProxy_UnsafeUpgradeLeavesEverythingUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)
	before := manifestJSON(t, h, 31337)
	txs := h.chain.txCount()

	_, err = h.proxies.Run(ctx, h.env, demoParams("DemoV2Removed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsafeUpgrade)
	assert.Contains(t, err.Error(), "deleted: name")

	assert.Equal(t, before, manifestJSON(t, h, 31337))
	assert.Equal(t, txs, h.chain.txCount())

	dep, err := h.store.GetDeployment(ctx, "localhost", "Demo")
	require.NoError(t, err)
	assert.Equal(t, "DemoV1", dep.ContractName)
}

func TestDeployProxy_SafeUpgrade(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	v1, err := h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)

	v2, err := h.proxies.Run(ctx, h.env, demoParams("DemoV2"))
	require.NoError(t, err)
	assert.Equal(t, domain.StepUpgraded, v2.Outcome)
	// new implementation plus upgradeTo
	assert.Equal(t, 2, v2.Transactions)
	assert.Equal(t, v1.Deployment.Address, v2.Deployment.Address)
	assert.NotEqual(t, v1.Implementation.Address, v2.Implementation.Address)

	proxy := h.chain.contract(v2.Deployment.Address)
	assert.Equal(t, v2.Implementation.Address, proxy.impl.Hex())

	m, err := h.manifests.Read(ctx, 31337)
	require.NoError(t, err)
	assert.Len(t, m.Impls, 2)
	assert.Len(t, m.Proxies, 1)

	dep, err := h.store.GetDeployment(ctx, "localhost", "Demo")
	require.NoError(t, err)
	assert.Equal(t, "DemoV2", dep.ContractName)
	require.Len(t, dep.ProxyInfo.History, 2)
	assert.True(t, strings.EqualFold(v2.Implementation.Address, dep.ProxyInfo.Implementation))

	t.Run("rerun is a no-op", func(t *testing.T) {
		txs := h.chain.txCount()
		again, err := h.proxies.Run(ctx, h.env, demoParams("DemoV2"))
		require.NoError(t, err)
		assert.Equal(t, domain.StepReused, again.Outcome)
		assert.Equal(t, 0, again.Transactions)
		assert.Equal(t, txs, h.chain.txCount())
	})
}

func TestDeployProxy_UpgradeRequiresProxyAdmin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)
	before := manifestJSON(t, h, 31337)

	params := demoParams("DemoV2")
	params.Owner = domain.RoleDeployer
	_, err = h.proxies.Run(ctx, h.env, params)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReverted)
	assert.Contains(t, err.Error(), "upgradeTo")
	assert.Equal(t, before, manifestJSON(t, h, 31337))
}

func TestDeployProxy_RejectsUnsafeImplementation(t *testing.T) {
	h := newHarness(t)

	_, err := h.proxies.Run(context.Background(), h.env, demoParams("DemoKillable"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsafeImplementation)
	assert.Equal(t, 0, h.chain.txCount())

	params := demoParams("DemoKillable")
	params.UnsafeAllow = []string{"selfdestruct"}
	_, err = h.proxies.Run(context.Background(), h.env, params)
	assert.NoError(t, err)
}

func TestDeployProxy_MissingLayout(t *testing.T) {
	h := newHarness(t)

	// plain contracts carry no storage layout
	_, err := h.proxies.Run(context.Background(), h.env, demoParams("DemoNoLayout"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingLayout)
}

func TestDeployProxy_ForkDoesNotWriteManifest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.env.Fork = "sepolia"
	h.env.ForkChainID = 11155111

	result, err := h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)
	assert.False(t, result.ManifestSaved)

	for _, chainID := range []uint64{31337, 11155111} {
		m, err := h.manifests.Read(ctx, chainID)
		require.NoError(t, err)
		assert.Empty(t, m.Impls)
	}
}

func TestDeployProxy_Validate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	version, err := h.proxies.Validate(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)
	assert.NotEmpty(t, version.WithMetadata)

	_, err = h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)
	txs := h.chain.txCount()

	_, err = h.proxies.Validate(ctx, h.env, demoParams("DemoV2Removed"))
	assert.ErrorIs(t, err, domain.ErrUnsafeUpgrade)
	_, err = h.proxies.Validate(ctx, h.env, demoParams("DemoV2"))
	assert.NoError(t, err)
	assert.Equal(t, txs, h.chain.txCount())
}

func TestDeployProxy_Compare(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tests := []struct {
		name     string
		original string
		updated  string
		wantErr  error
	}{
		{name: "append", original: "DemoV1", updated: "DemoV2"},
		{name: "remove", original: "DemoV1", updated: "DemoV2Removed", wantErr: domain.ErrUnsafeUpgrade},
		{name: "original without layout", original: "DemoNoLayout", updated: "DemoV2", wantErr: domain.ErrMissingLayout},
		{name: "unsafe implementation", original: "DemoV1", updated: "DemoKillable", wantErr: domain.ErrUnsafeImplementation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.proxies.Compare(ctx, tt.original, tt.updated, nil)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, h.chain.txCount())
}

func TestShowDeployment_ResolvesProxy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	result, err := h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)

	uc := usecase.NewShowDeployment(h.store, h.chain, nil)
	details, err := uc.Run(ctx, h.env, usecase.ShowDeploymentParams{Name: "Demo", ResolveProxy: true})
	require.NoError(t, err)
	require.NotNil(t, details.Implementation)
	assert.Equal(t, result.Implementation.Address, details.Implementation.Address)
	assert.Equal(t, result.Implementation.Address, details.LiveImplementation)
	assert.False(t, details.Drift)

	_, err = uc.Run(ctx, h.env, usecase.ShowDeploymentParams{Name: "Nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListDeployments_HidesProxyParts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)
	_, err = h.deploy.Run(ctx, h.env, usecase.DeployParams{Tags: []string{"Config"}})
	require.NoError(t, err)

	uc := usecase.NewListDeployments(h.store, nil)

	result, err := uc.Run(ctx, h.env, usecase.ListDeploymentsParams{})
	require.NoError(t, err)
	var names []string
	for _, d := range result.Deployments {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Config", "Demo"}, names)
	assert.Equal(t, 1, result.Summary.ByType[models.ProxyDeployment])

	all, err := uc.Run(ctx, h.env, usecase.ListDeploymentsParams{IncludeProxyParts: true})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Summary.Total)

	proxies, err := uc.Run(ctx, h.env, usecase.ListDeploymentsParams{Type: models.ProxyDeployment, IncludeProxyParts: true})
	require.NoError(t, err)
	assert.Len(t, proxies.Deployments, 2)
}

func TestShowManifest_UsesForkChain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.proxies.Run(ctx, h.env, demoParams("DemoV1"))
	require.NoError(t, err)

	uc := usecase.NewShowManifest(h.manifests)
	local, err := uc.Run(ctx, h.env)
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), local.ChainID)
	assert.Len(t, local.Manifest.Impls, 1)

	h.env.Fork = "sepolia"
	h.env.ForkChainID = 11155111
	forked, err := uc.Run(ctx, h.env)
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), forked.ChainID)
	assert.Empty(t, forked.Manifest.Impls)
}
