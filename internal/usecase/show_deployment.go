package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// ShowDeploymentParams contains parameters for showing a deployment
type ShowDeploymentParams struct {
	Name string
	// ResolveProxy reads the live implementation address of proxied deployments
	ResolveProxy bool
}

// DeploymentDetails is a deployment record with its proxy internals
type DeploymentDetails struct {
	Deployment     *models.Deployment
	Implementation *models.Deployment
	// LiveImplementation is the implementation read from the proxy's EIP-1967 slot
	LiveImplementation string
	// Drift is set when the live implementation differs from the recorded one
	Drift bool
}

// ShowDeployment is the use case for showing deployment details
type ShowDeployment struct {
	store DeploymentStore
	chain ChainClient
	sink  ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(store DeploymentStore, chain ChainClient, sink ProgressSink) *ShowDeployment {
	if sink == nil {
		sink = NopProgress{}
	}
	return &ShowDeployment{
		store: store,
		chain: chain,
		sink:  sink,
	}
}

// Run executes the show deployment use case
func (uc *ShowDeployment) Run(ctx context.Context, env *domain.Env, params ShowDeploymentParams) (*DeploymentDetails, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("deployment name is required")
	}
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment details",
		Spinner: true,
	})

	deployment, err := uc.store.GetDeployment(ctx, env.Network.Name, params.Name)
	if err != nil {
		return nil, err
	}
	details := &DeploymentDetails{Deployment: deployment}

	if deployment.Type != models.ProxyDeployment || deployment.ProxyInfo == nil || deployment.IsProxyPart() {
		return details, nil
	}

	// The implementation might not be tracked, which is fine
	if impl, err := uc.store.GetDeployment(ctx, env.Network.Name, params.Name+models.ImplementationSuffix); err == nil {
		details.Implementation = impl
	}

	if params.ResolveProxy {
		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:   "resolving",
			Message: "Resolving proxy implementation",
			Spinner: true,
		})
		slot, err := uc.chain.StorageAt(ctx, common.HexToAddress(deployment.Address), ImplementationSlot)
		if err != nil {
			return nil, fmt.Errorf("failed to read implementation slot: %w", err)
		}
		details.LiveImplementation = common.BytesToAddress(slot.Bytes()).Hex()
		details.Drift = !strings.EqualFold(details.LiveImplementation, deployment.ProxyInfo.Implementation)
	}

	return details, nil
}
