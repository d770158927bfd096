package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// Mock coordinator parameters used on local networks
const (
	VRFCoordinatorMock = "VRFCoordinatorV2Mock"
	// VRFBaseFee is the flat LINK fee per request (0.1 LINK)
	VRFBaseFee = "100000000000000000"
	// VRFGasPriceLink is the LINK price per gas unit
	VRFGasPriceLink = "1000000000"
	// VRFFundAmount funds the created subscription (10 LINK)
	VRFFundAmount = "10000000000000000000"
)

// VRFResult describes the bootstrapped coordinator
type VRFResult struct {
	Coordinator    *models.Deployment
	SubscriptionID *big.Int
	Funded         *big.Int
	Outcome        domain.StepOutcome
	Transactions   int
}

// BootstrapVRF deploys a mock VRF coordinator on a local network, creates a
// subscription and funds it
type BootstrapVRF struct {
	artifacts ArtifactRepository
	store     DeploymentStore
	deployer  *contractDeployer
}

// NewBootstrapVRF creates a new BootstrapVRF use case
func NewBootstrapVRF(artifacts ArtifactRepository, store DeploymentStore, chain ChainClient, progress ProgressSink) *BootstrapVRF {
	if progress == nil {
		progress = NopProgress{}
	}
	return &BootstrapVRF{
		artifacts: artifacts,
		store:     store,
		deployer:  &contractDeployer{store: store, chain: chain, progress: progress},
	}
}

// Run bootstraps the coordinator under its contract name
func (uc *BootstrapVRF) Run(ctx context.Context, env *domain.Env) (*VRFResult, error) {
	result, err := uc.run(ctx, env, newArgScope(ctx, env, uc.store), VRFCoordinatorMock, VRFCoordinatorMock, domain.RoleDeployer)
	if err != nil {
		return nil, err
	}
	if result.Outcome != domain.StepReused {
		state := &models.StepState{
			Outputs:     map[string]string{"subscriptionId": result.SubscriptionID.String()},
			Address:     result.Coordinator.Address,
			CompletedAt: time.Now(),
		}
		if err := uc.store.SaveStepState(ctx, env.Network.Name, VRFCoordinatorMock, state); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (uc *BootstrapVRF) run(ctx context.Context, env *domain.Env, scope *argScope, name, contract, from string) (*VRFResult, error) {
	if env.Network.Live {
		return nil, fmt.Errorf("mock VRF coordinator cannot be deployed to live network %s", env.Network.Name)
	}

	artifact, err := uc.artifacts.GetArtifact(ctx, contract)
	if err != nil {
		return nil, err
	}
	out, err := uc.deployer.deploy(ctx, env, scope, deployRequest{
		Name:     name,
		Artifact: artifact,
		From:     from,
		Args:     []any{VRFBaseFee, VRFGasPriceLink},
	})
	if err != nil {
		return nil, err
	}

	result := &VRFResult{Coordinator: out.Deployment, Outcome: domain.StepDeployed}
	if out.Reused {
		state, err := uc.store.GetStepState(ctx, env.Network.Name, name)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if state != nil && state.Outputs["subscriptionId"] != "" && state.Address == out.Deployment.Address {
			if id, ok := new(big.Int).SetString(state.Outputs["subscriptionId"], 10); ok {
				result.SubscriptionID = id
				result.Outcome = domain.StepReused
				return result, nil
			}
		}
	} else {
		result.Transactions++
	}

	coordinatorABI, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}
	coordinator := common.HexToAddress(out.Deployment.Address)

	tx, err := uc.deployer.transact(ctx, env, from, coordinator, coordinatorABI, "createSubscription")
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	result.Transactions++

	subID, err := subscriptionID(tx, coordinator)
	if err != nil {
		return nil, err
	}
	result.SubscriptionID = subID

	fund := coordinatorABI.Methods["fundSubscription"]
	args, err := scope.resolveArgs(fund.Inputs, []any{subID, VRFFundAmount})
	if err != nil {
		return nil, fmt.Errorf("fundSubscription: %w", err)
	}
	if _, err := uc.deployer.transact(ctx, env, from, coordinator, coordinatorABI, "fundSubscription", args...); err != nil {
		return nil, fmt.Errorf("failed to fund subscription %s: %w", subID, err)
	}
	result.Transactions++
	result.Funded, _ = new(big.Int).SetString(VRFFundAmount, 10)

	return result, nil
}

// subscriptionID reads the id from the first coordinator log, whose first indexed
// topic carries it
func subscriptionID(tx *TxResult, coordinator common.Address) (*big.Int, error) {
	for _, log := range tx.Logs {
		if log.Address != coordinator || len(log.Topics) < 2 {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[1].Bytes()), nil
	}
	return nil, fmt.Errorf("createSubscription emitted no subscription id (tx %s)", tx.TxHash.Hex())
}
