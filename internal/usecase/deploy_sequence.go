package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// DeployParams contains parameters for running a deployment plan
type DeployParams struct {
	// PlanPath is the plan file; empty selects the built-in plan
	PlanPath string
	// Tags selects steps by tag or name, plus their dependencies. Empty runs every step.
	Tags []string
	// Reset discards the network's deployment records before running
	Reset bool
	// Yes skips the reset confirmation
	Yes bool
}

// StepResult reports what happened to a single plan step
type StepResult struct {
	Name         string
	Contract     string
	Outcome      domain.StepOutcome
	Address      string
	Transactions int
	Error        error
}

// DeployResult contains the outcome of a plan run
type DeployResult struct {
	Network      string
	ChainID      uint64
	Steps        []*StepResult
	Deployed     int
	Transactions int
}

// DeploySequence runs a deployment plan in dependency order. Steps whose inputs are
// unchanged since their last successful run are skipped, so running twice is a no-op.
type DeploySequence struct {
	plans     PlanLoader
	artifacts ArtifactRepository
	store     DeploymentStore
	chain     ChainClient
	proxies   *DeployProxy
	vrf       *BootstrapVRF
	confirmer Confirmer
	deployer  *contractDeployer
	progress  ProgressSink
}

// NewDeploySequence creates a new DeploySequence use case
func NewDeploySequence(
	plans PlanLoader,
	artifacts ArtifactRepository,
	store DeploymentStore,
	chain ChainClient,
	proxies *DeployProxy,
	vrf *BootstrapVRF,
	confirmer Confirmer,
	progress ProgressSink,
) *DeploySequence {
	if progress == nil {
		progress = NopProgress{}
	}
	return &DeploySequence{
		plans:     plans,
		artifacts: artifacts,
		store:     store,
		chain:     chain,
		proxies:   proxies,
		vrf:       vrf,
		confirmer: confirmer,
		deployer:  &contractDeployer{store: store, chain: chain, progress: progress},
		progress:  progress,
	}
}

// Plan loads the plan and returns the selected steps in execution order
func (uc *DeploySequence) Plan(ctx context.Context, params DeployParams) ([]*domain.Step, error) {
	plan, err := uc.plans.LoadPlan(ctx, params.PlanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if err := ValidatePlan(plan); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	selected, err := SelectSteps(plan, params.Tags)
	if err != nil {
		return nil, err
	}
	return NewDependencyGraph(selected).TopologicalSort()
}

// Run executes the plan against env
func (uc *DeploySequence) Run(ctx context.Context, env *domain.Env, params DeployParams) (*DeployResult, error) {
	steps, err := uc.Plan(ctx, params)
	if err != nil {
		return nil, err
	}

	if params.Reset {
		if !params.Yes {
			ok, err := uc.confirmer.Confirm(ctx, fmt.Sprintf("Discard all deployment records for network %s?", env.Network.Name))
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("reset cancelled")
			}
		}
		if err := uc.store.Reset(ctx, env.Network.Name); err != nil {
			return nil, fmt.Errorf("failed to reset deployments: %w", err)
		}
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   StagePlan,
		Total:   len(steps),
		Message: fmt.Sprintf("deploying %d steps to %s", len(steps), env.Network.Name),
	})

	result := &DeployResult{Network: env.Network.Name, ChainID: env.Network.ChainID}
	scope := newArgScope(ctx, env, uc.store)

	for i, step := range steps {
		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:   StageStep,
			Current: i + 1,
			Total:   len(steps),
			Message: step.Name,
			Spinner: true,
		})

		sr, err := uc.runStep(ctx, env, scope, step)
		if err != nil {
			sr.Outcome = domain.StepFailed
			sr.Error = err
		}
		result.Steps = append(result.Steps, sr)
		result.Transactions += sr.Transactions
		if sr.Outcome == domain.StepDeployed || sr.Outcome == domain.StepUpgraded {
			result.Deployed++
		}

		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:    StageStepDone,
			Current:  i + 1,
			Total:    len(steps),
			Message:  step.Name,
			Metadata: sr,
		})

		if err != nil {
			return result, fmt.Errorf("step %s failed: %w", step.Name, err)
		}
	}

	uc.progress.OnProgress(ctx, ProgressEvent{Stage: StageCompleted, Total: len(steps)})
	return result, nil
}

func (uc *DeploySequence) runStep(ctx context.Context, env *domain.Env, scope *argScope, step *domain.Step) (*StepResult, error) {
	sr := &StepResult{Name: step.Name, Contract: step.ContractName()}

	if step.DevOnly && env.Network.Live {
		sr.Outcome = domain.StepSkipped
		return sr, nil
	}

	fingerprint, err := uc.fingerprint(ctx, env, step)
	if err != nil {
		return sr, err
	}
	if done, address, err := uc.completed(ctx, env, step, fingerprint); err != nil {
		return sr, err
	} else if done {
		sr.Outcome = domain.StepSkipped
		sr.Address = address
		return sr, nil
	}

	var (
		deployment *models.Deployment
		outputs    map[string]string
	)
	switch {
	case step.Kind == domain.StepKindVRFMock:
		vrf, err := uc.vrf.run(ctx, env, scope, step.Name, step.ContractName(), step.Sender())
		if err != nil {
			return sr, err
		}
		deployment = vrf.Coordinator
		sr.Outcome = vrf.Outcome
		sr.Transactions += vrf.Transactions
		outputs = map[string]string{"subscriptionId": vrf.SubscriptionID.String()}

	case step.Proxy != nil:
		pr, err := uc.proxies.run(ctx, env, scope, ProxyParams{
			Name:        step.Name,
			Contract:    step.ContractName(),
			From:        step.Sender(),
			Owner:       step.Proxy.Owner,
			Method:      step.Proxy.Method,
			Args:        step.Proxy.Args,
			UnsafeAllow: step.Proxy.UnsafeAllow,
		})
		if err != nil {
			return sr, err
		}
		deployment = pr.Deployment
		sr.Outcome = pr.Outcome
		sr.Transactions += pr.Transactions

	default:
		artifact, err := uc.artifacts.GetArtifact(ctx, step.ContractName())
		if err != nil {
			return sr, err
		}
		out, err := uc.deployer.deploy(ctx, env, scope, deployRequest{
			Name:     step.Name,
			Artifact: artifact,
			From:     step.Sender(),
			Args:     step.Args,
		})
		if err != nil {
			return sr, err
		}
		deployment = out.Deployment
		if out.Reused {
			sr.Outcome = domain.StepReused
		} else {
			sr.Outcome = domain.StepDeployed
			sr.Transactions++
		}
	}
	sr.Address = deployment.Address

	for _, call := range step.Calls {
		if _, err := uc.deployer.runCall(ctx, env, scope, deployment, call); err != nil {
			return sr, err
		}
		sr.Transactions++
	}

	state := &models.StepState{
		Outputs:     outputs,
		Fingerprint: fingerprint,
		Address:     deployment.Address,
		CompletedAt: time.Now(),
	}
	if err := uc.store.SaveStepState(ctx, env.Network.Name, step.Name, state); err != nil {
		return sr, fmt.Errorf("failed to save step state: %w", err)
	}
	return sr, nil
}

// fingerprint hashes everything a step's effect depends on: its declaration, the
// bytecode it deploys and the addresses of its dependencies
func (uc *DeploySequence) fingerprint(ctx context.Context, env *domain.Env, step *domain.Step) (string, error) {
	artifact, err := uc.artifacts.GetArtifact(ctx, step.ContractName())
	if err != nil {
		return "", err
	}
	deps := make(map[string]string, len(step.Deps))
	for _, dep := range step.Deps {
		d, err := uc.store.GetDeployment(ctx, env.Network.Name, dep)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			deps[dep] = ""
		case err != nil:
			return "", err
		default:
			deps[dep] = d.Address
		}
	}

	payload, err := json.Marshal(struct {
		Step     *domain.Step      `json:"step"`
		Bytecode string            `json:"bytecode"`
		Deps     map[string]string `json:"deps"`
	}{
		Step:     step,
		Bytecode: crypto.Keccak256Hash([]byte(artifact.Bytecode)).Hex(),
		Deps:     deps,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint step %s: %w", step.Name, err)
	}
	return crypto.Keccak256Hash(payload).Hex(), nil
}

// completed reports whether the step already ran with the same fingerprint and its
// contract is still live on chain
func (uc *DeploySequence) completed(ctx context.Context, env *domain.Env, step *domain.Step, fingerprint string) (bool, string, error) {
	state, err := uc.store.GetStepState(ctx, env.Network.Name, step.Name)
	if errors.Is(err, domain.ErrNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if state.Fingerprint != fingerprint {
		return false, "", nil
	}
	if _, err := uc.store.GetDeployment(ctx, env.Network.Name, step.Name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, "", nil
		}
		return false, "", err
	}
	code, err := uc.chain.CodeAt(ctx, common.HexToAddress(state.Address))
	if err != nil {
		return false, "", err
	}
	return len(code) > 0, state.Address, nil
}
