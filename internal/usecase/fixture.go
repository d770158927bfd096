package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// Fixture deploys a tagged subset of the plan once, snapshots the node and hands
// every later caller the same fresh state by reverting to that snapshot. The network's
// deployment records and step state are captured with the snapshot and restored with it.
type Fixture struct {
	deploy   *DeploySequence
	store    DeploymentStore
	snapshot Snapshotter

	mu        sync.Mutex
	seq       int
	snapshots map[string]*fixtureState
}

type fixtureState struct {
	id      string
	seq     int
	records []*models.Deployment
	steps   map[string]*models.StepState
}

// NewFixture creates a new Fixture
func NewFixture(deploy *DeploySequence, store DeploymentStore, snapshot Snapshotter) *Fixture {
	return &Fixture{
		deploy:    deploy,
		store:     store,
		snapshot:  snapshot,
		snapshots: make(map[string]*fixtureState),
	}
}

// Load brings the node and the deployment records to the state right after deploying
// tags. The first load of a tag set runs the deployment, later loads revert to its snapshot.
func (f *Fixture) Load(ctx context.Context, env *domain.Env, params DeployParams) (*DeployResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := fixtureKey(env, params)
	if state, ok := f.snapshots[key]; ok {
		if err := f.restore(ctx, env, key, state); err != nil {
			return nil, err
		}
		if err := f.capture(ctx, env, key); err != nil {
			return nil, err
		}
		return &DeployResult{Network: env.Network.Name, ChainID: env.Network.ChainID}, nil
	}

	result, err := f.deploy.Run(ctx, env, params)
	if err != nil {
		return result, err
	}
	if err := f.capture(ctx, env, key); err != nil {
		return nil, err
	}
	return result, nil
}

func (f *Fixture) capture(ctx context.Context, env *domain.Env, key string) error {
	id, err := f.snapshot.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot fixture %s: %w", key, err)
	}
	records, err := f.store.ListDeployments(ctx, env.Network.Name)
	if err != nil {
		return fmt.Errorf("failed to capture deployments of fixture %s: %w", key, err)
	}
	steps, err := f.store.ListStepStates(ctx, env.Network.Name)
	if err != nil {
		return fmt.Errorf("failed to capture step state of fixture %s: %w", key, err)
	}
	f.seq++
	f.snapshots[key] = &fixtureState{id: id, seq: f.seq, records: records, steps: steps}
	return nil
}

func (f *Fixture) restore(ctx context.Context, env *domain.Env, key string, state *fixtureState) error {
	if err := f.snapshot.Revert(ctx, state.id); err != nil {
		return fmt.Errorf("failed to revert fixture %s: %w", key, err)
	}
	// Reverting discards every snapshot taken after this one
	for k, s := range f.snapshots {
		if s.seq >= state.seq {
			delete(f.snapshots, k)
		}
	}

	network := env.Network.Name
	if err := f.store.Reset(ctx, network); err != nil {
		return fmt.Errorf("failed to reset deployments of fixture %s: %w", key, err)
	}
	for _, record := range state.records {
		if err := f.store.SaveDeployment(ctx, network, env.Network.ChainID, record); err != nil {
			return fmt.Errorf("failed to restore %s for fixture %s: %w", record.Name, key, err)
		}
	}
	for step, s := range state.steps {
		if err := f.store.SaveStepState(ctx, network, step, s); err != nil {
			return fmt.Errorf("failed to restore step %s for fixture %s: %w", step, key, err)
		}
	}
	return nil
}

func fixtureKey(env *domain.Env, params DeployParams) string {
	tags := append([]string{}, params.Tags...)
	sort.Strings(tags)
	return fmt.Sprintf("%s:%s:%s", env.Network.Name, params.PlanPath, strings.Join(tags, ","))
}
