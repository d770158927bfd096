package deployments

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// MemoryRepository keeps deployment records in memory. Fixtures and tests use it to
// avoid touching the project's deployments folder.
type MemoryRepository struct {
	mu          sync.RWMutex
	chainIDs    map[string]uint64
	deployments map[string]map[string]*models.Deployment
	steps       map[string]map[string]*models.StepState
}

var _ usecase.DeploymentStore = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		chainIDs:    make(map[string]uint64),
		deployments: make(map[string]map[string]*models.Deployment),
		steps:       make(map[string]map[string]*models.StepState),
	}
}

func (m *MemoryRepository) GetDeployment(ctx context.Context, network, name string) (*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deployments[network][name]
	if !ok {
		return nil, fmt.Errorf("deployment %s on %s: %w", name, network, domain.ErrNotFound)
	}
	return cloneDeployment(d)
}

func (m *MemoryRepository) ListDeployments(ctx context.Context, network string) ([]*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Deployment, 0, len(m.deployments[network]))
	for _, d := range m.deployments[network] {
		c, err := cloneDeployment(d)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MemoryRepository) SaveDeployment(ctx context.Context, network string, chainID uint64, deployment *models.Deployment) error {
	if deployment.Name == "" {
		return fmt.Errorf("deployment name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.chainIDs[network]; ok && existing != chainID {
		return fmt.Errorf("%w: deployments/%s belongs to chain %d, not %d", domain.ErrNetworkMismatch, network, existing, chainID)
	}
	m.chainIDs[network] = chainID

	c, err := cloneDeployment(deployment)
	if err != nil {
		return err
	}
	if m.deployments[network] == nil {
		m.deployments[network] = make(map[string]*models.Deployment)
	}
	m.deployments[network][deployment.Name] = c
	return nil
}

func (m *MemoryRepository) Reset(ctx context.Context, network string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deployments, network)
	delete(m.steps, network)
	delete(m.chainIDs, network)
	return nil
}

func (m *MemoryRepository) GetStepState(ctx context.Context, network, step string) (*models.StepState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.steps[network][step]
	if !ok {
		return nil, fmt.Errorf("step %s on %s: %w", step, network, domain.ErrNotFound)
	}
	c := *s
	return &c, nil
}

func (m *MemoryRepository) SaveStepState(ctx context.Context, network, step string, state *models.StepState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.steps[network] == nil {
		m.steps[network] = make(map[string]*models.StepState)
	}
	c := *state
	m.steps[network][step] = &c
	return nil
}

func (m *MemoryRepository) ListStepStates(ctx context.Context, network string) (map[string]*models.StepState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]*models.StepState, len(m.steps[network]))
	for step, s := range m.steps[network] {
		c := *s
		result[step] = &c
	}
	return result, nil
}

// cloneDeployment round-trips through JSON so callers never share records with the store
func cloneDeployment(d *models.Deployment) (*models.Deployment, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var c models.Deployment
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.Name = d.Name
	return &c, nil
}
