package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

const (
	ChainIDFile = ".chainId"
	StepsFile   = ".steps.json"
)

// FileRepository stores deployment records as <dir>/<network>/<Name>.json,
// the layout hardhat-deploy uses, so existing deployment folders can be read as is
type FileRepository struct {
	rootDir string
	mu      sync.RWMutex
}

var _ usecase.DeploymentStore = (*FileRepository)(nil)

// NewFileRepository creates a repository over a deployments directory
func NewFileRepository(rootDir string) *FileRepository {
	return &FileRepository{rootDir: rootDir}
}

func (m *FileRepository) networkDir(network string) string {
	return filepath.Join(m.rootDir, network)
}

func (m *FileRepository) deploymentPath(network, name string) string {
	return filepath.Join(m.networkDir(network), name+".json")
}

// GetDeployment retrieves a deployment by name
func (m *FileRepository) GetDeployment(ctx context.Context, network, name string) (*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readDeployment(network, name)
}

func (m *FileRepository) readDeployment(network, name string) (*models.Deployment, error) {
	var d models.Deployment
	if err := loadFile(m.deploymentPath(network, name), &d); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("deployment %s on %s: %w", name, network, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read deployment %s: %w", name, err)
	}
	d.Name = name
	return &d, nil
}

// ListDeployments returns every deployment of the network, sorted by name
func (m *FileRepository) ListDeployments(ctx context.Context, network string) ([]*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.networkDir(network))
	if errors.Is(err, os.ErrNotExist) {
		return []*models.Deployment{}, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)

	result := make([]*models.Deployment, 0, len(names))
	for _, name := range names {
		d, err := m.readDeployment(network, name)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// SaveDeployment writes the record. The network folder is bound to the chain id of its
// first write; writing a different chain id fails.
func (m *FileRepository) SaveDeployment(ctx context.Context, network string, chainID uint64, deployment *models.Deployment) error {
	if deployment.Name == "" {
		return fmt.Errorf("deployment name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.networkDir(network)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := m.bindChainID(dir, network, chainID); err != nil {
		return err
	}

	if deployment.UpdatedAt.IsZero() {
		deployment.UpdatedAt = time.Now()
	}
	if deployment.CreatedAt.IsZero() {
		deployment.CreatedAt = deployment.UpdatedAt
	}
	return saveFile(m.deploymentPath(network, deployment.Name), deployment)
}

func (m *FileRepository) bindChainID(dir, network string, chainID uint64) error {
	path := filepath.Join(dir, ChainIDFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return os.WriteFile(path, []byte(strconv.FormatUint(chainID, 10)), 0644)
	}
	if err != nil {
		return err
	}
	existing, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s in %s: %w", ChainIDFile, dir, err)
	}
	if existing != chainID {
		return fmt.Errorf("%w: deployments/%s belongs to chain %d, not %d", domain.ErrNetworkMismatch, network, existing, chainID)
	}
	return nil
}

// Reset removes every record of the network
func (m *FileRepository) Reset(ctx context.Context, network string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return os.RemoveAll(m.networkDir(network))
}

// GetStepState returns the recorded state of a plan step
func (m *FileRepository) GetStepState(ctx context.Context, network, step string) (*models.StepState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps, err := m.loadSteps(network)
	if err != nil {
		return nil, err
	}
	state, ok := steps[step]
	if !ok {
		return nil, fmt.Errorf("step %s on %s: %w", step, network, domain.ErrNotFound)
	}
	return state, nil
}

// SaveStepState records the state of a plan step
func (m *FileRepository) SaveStepState(ctx context.Context, network, step string, state *models.StepState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	steps, err := m.loadSteps(network)
	if err != nil {
		return err
	}
	steps[step] = state

	if err := os.MkdirAll(m.networkDir(network), 0755); err != nil {
		return err
	}
	return saveFile(filepath.Join(m.networkDir(network), StepsFile), steps)
}

// ListStepStates returns the state of every recorded step of the network
func (m *FileRepository) ListStepStates(ctx context.Context, network string) (map[string]*models.StepState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadSteps(network)
}

func (m *FileRepository) loadSteps(network string) (map[string]*models.StepState, error) {
	steps := make(map[string]*models.StepState)
	err := loadFile(filepath.Join(m.networkDir(network), StepsFile), &steps)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read step state: %w", err)
	}
	return steps, nil
}

func loadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// saveFile writes through a temporary file so readers never see a partial record
func saveFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
