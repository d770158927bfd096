package manifest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// MemoryStore keeps manifests in memory
type MemoryStore struct {
	mu        sync.Mutex
	manifests map[uint64][]byte
	locks     map[uint64]*sync.Mutex
}

var _ usecase.ManifestStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory manifest store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		manifests: make(map[uint64][]byte),
		locks:     make(map[uint64]*sync.Mutex),
	}
}

// Read returns a copy of the stored manifest
func (s *MemoryStore) Read(ctx context.Context, chainID uint64) (*models.Manifest, error) {
	s.mu.Lock()
	data, ok := s.manifests[chainID]
	s.mu.Unlock()
	if !ok {
		return models.NewManifest(), nil
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m.Normalize(), nil
}

// Write stores a copy of manifest
func (s *MemoryStore) Write(ctx context.Context, chainID uint64, manifest *models.Manifest) error {
	data, err := json.Marshal(manifest.Normalize())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.manifests[chainID] = data
	s.mu.Unlock()
	return nil
}

// Lock serialises writers of a chain
func (s *MemoryStore) Lock(ctx context.Context, chainID uint64) (func() error, error) {
	s.mu.Lock()
	mu, ok := s.locks[chainID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[chainID] = mu
	}
	s.mu.Unlock()

	mu.Lock()
	var once sync.Once
	return func() error {
		once.Do(mu.Unlock)
		return nil
	}, nil
}
