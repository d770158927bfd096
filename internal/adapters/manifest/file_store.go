package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

const lockRetryDelay = 50 * time.Millisecond

// knownNetworks names manifest files the way the OpenZeppelin upgrades plugin does
var knownNetworks = map[uint64]string{
	1:        "mainnet",
	5:        "goerli",
	10:       "optimism",
	56:       "bsc",
	97:       "bsc-testnet",
	137:      "polygon",
	8453:     "base",
	42161:    "arbitrum-one",
	43113:    "avalanche-fuji",
	43114:    "avalanche",
	80001:    "polygon-mumbai",
	80002:    "polygon-amoy",
	11155111: "sepolia",
}

// FileName returns the manifest file name for a chain
func FileName(chainID uint64) string {
	if name, ok := knownNetworks[chainID]; ok {
		return name + ".json"
	}
	return fmt.Sprintf("unknown-%d.json", chainID)
}

// FileStore keeps one JSON manifest per chain under a directory, usually .openzeppelin/
type FileStore struct {
	dir string
	log *slog.Logger

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

var _ usecase.ManifestStore = (*FileStore)(nil)

// NewFileStore creates a manifest store rooted at dir
func NewFileStore(dir string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{
		dir:   dir,
		log:   log.With("component", "manifest"),
		locks: make(map[uint64]*sync.Mutex),
	}
}

func (s *FileStore) path(chainID uint64) string {
	return filepath.Join(s.dir, FileName(chainID))
}

// Read returns the manifest of a chain, or an empty one when none was written yet
func (s *FileStore) Read(ctx context.Context, chainID uint64) (*models.Manifest, error) {
	data, err := os.ReadFile(s.path(chainID))
	if errors.Is(err, os.ErrNotExist) {
		return models.NewManifest(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", s.path(chainID), err)
	}
	return m.Normalize(), nil
}

// Write replaces the manifest of a chain atomically
func (s *FileStore) Write(ctx context.Context, chainID uint64, manifest *models.Manifest) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(manifest.Normalize(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	path := s.path(chainID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	s.log.Debug("wrote manifest", "path", path, "impls", len(manifest.Impls), "proxies", len(manifest.Proxies))
	return nil
}

// Lock takes the in-process lock of the chain, then an exclusive file lock next to the
// manifest so concurrent processes cannot interleave read-modify-write cycles
func (s *FileStore) Lock(ctx context.Context, chainID uint64) (func() error, error) {
	mu := s.chainMutex(chainID)
	mu.Lock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	fl := flock.New(s.path(chainID) + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("failed to lock manifest for chain %d: %w", chainID, err)
	}

	var once sync.Once
	return func() error {
		var unlockErr error
		once.Do(func() {
			unlockErr = fl.Unlock()
			mu.Unlock()
		})
		return unlockErr
	}, nil
}

func (s *FileStore) chainMutex(chainID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[chainID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[chainID] = mu
	}
	return mu
}
