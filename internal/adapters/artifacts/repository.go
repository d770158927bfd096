package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

const maxSuggestions = 3

// Repository indexes compiled contracts from Foundry (out/) and Hardhat (artifacts/)
// build folders. The index is built lazily on first use.
type Repository struct {
	dirs []string
	log  *slog.Logger

	mu        sync.RWMutex
	indexed   bool
	artifacts map[string]*models.Artifact // key: contract name
}

var _ usecase.ArtifactRepository = (*Repository)(nil)

// NewRepository creates an artifact repository over the given build directories
func NewRepository(dirs []string, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.Default()
	}
	return &Repository{
		dirs:      dirs,
		log:       log.With("component", "artifacts"),
		artifacts: make(map[string]*models.Artifact),
	}
}

// Index walks every build directory. Directories that do not exist are skipped.
func (r *Repository) Index() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexed {
		return nil
	}
	r.artifacts = make(map[string]*models.Artifact)

	for _, dir := range r.dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "build-info" {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".json" || strings.HasSuffix(path, ".dbg.json") {
				return nil
			}
			return r.processArtifact(path)
		})
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", dir, err)
		}
	}

	r.indexed = true
	return nil
}

// processArtifact reads a single artifact file. Files that are not contract artifacts are skipped.
func (r *Repository) processArtifact(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil || len(raw.ABI) == 0 {
		return nil
	}

	name := raw.ContractName
	source := raw.SourceName
	if name == "" {
		// Foundry names the file after the contract
		name = strings.TrimSuffix(filepath.Base(path), ".json")
		source = raw.compilationTarget(name)
	}

	artifact := &models.Artifact{
		Name:             name,
		SourceName:       source,
		Path:             path,
		ABI:              raw.ABI,
		Bytecode:         raw.Bytecode.Object,
		DeployedBytecode: raw.DeployedBytecode.Object,
		StorageLayout:    raw.StorageLayout,
		CompilerVersion:  raw.compilerVersion(),
	}
	if artifact.StorageLayout == nil {
		artifact.StorageLayout = r.hardhatStorageLayout(path, source, name)
	}

	if existing, ok := r.artifacts[name]; ok {
		r.log.Debug("duplicate artifact name, keeping first", "name", name, "kept", existing.Path, "skipped", path)
		return nil
	}
	r.artifacts[name] = artifact
	r.log.Debug("indexed artifact", "name", name, "path", path, "layout", artifact.StorageLayout != nil)
	return nil
}

// hardhatStorageLayout follows the .dbg.json pointer to the build-info file holding the
// full compiler output
func (r *Repository) hardhatStorageLayout(path, source, name string) *models.StorageLayout {
	dbgPath := strings.TrimSuffix(path, ".json") + ".dbg.json"
	var dbg struct {
		BuildInfo string `json:"buildInfo"`
	}
	if err := readJSON(dbgPath, &dbg); err != nil || dbg.BuildInfo == "" {
		return nil
	}

	var buildInfo struct {
		Output struct {
			Contracts map[string]map[string]struct {
				StorageLayout *models.StorageLayout `json:"storageLayout"`
			} `json:"contracts"`
		} `json:"output"`
	}
	if err := readJSON(filepath.Join(filepath.Dir(dbgPath), dbg.BuildInfo), &buildInfo); err != nil {
		r.log.Debug("unreadable build info", "path", dbg.BuildInfo, "error", err)
		return nil
	}
	return buildInfo.Output.Contracts[source][name].StorageLayout
}

// GetArtifact returns the artifact of a contract by name
func (r *Repository) GetArtifact(ctx context.Context, name string) (*models.Artifact, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if artifact, ok := r.artifacts[name]; ok {
		return artifact, nil
	}
	return nil, &domain.ArtifactNotFoundError{Name: name, Suggestions: r.suggest(name)}
}

// ListArtifacts returns the sorted names of every indexed contract
func (r *Repository) ListArtifacts(ctx context.Context) ([]string, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.artifacts))
	for name := range r.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Repository) suggest(name string) []string {
	names := make([]string, 0, len(r.artifacts))
	for n := range r.artifacts {
		names = append(names, n)
	}
	sort.Strings(names)

	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		// Retry case-insensitively, fuzzy matching is case sensitive on the pattern
		matches = fuzzy.Find(strings.ToLower(name), names)
	}
	var suggestions []string
	for _, m := range matches {
		suggestions = append(suggestions, m.Str)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
