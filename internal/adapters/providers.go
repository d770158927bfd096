package adapters

import (
	"fmt"
	"log/slog"

	"github.com/google/wire"

	"github.com/kikiverse/kiki-deploy/internal/adapters/anvil"
	"github.com/kikiverse/kiki-deploy/internal/adapters/artifacts"
	"github.com/kikiverse/kiki-deploy/internal/adapters/blockchain"
	"github.com/kikiverse/kiki-deploy/internal/adapters/interactive"
	"github.com/kikiverse/kiki-deploy/internal/adapters/manifest"
	"github.com/kikiverse/kiki-deploy/internal/adapters/plan"
	"github.com/kikiverse/kiki-deploy/internal/adapters/repository/deployments"
	"github.com/kikiverse/kiki-deploy/internal/adapters/upgrades"
	"github.com/kikiverse/kiki-deploy/internal/domain/config"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// ProvideArtifactRepository indexes the configured build directories
func ProvideArtifactRepository(cfg *config.RuntimeConfig, log *slog.Logger) *artifacts.Repository {
	return artifacts.NewRepository(cfg.Paths.Artifacts, log)
}

// ProvideDeploymentStore provides the deployments folder repository
func ProvideDeploymentStore(cfg *config.RuntimeConfig) *deployments.FileRepository {
	return deployments.NewFileRepository(cfg.Paths.Deployments)
}

// ProvideManifestStore selects the manifest backend configured under [manifest]
func ProvideManifestStore(cfg *config.RuntimeConfig, log *slog.Logger) (usecase.ManifestStore, error) {
	switch cfg.Manifest.Backend {
	case "", config.ManifestBackendFile:
		return manifest.NewFileStore(cfg.Paths.Manifests, log), nil
	case config.ManifestBackendSQLite:
		return manifest.NewSQLStore(cfg.Manifest.DSN, log)
	case config.ManifestBackendMemory:
		return manifest.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown manifest backend %q, expected %s, %s or %s",
			cfg.Manifest.Backend, config.ManifestBackendFile, config.ManifestBackendSQLite, config.ManifestBackendMemory)
	}
}

// ProvideChainClient provides a client for the selected network. It connects on first use.
func ProvideChainClient(cfg *config.RuntimeConfig, log *slog.Logger) *blockchain.LazyClient {
	return blockchain.NewLazyClient(cfg.Network, log)
}

// StorageSet provides the deployment record and manifest stores
var StorageSet = wire.NewSet(
	ProvideDeploymentStore,
	wire.Bind(new(usecase.DeploymentStore), new(*deployments.FileRepository)),

	ProvideManifestStore,
)

// ArtifactSet provides compiled contract access and upgrade safety checks
var ArtifactSet = wire.NewSet(
	ProvideArtifactRepository,
	wire.Bind(new(usecase.ArtifactRepository), new(*artifacts.Repository)),

	upgrades.NewValidator,
	wire.Bind(new(usecase.UpgradeValidator), new(*upgrades.Validator)),
)

// BlockchainSet provides JSON-RPC backed implementations
var BlockchainSet = wire.NewSet(
	ProvideChainClient,
	wire.Bind(new(usecase.ChainClient), new(*blockchain.LazyClient)),
	wire.Bind(new(usecase.Snapshotter), new(*blockchain.LazyClient)),
)

// PlanSet provides the deployment plan loader
var PlanSet = wire.NewSet(
	plan.NewLoader,
	wire.Bind(new(usecase.PlanLoader), new(*plan.Loader)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewConfirmer,
	wire.Bind(new(usecase.Confirmer), new(*interactive.Confirmer)),
)

// AnvilSet provides local node management
var AnvilSet = wire.NewSet(
	anvil.NewManager,
	wire.Bind(new(usecase.AnvilManager), new(*anvil.Manager)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	StorageSet,
	ArtifactSet,
	BlockchainSet,
	PlanSet,
	InteractiveSet,
	AnvilSet,
)
