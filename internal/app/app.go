package app

import (
	"github.com/kikiverse/kiki-deploy/internal/domain/config"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig

	// Use cases
	DeploySequence    *usecase.DeploySequence
	DeployProxy       *usecase.DeployProxy
	ConfigRegistry    *usecase.ConfigRegistry
	BootstrapVRF      *usecase.BootstrapVRF
	Fixture           *usecase.Fixture
	ListDeployments   *usecase.ListDeployments
	ShowDeployment    *usecase.ShowDeployment
	ShowManifest      *usecase.ShowManifest
	CheckCapabilities *usecase.CheckCapabilities
	CheckAccess       *usecase.CheckAccess
	ManageAnvil       *usecase.ManageAnvil

	// Adapters (needed for special cases like log streaming)
	AnvilManager usecase.AnvilManager
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	deploySequence *usecase.DeploySequence,
	deployProxy *usecase.DeployProxy,
	configRegistry *usecase.ConfigRegistry,
	bootstrapVRF *usecase.BootstrapVRF,
	fixture *usecase.Fixture,
	listDeployments *usecase.ListDeployments,
	showDeployment *usecase.ShowDeployment,
	showManifest *usecase.ShowManifest,
	checkCapabilities *usecase.CheckCapabilities,
	checkAccess *usecase.CheckAccess,
	manageAnvil *usecase.ManageAnvil,
	anvilManager usecase.AnvilManager,
) (*App, error) {
	return &App{
		Config:            cfg,
		DeploySequence:    deploySequence,
		DeployProxy:       deployProxy,
		ConfigRegistry:    configRegistry,
		BootstrapVRF:      bootstrapVRF,
		Fixture:           fixture,
		ListDeployments:   listDeployments,
		ShowDeployment:    showDeployment,
		ShowManifest:      showManifest,
		CheckCapabilities: checkCapabilities,
		CheckAccess:       checkAccess,
		ManageAnvil:       manageAnvil,
		AnvilManager:      anvilManager,
	}, nil
}
