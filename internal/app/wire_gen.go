//go:build !wireinject
// +build !wireinject

// This file is kept by hand in step with the injector in wire.go, in the layout wire
// emits. Running `go generate ./internal/app` replaces it with wire's own output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

package app

import (
	"github.com/kikiverse/kiki-deploy/internal/adapters"
	"github.com/kikiverse/kiki-deploy/internal/adapters/anvil"
	"github.com/kikiverse/kiki-deploy/internal/adapters/interactive"
	"github.com/kikiverse/kiki-deploy/internal/adapters/plan"
	"github.com/kikiverse/kiki-deploy/internal/adapters/upgrades"
	"github.com/kikiverse/kiki-deploy/internal/config"
	"github.com/kikiverse/kiki-deploy/internal/logging"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
	"github.com/spf13/viper"
)

// Injectors from wire.go:

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	runtimeConfig, err := config.Provider(v)
	if err != nil {
		return nil, err
	}
	loader := plan.NewLoader()
	logger := logging.NewLogger(runtimeConfig)
	repository := adapters.ProvideArtifactRepository(runtimeConfig, logger)
	fileRepository := adapters.ProvideDeploymentStore(runtimeConfig)
	lazyClient := adapters.ProvideChainClient(runtimeConfig, logger)
	manifestStore, err := adapters.ProvideManifestStore(runtimeConfig, logger)
	if err != nil {
		return nil, err
	}
	validator := upgrades.NewValidator(logger)
	deployProxy := usecase.NewDeployProxy(repository, fileRepository, manifestStore, lazyClient, validator, sink)
	bootstrapVRF := usecase.NewBootstrapVRF(repository, fileRepository, lazyClient, sink)
	confirmer := interactive.NewConfirmer(runtimeConfig)
	deploySequence := usecase.NewDeploySequence(loader, repository, fileRepository, lazyClient, deployProxy, bootstrapVRF, confirmer, sink)
	configRegistry := usecase.NewConfigRegistry(fileRepository, lazyClient, sink)
	fixture := usecase.NewFixture(deploySequence, fileRepository, lazyClient)
	listDeployments := usecase.NewListDeployments(fileRepository, sink)
	showDeployment := usecase.NewShowDeployment(fileRepository, lazyClient, sink)
	showManifest := usecase.NewShowManifest(manifestStore)
	checkCapabilities := usecase.NewCheckCapabilities(repository)
	checkAccess := usecase.NewCheckAccess(fileRepository, lazyClient)
	manager := anvil.NewManager()
	manageAnvil := usecase.NewManageAnvil(manager, sink)
	appApp, err := NewApp(runtimeConfig, deploySequence, deployProxy, configRegistry, bootstrapVRF, fixture, listDeployments, showDeployment, showManifest, checkCapabilities, checkAccess, manageAnvil, manager)
	if err != nil {
		return nil, err
	}
	return appApp, nil
}
