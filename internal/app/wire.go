//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"

	"github.com/kikiverse/kiki-deploy/internal/adapters"
	"github.com/kikiverse/kiki-deploy/internal/config"
	"github.com/kikiverse/kiki-deploy/internal/logging"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewDeployProxy,
		usecase.NewBootstrapVRF,
		usecase.NewDeploySequence,
		usecase.NewConfigRegistry,
		usecase.NewFixture,
		usecase.NewListDeployments,
		usecase.NewShowDeployment,
		usecase.NewShowManifest,
		usecase.NewCheckCapabilities,
		usecase.NewCheckAccess,
		usecase.NewManageAnvil,

		// App
		NewApp,
	)
	return nil, nil
}
