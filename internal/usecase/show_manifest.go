package usecase

import (
	"context"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// ManifestResult is the upgrade manifest of one chain
type ManifestResult struct {
	ChainID  uint64
	Manifest *models.Manifest
}

// ShowManifest reads the upgrade manifest of the current network, or of the forked
// network when forking
type ShowManifest struct {
	manifests ManifestStore
}

// NewShowManifest creates a new ShowManifest use case
func NewShowManifest(manifests ManifestStore) *ShowManifest {
	return &ShowManifest{manifests: manifests}
}

// Run executes the show manifest use case
func (uc *ShowManifest) Run(ctx context.Context, env *domain.Env) (*ManifestResult, error) {
	chainID := env.ManifestChainID()
	manifest, err := uc.manifests.Read(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return &ManifestResult{ChainID: chainID, Manifest: manifest}, nil
}
