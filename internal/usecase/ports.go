package usecase

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// ArtifactRepository provides access to compiled contracts
type ArtifactRepository interface {
	GetArtifact(ctx context.Context, name string) (*models.Artifact, error)
	ListArtifacts(ctx context.Context) ([]string, error)
}

// DeploymentStore handles persistence of deployment records and step state, per network
type DeploymentStore interface {
	GetDeployment(ctx context.Context, network, name string) (*models.Deployment, error)
	ListDeployments(ctx context.Context, network string) ([]*models.Deployment, error)
	SaveDeployment(ctx context.Context, network string, chainID uint64, deployment *models.Deployment) error
	Reset(ctx context.Context, network string) error
	GetStepState(ctx context.Context, network, step string) (*models.StepState, error)
	SaveStepState(ctx context.Context, network, step string, state *models.StepState) error
	ListStepStates(ctx context.Context, network string) (map[string]*models.StepState, error)
}

// ManifestStore is the versioned key-value store holding upgrade manifests, keyed by chain id.
// Writers must hold the lock returned by Lock for the whole read-modify-write cycle.
type ManifestStore interface {
	Read(ctx context.Context, chainID uint64) (*models.Manifest, error)
	Write(ctx context.Context, chainID uint64, manifest *models.Manifest) error
	Lock(ctx context.Context, chainID uint64) (unlock func() error, err error)
}

// TxResult is the outcome of a mined transaction
type TxResult struct {
	TxHash          common.Hash
	ContractAddress common.Address
	BlockNumber     uint64
	Logs            []*types.Log
}

// ChainClient submits transactions and reads state. Every transaction call blocks until
// the transaction is mined; reverts are returned as *domain.RevertError.
type ChainClient interface {
	ChainID(ctx context.Context) (uint64, error)
	Deploy(ctx context.Context, from *domain.Account, initCode []byte) (*TxResult, error)
	Transact(ctx context.Context, from *domain.Account, to common.Address, data []byte) (*TxResult, error)
	Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
	StorageAt(ctx context.Context, address common.Address, slot common.Hash) (common.Hash, error)
}

// Snapshotter snapshots and restores local node state
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
}

// UpgradeValidator checks that implementations are upgrade safe
type UpgradeValidator interface {
	Version(bytecode []byte) models.Version
	ValidateImplementation(artifact *models.Artifact, unsafeAllow []string) error
	AssertStorageUpgradeSafe(name string, original, updated *models.StorageLayout) error
}

// PlanLoader loads deployment plans
type PlanLoader interface {
	LoadPlan(ctx context.Context, path string) (*domain.Plan, error)
}

// Confirmer asks the user to confirm a destructive action
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// AnvilManager manages local anvil node instances
type AnvilManager interface {
	Start(ctx context.Context, instance *domain.AnvilInstance) error
	Stop(ctx context.Context, instance *domain.AnvilInstance) error
	GetStatus(ctx context.Context, instance *domain.AnvilInstance) (*domain.AnvilStatus, error)
	StreamLogs(ctx context.Context, instance *domain.AnvilInstance, writer io.Writer) error
	TakeSnapshot(ctx context.Context, instance *domain.AnvilInstance) (string, error)
	RevertSnapshot(ctx context.Context, instance *domain.AnvilInstance, id string) error
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// Progress stages emitted by the deployment use cases
const (
	StagePlan      = "plan"
	StageStep      = "step"
	StageStepDone  = "step_done"
	StageValidate  = "validate"
	StageTx        = "tx"
	StageCompleted = "completed"
)
