package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// ProxyContract is the artifact deployed in front of upgradeable implementations
const ProxyContract = "TransparentUpgradeableProxy"

var (
	// ImplementationSlot is the EIP-1967 storage slot holding a proxy's implementation address
	ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	// AdminSlot is the EIP-1967 storage slot holding a proxy's admin address
	AdminSlot = common.HexToHash("0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103")
)

// ProxyParams describes a proxied deployment or upgrade
type ProxyParams struct {
	// Name is the deployment name; the proxy and implementation are recorded under
	// Name_Proxy and Name_Implementation
	Name string
	// Contract is the implementation artifact, defaulting to Name
	Contract    string
	From        string
	Owner       string
	Method      string
	Args        []any
	UnsafeAllow []string
}

// ProxyResult describes what a proxied deployment did
type ProxyResult struct {
	Deployment     *models.Deployment
	Implementation *models.Deployment
	Outcome        domain.StepOutcome
	Version        models.Version
	Transactions   int
	ManifestSaved  bool
}

// DeployProxy deploys an implementation behind a transparent proxy, or upgrades the
// existing proxy, after proving the implementation and its storage layout upgrade safe.
// The manifest is only written once every transaction has succeeded.
type DeployProxy struct {
	artifacts ArtifactRepository
	store     DeploymentStore
	manifests ManifestStore
	chain     ChainClient
	validator UpgradeValidator
	deployer  *contractDeployer
	progress  ProgressSink
}

// NewDeployProxy creates a new DeployProxy use case
func NewDeployProxy(
	artifacts ArtifactRepository,
	store DeploymentStore,
	manifests ManifestStore,
	chain ChainClient,
	validator UpgradeValidator,
	progress ProgressSink,
) *DeployProxy {
	if progress == nil {
		progress = NopProgress{}
	}
	return &DeployProxy{
		artifacts: artifacts,
		store:     store,
		manifests: manifests,
		chain:     chain,
		validator: validator,
		deployer:  &contractDeployer{store: store, chain: chain, progress: progress},
		progress:  progress,
	}
}

// Run deploys or upgrades the proxied contract described by params
func (uc *DeployProxy) Run(ctx context.Context, env *domain.Env, params ProxyParams) (*ProxyResult, error) {
	return uc.run(ctx, env, newArgScope(ctx, env, uc.store), params)
}

// Validate runs every safety check of Run without sending transactions
func (uc *DeployProxy) Validate(ctx context.Context, env *domain.Env, params ProxyParams) (models.Version, error) {
	artifact, version, err := uc.validateImplementation(ctx, params)
	if err != nil {
		return version, err
	}
	_, err = uc.validateUpgrade(ctx, env, params.Name, artifact)
	return version, err
}

// Compare checks that updated is a safe upgrade of original using only their artifacts
func (uc *DeployProxy) Compare(ctx context.Context, original, updated string, unsafeAllow []string) (models.Version, error) {
	base, err := uc.artifacts.GetArtifact(ctx, original)
	if err != nil {
		return models.Version{}, err
	}
	if base.StorageLayout == nil {
		return models.Version{}, fmt.Errorf("%w: %s", domain.ErrMissingLayout, original)
	}
	artifact, version, err := uc.validateImplementation(ctx, ProxyParams{Name: updated, UnsafeAllow: unsafeAllow})
	if err != nil {
		return version, err
	}
	return version, uc.validator.AssertStorageUpgradeSafe(original, base.StorageLayout, artifact.StorageLayout)
}

func (uc *DeployProxy) run(ctx context.Context, env *domain.Env, scope *argScope, params ProxyParams) (*ProxyResult, error) {
	artifact, version, err := uc.validateImplementation(ctx, params)
	if err != nil {
		return nil, err
	}
	proxy, err := uc.validateUpgrade(ctx, env, params.Name, artifact)
	if err != nil {
		return nil, err
	}

	result := &ProxyResult{Version: version}

	from := params.From
	if from == "" {
		from = domain.RoleDeployer
	}
	owner := params.Owner
	if owner == "" {
		owner = domain.RoleAdmin
	}
	ownerAccount, err := env.Accounts.Get(owner)
	if err != nil {
		return nil, err
	}

	impl, err := uc.deployer.deploy(ctx, env, scope, deployRequest{
		Name:     params.Name + models.ImplementationSuffix,
		Artifact: artifact,
		From:     from,
		Type:     models.ImplementationDeployment,
	})
	if err != nil {
		return nil, err
	}
	if !impl.Reused {
		result.Transactions++
	}
	result.Implementation = impl.Deployment
	implAddress := common.HexToAddress(impl.Deployment.Address)

	implABI, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}
	var initData []byte
	if params.Method != "" {
		m, ok := implABI.Methods[params.Method]
		if !ok {
			return nil, fmt.Errorf("method %s not found on %s", params.Method, artifact.Name)
		}
		args, err := scope.resolveArgs(m.Inputs, params.Args)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", artifact.Name, params.Method, err)
		}
		if initData, err = implABI.Pack(params.Method, args...); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", params.Method, err)
		}
	}

	proxyArtifact, err := uc.artifacts.GetArtifact(ctx, ProxyContract)
	if err != nil {
		return nil, err
	}
	proxyABI, err := proxyArtifact.ParsedABI()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var upgradeTx string
	switch {
	case proxy == nil:
		out, err := uc.deployer.deploy(ctx, env, scope, deployRequest{
			Name:     params.Name + models.ProxySuffix,
			Artifact: proxyArtifact,
			From:     from,
			Args:     []any{implAddress, ownerAccount.Address, initData},
			Type:     models.ProxyDeployment,
		})
		if err != nil {
			return nil, err
		}
		proxy = out.Deployment
		if !out.Reused {
			result.Transactions++
		}
		upgradeTx = proxy.TransactionHash
		result.Outcome = domain.StepDeployed

	case !strings.EqualFold(proxy.ProxyInfo.Implementation, implAddress.Hex()):
		var tx *TxResult
		if len(initData) > 0 {
			tx, err = uc.deployer.transact(ctx, env, owner, common.HexToAddress(proxy.Address), proxyABI, "upgradeToAndCall", implAddress, initData)
		} else {
			tx, err = uc.deployer.transact(ctx, env, owner, common.HexToAddress(proxy.Address), proxyABI, "upgradeTo", implAddress)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade %s: %w", params.Name, err)
		}
		result.Transactions++
		upgradeTx = tx.TxHash.Hex()
		result.Outcome = domain.StepUpgraded

	default:
		result.Outcome = domain.StepReused
	}

	if proxy.ProxyInfo == nil {
		proxy.ProxyInfo = &models.ProxyInfo{Kind: models.ProxyKindTransparent, Admin: ownerAccount.Address.Hex()}
	}
	if result.Outcome != domain.StepReused {
		proxy.ProxyInfo.Implementation = implAddress.Hex()
		proxy.ProxyInfo.History = append(proxy.ProxyInfo.History, models.ProxyUpgrade{
			Implementation: implAddress.Hex(),
			TxHash:         upgradeTx,
			UpgradedAt:     now,
		})
		proxy.UpdatedAt = now
		if err := uc.store.SaveDeployment(ctx, env.Network.Name, env.Network.ChainID, proxy); err != nil {
			return nil, err
		}
	}

	// The named record exposes the implementation ABI at the proxy address
	record := &models.Deployment{
		Name:            params.Name,
		ContractName:    artifact.Name,
		Address:         proxy.Address,
		ABI:             artifact.ABI,
		TransactionHash: proxy.TransactionHash,
		BlockNumber:     proxy.BlockNumber,
		Args:            []any{},
		BytecodeHash:    impl.Deployment.BytecodeHash,
		Type:            models.ProxyDeployment,
		ProxyInfo:       proxy.ProxyInfo,
		CreatedAt:       proxy.CreatedAt,
		UpdatedAt:       now,
	}
	if err := uc.store.SaveDeployment(ctx, env.Network.Name, env.Network.ChainID, record); err != nil {
		return nil, err
	}
	result.Deployment = record

	if env.IsForking() {
		uc.progress.Info(fmt.Sprintf("forking %s, manifest not updated", env.Fork))
		return result, nil
	}
	if err := uc.saveManifest(ctx, env, proxy, impl.Deployment, version, artifact.StorageLayout); err != nil {
		return nil, err
	}
	result.ManifestSaved = true
	return result, nil
}

func (uc *DeployProxy) validateImplementation(ctx context.Context, params ProxyParams) (*models.Artifact, models.Version, error) {
	contract := params.Contract
	if contract == "" {
		contract = params.Name
	}
	artifact, err := uc.artifacts.GetArtifact(ctx, contract)
	if err != nil {
		return nil, models.Version{}, err
	}

	code := artifact.CreationCode()
	if code == nil {
		return nil, models.Version{}, fmt.Errorf("%w: %s", domain.ErrMissingBytecode, contract)
	}
	version := uc.validator.Version(code)

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   StageValidate,
		Message: fmt.Sprintf("validating %s", contract),
		Spinner: true,
	})
	if err := uc.validator.ValidateImplementation(artifact, params.UnsafeAllow); err != nil {
		return nil, version, err
	}
	if artifact.StorageLayout == nil {
		return nil, version, fmt.Errorf("%w: %s", domain.ErrMissingLayout, contract)
	}
	return artifact, version, nil
}

// validateUpgrade loads the existing proxy and checks the new layout against the one the
// manifest recorded for the implementation the proxy currently points at
func (uc *DeployProxy) validateUpgrade(ctx context.Context, env *domain.Env, name string, artifact *models.Artifact) (*models.Deployment, error) {
	proxy, err := uc.store.GetDeployment(ctx, env.Network.Name, name+models.ProxySuffix)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	slot, err := uc.chain.StorageAt(ctx, common.HexToAddress(proxy.Address), ImplementationSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to read implementation of %s: %w", name, err)
	}
	current := common.BytesToAddress(slot.Bytes())

	manifest, err := uc.manifests.Read(ctx, env.ManifestChainID())
	if err != nil {
		return nil, err
	}
	_, impl, ok := manifest.ImplByAddress(current.Hex())
	if !ok {
		return nil, fmt.Errorf("%w: implementation %s of %s is not registered in the manifest", domain.ErrNotFound, current.Hex(), name)
	}

	if err := uc.validator.AssertStorageUpgradeSafe(name, &impl.Layout, artifact.StorageLayout); err != nil {
		return nil, err
	}

	if proxy.ProxyInfo == nil {
		proxy.ProxyInfo = &models.ProxyInfo{Kind: models.ProxyKindTransparent}
	}
	proxy.ProxyInfo.Implementation = current.Hex()
	return proxy, nil
}

func (uc *DeployProxy) saveManifest(ctx context.Context, env *domain.Env, proxy, impl *models.Deployment, version models.Version, layout *models.StorageLayout) (err error) {
	chainID := env.ManifestChainID()
	unlock, err := uc.manifests.Lock(ctx, chainID)
	if err != nil {
		return fmt.Errorf("failed to lock manifest: %w", err)
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("failed to unlock manifest: %w", uerr)
		}
	}()

	manifest, err := uc.manifests.Read(ctx, chainID)
	if err != nil {
		return err
	}
	manifest = manifest.Clone()
	manifest.AddProxy(models.ProxyRecord{
		Address: proxy.Address,
		TxHash:  proxy.TransactionHash,
		Kind:    models.ProxyKindTransparent,
	})
	manifest.Impls[version.LinkedWithoutMetadata] = models.ImplDeployment{
		Address: impl.Address,
		TxHash:  impl.TransactionHash,
		Layout:  *layout,
	}
	return uc.manifests.Write(ctx, chainID, manifest)
}
