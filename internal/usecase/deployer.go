package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// contractDeployer deploys single contracts and sends method calls, reusing
// deployments whose bytecode and constructor arguments are unchanged
type contractDeployer struct {
	store    DeploymentStore
	chain    ChainClient
	progress ProgressSink
}

type deployRequest struct {
	Name     string
	Artifact *models.Artifact
	From     string
	Args     []any
	Type     models.DeploymentType
}

type deployOutcome struct {
	Deployment *models.Deployment
	Reused     bool
	Tx         *TxResult
}

func (d *contractDeployer) deploy(ctx context.Context, env *domain.Env, scope *argScope, req deployRequest) (*deployOutcome, error) {
	code := req.Artifact.CreationCode()
	if code == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingBytecode, req.Artifact.Name)
	}
	parsed, err := req.Artifact.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI of %s: %w", req.Artifact.Name, err)
	}

	args, err := scope.resolveArgs(parsed.Constructor.Inputs, req.Args)
	if err != nil {
		return nil, fmt.Errorf("constructor of %s: %w", req.Artifact.Name, err)
	}
	packed, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor args of %s: %w", req.Artifact.Name, err)
	}

	bytecodeHash := crypto.Keccak256Hash(code).Hex()
	argsData := hexutil.Encode(packed)

	existing, err := d.store.GetDeployment(ctx, env.Network.Name, req.Name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.BytecodeHash == bytecodeHash && existing.ArgsData == argsData {
		deployed, err := d.chain.CodeAt(ctx, common.HexToAddress(existing.Address))
		if err != nil {
			return nil, fmt.Errorf("failed to check code of %s: %w", req.Name, err)
		}
		if len(deployed) > 0 {
			return &deployOutcome{Deployment: existing, Reused: true}, nil
		}
	}

	from, err := env.Accounts.Get(req.From)
	if err != nil {
		return nil, err
	}

	d.progress.OnProgress(ctx, ProgressEvent{
		Stage:   StageTx,
		Message: fmt.Sprintf("deploying %s", req.Name),
		Spinner: true,
	})

	initCode := make([]byte, 0, len(code)+len(packed))
	initCode = append(initCode, code...)
	initCode = append(initCode, packed...)
	tx, err := d.chain.Deploy(ctx, from, initCode)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", req.Name, err)
	}

	now := time.Now()
	record := &models.Deployment{
		Name:            req.Name,
		ContractName:    req.Artifact.Name,
		Address:         tx.ContractAddress.Hex(),
		ABI:             req.Artifact.ABI,
		TransactionHash: tx.TxHash.Hex(),
		BlockNumber:     tx.BlockNumber,
		Args:            renderArgs(args),
		ArgsData:        argsData,
		Bytecode:        hexutil.Encode(code),
		BytecodeHash:    bytecodeHash,
		Type:            req.Type,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if record.Type == "" {
		record.Type = models.SingletonDeployment
	}
	if err := d.store.SaveDeployment(ctx, env.Network.Name, env.Network.ChainID, record); err != nil {
		return nil, fmt.Errorf("failed to save deployment %s: %w", req.Name, err)
	}

	return &deployOutcome{Deployment: record, Tx: tx}, nil
}

// transact encodes and sends a method call from the account holding role
func (d *contractDeployer) transact(ctx context.Context, env *domain.Env, role string, to common.Address, contractABI *abi.ABI, method string, args ...any) (*TxResult, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	from, err := env.Accounts.Get(role)
	if err != nil {
		return nil, err
	}

	d.progress.OnProgress(ctx, ProgressEvent{
		Stage:   StageTx,
		Message: fmt.Sprintf("calling %s", method),
		Spinner: true,
	})

	tx, err := d.chain.Transact(ctx, from, to, data)
	if err != nil {
		var revert *domain.RevertError
		if errors.As(err, &revert) && revert.Method == "" {
			revert.Method = method
		}
		return nil, err
	}
	return tx, nil
}

// runCall executes a plan call against a deployed contract. The target defaults to the
// contract deployed by the step.
func (d *contractDeployer) runCall(ctx context.Context, env *domain.Env, scope *argScope, self *models.Deployment, call domain.Call) (*TxResult, error) {
	target := self
	if call.Target != "" && call.Target != "@self" && call.Target != self.Name {
		dep, err := d.store.GetDeployment(ctx, env.Network.Name, strings.TrimPrefix(call.Target, "@"))
		if err != nil {
			return nil, fmt.Errorf("call target %s: %w", call.Target, err)
		}
		target = dep
	}

	contractABI, err := parseABI(target.ABI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI of %s: %w", target.Name, err)
	}
	m, ok := contractABI.Methods[call.Method]
	if !ok {
		return nil, fmt.Errorf("method %s not found on %s", call.Method, target.Name)
	}
	args, err := scope.withSelf(common.HexToAddress(self.Address)).resolveArgs(m.Inputs, call.Args)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", target.Name, call.Method, err)
	}
	return d.transact(ctx, env, call.Sender(), common.HexToAddress(target.Address), contractABI, call.Method, args...)
}

func parseABI(raw json.RawMessage) (*abi.ABI, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("[]")
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
