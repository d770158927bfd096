package usecase

import (
	"context"
	"fmt"

	"github.com/kikiverse/kiki-deploy/internal/domain"
)

// Node operations accepted by ManageAnvil.Execute
const (
	AnvilStart    = "start"
	AnvilStop     = "stop"
	AnvilRestart  = "restart"
	AnvilStatus   = "status"
	AnvilLogs     = "logs"
	AnvilSnapshot = "snapshot"
	AnvilRevert   = "revert"
)

// ManageAnvil drives the local development node that non-live networks deploy to
type ManageAnvil struct {
	anvilManager AnvilManager
	progress     ProgressSink
}

// NewManageAnvil creates a new anvil management use case
func NewManageAnvil(anvilManager AnvilManager, progress ProgressSink) *ManageAnvil {
	if progress == nil {
		progress = NopProgress{}
	}
	return &ManageAnvil{
		anvilManager: anvilManager,
		progress:     progress,
	}
}

// ManageAnvilParams selects the node and the operation to run on it
type ManageAnvilParams struct {
	Operation  string
	Name       string
	Port       string
	ChainID    string
	ForkURL    string
	SnapshotID string
}

// ManageAnvilResult contains the result of anvil operations
type ManageAnvilResult struct {
	Operation  string
	Instance   *domain.AnvilInstance
	Status     *domain.AnvilStatus
	Success    bool
	Message    string
	SnapshotID string
}

type anvilOp func(m *ManageAnvil, ctx context.Context, node *domain.AnvilInstance, params ManageAnvilParams) (*ManageAnvilResult, error)

var anvilOps = map[string]anvilOp{
	AnvilStart:    (*ManageAnvil).start,
	AnvilStop:     (*ManageAnvil).stop,
	AnvilRestart:  (*ManageAnvil).restart,
	AnvilStatus:   (*ManageAnvil).inspect,
	AnvilLogs:     (*ManageAnvil).inspect,
	AnvilSnapshot: (*ManageAnvil).snapshot,
	AnvilRevert:   (*ManageAnvil).revert,
}

// Execute performs the anvil management operation
func (m *ManageAnvil) Execute(ctx context.Context, params ManageAnvilParams) (*ManageAnvilResult, error) {
	op, ok := anvilOps[params.Operation]
	if !ok {
		return nil, fmt.Errorf("unknown node operation %q", params.Operation)
	}
	node := &domain.AnvilInstance{
		Name:    params.Name,
		Port:    params.Port,
		ChainID: params.ChainID,
		ForkURL: params.ForkURL,
	}
	result, err := op(m, ctx, node, params)
	if err != nil {
		return nil, err
	}
	result.Operation = params.Operation
	result.Instance = node
	result.Success = true
	return result, nil
}

func (m *ManageAnvil) running(ctx context.Context, node *domain.AnvilInstance) (*domain.AnvilStatus, bool) {
	status, err := m.anvilManager.GetStatus(ctx, node)
	if err != nil || status == nil {
		return nil, false
	}
	return status, status.Running
}

// launch starts the node and reports the process it ended up with
func (m *ManageAnvil) launch(ctx context.Context, node *domain.AnvilInstance, verb string) (*ManageAnvilResult, error) {
	if err := m.anvilManager.Start(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to start anvil: %w", err)
	}
	status, err := m.anvilManager.GetStatus(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to get status after %s: %w", verb, err)
	}
	return &ManageAnvilResult{
		Status:  status,
		Message: fmt.Sprintf("Anvil '%s' %s with PID %d", node.Name, verb, status.PID),
	}, nil
}

func (m *ManageAnvil) start(ctx context.Context, node *domain.AnvilInstance, _ ManageAnvilParams) (*ManageAnvilResult, error) {
	m.progress.Info(fmt.Sprintf("Starting local anvil node '%s' on port %s...", node.Name, node.Port))
	if status, ok := m.running(ctx, node); ok {
		return nil, fmt.Errorf("anvil '%s' is already running (PID %d)", node.Name, status.PID)
	}
	return m.launch(ctx, node, "started")
}

func (m *ManageAnvil) stop(ctx context.Context, node *domain.AnvilInstance, _ ManageAnvilParams) (*ManageAnvilResult, error) {
	m.progress.Info(fmt.Sprintf("Stopping anvil '%s'...", node.Name))
	if _, ok := m.running(ctx, node); !ok {
		return &ManageAnvilResult{Message: fmt.Sprintf("Anvil '%s' is not running", node.Name)}, nil
	}
	if err := m.anvilManager.Stop(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to stop anvil: %w", err)
	}
	return &ManageAnvilResult{Message: "Anvil stopped"}, nil
}

func (m *ManageAnvil) restart(ctx context.Context, node *domain.AnvilInstance, _ ManageAnvilParams) (*ManageAnvilResult, error) {
	m.progress.Info(fmt.Sprintf("Restarting anvil '%s'...", node.Name))
	if _, ok := m.running(ctx, node); ok {
		if err := m.anvilManager.Stop(ctx, node); err != nil {
			return nil, fmt.Errorf("failed to stop anvil: %w", err)
		}
	}
	return m.launch(ctx, node, "restarted")
}

// inspect serves status and logs; log streaming itself happens in the CLI
func (m *ManageAnvil) inspect(ctx context.Context, node *domain.AnvilInstance, _ ManageAnvilParams) (*ManageAnvilResult, error) {
	status, err := m.anvilManager.GetStatus(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &ManageAnvilResult{Status: status}, nil
}

func (m *ManageAnvil) snapshot(ctx context.Context, node *domain.AnvilInstance, _ ManageAnvilParams) (*ManageAnvilResult, error) {
	id, err := m.anvilManager.TakeSnapshot(ctx, node)
	if err != nil {
		return nil, err
	}
	return &ManageAnvilResult{SnapshotID: id, Message: fmt.Sprintf("Snapshot %s taken", id)}, nil
}

func (m *ManageAnvil) revert(ctx context.Context, node *domain.AnvilInstance, params ManageAnvilParams) (*ManageAnvilResult, error) {
	if params.SnapshotID == "" {
		return nil, fmt.Errorf("snapshot id is required")
	}
	if err := m.anvilManager.RevertSnapshot(ctx, node, params.SnapshotID); err != nil {
		return nil, err
	}
	return &ManageAnvilResult{
		SnapshotID: params.SnapshotID,
		Message:    fmt.Sprintf("Reverted to snapshot %s", params.SnapshotID),
	}, nil
}
