package anvil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/kikiverse/kiki-deploy/internal/domain"
)

const (
	// DefaultAnvilPort is the port of the default local node
	DefaultAnvilPort = "8545"
	defaultName      = "anvil"
	// Backward-compatible file locations of the default instance
	defaultPidFile = "/tmp/kiki-anvil-pid"
	defaultLogFile = "/tmp/kiki-anvil.log"

	startupTimeout = 5 * time.Second
	stopTimeout    = 5 * time.Second
)

// Manager starts and stops local anvil nodes and drives their snapshot RPCs
type Manager struct {
	binary string
	log    *slog.Logger
}

// NewManager creates a new anvil manager
func NewManager() *Manager {
	return &Manager{
		binary: "anvil",
		log:    slog.Default().With("component", "anvil"),
	}
}

// setFilePaths fills the defaults of an instance. The default instance keeps the
// historical single-instance files, named instances get their own.
func (m *Manager) setFilePaths(instance *domain.AnvilInstance) {
	if strings.TrimSpace(instance.Name) == "" {
		instance.Name = defaultName
	}
	if strings.TrimSpace(instance.Port) == "" {
		instance.Port = DefaultAnvilPort
	}
	if instance.PidFile == "" {
		if instance.Name == defaultName && instance.Port == DefaultAnvilPort {
			instance.PidFile = defaultPidFile
		} else {
			instance.PidFile = filepath.Join("/tmp", fmt.Sprintf("kiki-%s.pid", instance.Name))
		}
	}
	if instance.LogFile == "" {
		if instance.Name == defaultName && instance.Port == DefaultAnvilPort {
			instance.LogFile = defaultLogFile
		} else {
			instance.LogFile = filepath.Join("/tmp", fmt.Sprintf("kiki-%s.log", instance.Name))
		}
	}
}

func buildAnvilArgs(instance *domain.AnvilInstance) []string {
	args := []string{"--port", instance.Port, "--host", "0.0.0.0"}
	if instance.ChainID != "" {
		args = append(args, "--chain-id", instance.ChainID)
	}
	if instance.ForkURL != "" {
		args = append(args, "--fork-url", instance.ForkURL)
	}
	return args
}

// Start launches the instance in the background and waits for its RPC to answer
func (m *Manager) Start(ctx context.Context, instance *domain.AnvilInstance) error {
	m.setFilePaths(instance)
	if m.isRunning(instance) {
		return fmt.Errorf("anvil '%s' is already running (PID file exists at %s)", instance.Name, instance.PidFile)
	}

	logFile, err := os.Create(instance.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(m.binary, buildAnvilArgs(instance)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start anvil: %w", err)
	}
	if err := os.WriteFile(instance.PidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	_ = cmd.Process.Release()

	m.log.Debug("anvil started", "name", instance.Name, "pid", cmd.Process.Pid, "port", instance.Port)

	deadline := time.Now().Add(startupTimeout)
	for {
		if _, err := m.chainID(ctx, instance); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("anvil '%s' did not answer on %s within %s, see %s", instance.Name, instance.RPCURL(), startupTimeout, instance.LogFile)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Stop terminates the instance, killing it if it ignores SIGTERM
func (m *Manager) Stop(ctx context.Context, instance *domain.AnvilInstance) error {
	m.setFilePaths(instance)
	pid, err := readPidFile(instance.PidFile)
	if err != nil {
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		if err := process.Kill(); err != nil && !strings.Contains(err.Error(), "already finished") {
			return fmt.Errorf("failed to kill process: %w", err)
		}
	}

	deadline := time.Now().Add(stopTimeout)
	for processAlive(pid) && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	if processAlive(pid) {
		_ = process.Kill()
	}

	if err := os.Remove(instance.PidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	m.log.Debug("anvil stopped", "name", instance.Name, "pid", pid)
	return nil
}

// GetStatus reports whether the instance runs and answers RPC
func (m *Manager) GetStatus(ctx context.Context, instance *domain.AnvilInstance) (*domain.AnvilStatus, error) {
	m.setFilePaths(instance)
	status := &domain.AnvilStatus{
		LogFile: instance.LogFile,
		RPCURL:  instance.RPCURL(),
	}

	pid, err := readPidFile(instance.PidFile)
	if err != nil || !processAlive(pid) {
		return status, nil
	}
	status.Running = true
	status.PID = pid

	chainID, err := m.chainID(ctx, instance)
	if err != nil {
		status.Error = err.Error()
		return status, nil
	}
	status.RPCHealthy = true
	status.ChainID = chainID
	return status, nil
}

// StreamLogs copies the instance log to writer
func (m *Manager) StreamLogs(ctx context.Context, instance *domain.AnvilInstance, writer io.Writer) error {
	m.setFilePaths(instance)
	f, err := os.Open(instance.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("log file does not exist: %s", instance.LogFile)
		}
		return err
	}
	defer f.Close()
	_, err = io.Copy(writer, f)
	return err
}

// TakeSnapshot records the node state and returns the snapshot id
func (m *Manager) TakeSnapshot(ctx context.Context, instance *domain.AnvilInstance) (string, error) {
	m.setFilePaths(instance)
	var id string
	if err := m.call(ctx, instance, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot failed: %w", err)
	}
	return id, nil
}

// RevertSnapshot restores the node state recorded under id. A snapshot can be reverted once.
func (m *Manager) RevertSnapshot(ctx context.Context, instance *domain.AnvilInstance, id string) error {
	m.setFilePaths(instance)
	var ok bool
	if err := m.call(ctx, instance, &ok, "evm_revert", id); err != nil {
		return fmt.Errorf("evm_revert failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("evm_revert returned false for snapshot %s", id)
	}
	return nil
}

func (m *Manager) chainID(ctx context.Context, instance *domain.AnvilInstance) (uint64, error) {
	var id hexutil.Uint64
	if err := m.call(ctx, instance, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (m *Manager) call(ctx context.Context, instance *domain.AnvilInstance, result any, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := rpc.DialContext(ctx, instance.RPCURL())
	if err != nil {
		return err
	}
	defer client.Close()
	return client.CallContext(ctx, result, method, args...)
}

func (m *Manager) isRunning(instance *domain.AnvilInstance) bool {
	pid, err := readPidFile(instance.PidFile)
	return err == nil && processAlive(pid)
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %s", string(data))
	}
	return pid, nil
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
