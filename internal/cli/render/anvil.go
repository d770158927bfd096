package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// AnvilRenderer renders anvil operation results
type AnvilRenderer struct {
	out io.Writer
}

// NewAnvilRenderer creates a new anvil renderer
func NewAnvilRenderer(out io.Writer) *AnvilRenderer {
	return &AnvilRenderer{out: out}
}

// Render renders the anvil operation result
func (r *AnvilRenderer) Render(result *usecase.ManageAnvilResult) error {
	switch result.Operation {
	case usecase.AnvilStart, usecase.AnvilRestart:
		return r.renderStart(result)
	case usecase.AnvilStop:
		fmt.Fprintln(r.out, FormatSuccess(result.Message))
		return nil
	case usecase.AnvilStatus:
		return r.renderStatus(result)
	case usecase.AnvilSnapshot:
		fmt.Fprintln(r.out, FormatSuccess(result.Message))
		color.New(color.FgBlue).Fprintf(r.out, "📸 Snapshot: %s\n", result.SnapshotID)
		return nil
	case usecase.AnvilRevert:
		fmt.Fprintln(r.out, FormatSuccess(result.Message))
		return nil
	default:
		return fmt.Errorf("unknown operation: %s", result.Operation)
	}
}

func (r *AnvilRenderer) renderStart(result *usecase.ManageAnvilResult) error {
	if !result.Success {
		return nil
	}
	fmt.Fprintln(r.out, FormatSuccess(result.Message))
	color.New(color.FgYellow).Fprintf(r.out, "📋 Logs: %s\n", result.Status.LogFile)
	color.New(color.FgBlue).Fprintf(r.out, "🌐 RPC URL: %s\n", result.Status.RPCURL)
	if result.Status.ChainID != 0 {
		fmt.Fprintf(r.out, "⛓  Chain ID: %d\n", result.Status.ChainID)
	}
	return nil
}

func (r *AnvilRenderer) renderStatus(result *usecase.ManageAnvilResult) error {
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "📊 Anvil Status ('%s'):\n", result.Instance.Name)

	if !result.Status.Running {
		color.New(color.FgRed).Fprintln(r.out, "Status: 🔴 Not running")
		color.New(color.FgHiBlack).Fprintf(r.out, "PID file: %s\n", result.Instance.PidFile)
		color.New(color.FgHiBlack).Fprintf(r.out, "Log file: %s\n", result.Instance.LogFile)
		return nil
	}

	color.New(color.FgGreen).Fprintf(r.out, "Status: 🟢 Running (PID %d)\n", result.Status.PID)
	color.New(color.FgBlue).Fprintf(r.out, "RPC URL: %s\n", result.Status.RPCURL)
	color.New(color.FgYellow).Fprintf(r.out, "Log file: %s\n", result.Status.LogFile)
	if result.Status.RPCHealthy {
		color.New(color.FgGreen).Fprintf(r.out, "RPC Health: ✅ Responding (chain %d)\n", result.Status.ChainID)
	} else {
		color.New(color.FgRed).Fprintln(r.out, "RPC Health: ❌ Not responding")
	}
	return nil
}

// RenderLogsHeader renders the header for logs streaming
func (r *AnvilRenderer) RenderLogsHeader(result *usecase.ManageAnvilResult) error {
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "📋 Showing anvil '%s' logs (Ctrl+C to exit):\n", result.Instance.Name)
	color.New(color.FgHiBlack).Fprintf(r.out, "Log file: %s\n\n", result.Status.LogFile)
	return nil
}
