package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kikiverse/kiki-deploy/internal/cli/render"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// NewNodeCmd creates the node command for managing local anvil nodes
func NewNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage local anvil nodes",
		Long:  `Start, stop and inspect local anvil nodes, and snapshot or revert their state.`,
	}

	cmd.AddCommand(newNodeCmd("start", "Start a local anvil node", "Start a local anvil node. Fails if it is already running."))
	cmd.AddCommand(newNodeCmd("stop", "Stop a local anvil node", "Stop the local anvil node if running."))
	cmd.AddCommand(newNodeCmd("restart", "Restart a local anvil node", "Stop the local anvil node if running and start it again."))
	cmd.AddCommand(newNodeCmd("status", "Show anvil status", "Show status of the local anvil node."))
	cmd.AddCommand(newNodeCmd("logs", "Show anvil logs", "Follow the log file of the local anvil node."))
	cmd.AddCommand(newNodeCmd("snapshot", "Snapshot the node state", "Take an evm_snapshot and print its id."))
	cmd.AddCommand(newNodeRevertCmd())

	return cmd
}

// anvilFlags holds common flags for anvil commands
type anvilFlags struct {
	name    string
	port    string
	chainID string
	forkURL string
}

// addAnvilFlags adds common flags to an anvil command
func addAnvilFlags(cmd *cobra.Command, flags *anvilFlags) {
	cmd.Flags().StringVar(&flags.name, "name", "anvil", "Instance name")
	cmd.Flags().StringVar(&flags.port, "port", "8545", "RPC port to bind")
	cmd.Flags().StringVar(&flags.chainID, "chain-id", "", "Chain ID to use for the instance (optional)")
	cmd.Flags().StringVar(&flags.forkURL, "fork-url", "", "RPC URL of a network to fork (optional)")
}

func newNodeCmd(operation, short, long string) *cobra.Command {
	flags := &anvilFlags{}

	cmd := &cobra.Command{
		Use:   operation,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnvilCommand(cmd, operation, flags, "")
		},
	}

	addAnvilFlags(cmd, flags)
	return cmd
}

func newNodeRevertCmd() *cobra.Command {
	flags := &anvilFlags{}

	cmd := &cobra.Command{
		Use:   "revert <snapshot-id>",
		Short: "Revert the node to a snapshot",
		Long:  `Revert the node to a snapshot taken with "kiki node snapshot". A snapshot can only be reverted to once.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnvilCommand(cmd, usecase.AnvilRevert, flags, args[0])
		},
	}

	addAnvilFlags(cmd, flags)
	return cmd
}

// runAnvilCommand executes an anvil management command
func runAnvilCommand(cmd *cobra.Command, operation string, flags *anvilFlags, snapshotID string) error {
	app, err := getApp(cmd)
	if err != nil {
		return err
	}

	result, err := app.ManageAnvil.Execute(cmd.Context(), usecase.ManageAnvilParams{
		Operation:  operation,
		Name:       flags.name,
		Port:       flags.port,
		ChainID:    flags.chainID,
		ForkURL:    flags.forkURL,
		SnapshotID: snapshotID,
	})
	if err != nil {
		return err
	}

	renderer := render.NewAnvilRenderer(cmd.OutOrStdout())
	if operation == usecase.AnvilLogs {
		if err := renderer.RenderLogsHeader(result); err != nil {
			return err
		}
		return app.AnvilManager.StreamLogs(cmd.Context(), result.Instance, os.Stdout)
	}
	if app.Config.JSON {
		return render.RenderJSON(cmd.OutOrStdout(), result)
	}
	return renderer.Render(result)
}
