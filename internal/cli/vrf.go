package cli

import (
	"github.com/spf13/cobra"

	"github.com/kikiverse/kiki-deploy/internal/cli/render"
)

// NewVRFCmd creates the vrf command
func NewVRFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vrf",
		Short: "Manage the mock randomness coordinator",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "bootstrap",
		Short: "Deploy, subscribe and fund a mock VRF coordinator",
		Long: `Deploy VRFCoordinatorV2Mock on a local network, create a subscription and fund it.
Running it again reuses the deployed coordinator. Live networks are refused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			result, err := app.BootstrapVRF.Run(cmd.Context(), app.Config.Env())
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result)
			}
			return render.NewDeployRenderer(cmd.OutOrStdout()).RenderVRF(result)
		},
	})

	return cmd
}
