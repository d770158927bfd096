package cli

import (
	"github.com/spf13/cobra"

	"github.com/kikiverse/kiki-deploy/internal/cli/render"
)

// NewManifestCmd creates the manifest command
func NewManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the upgrade manifest",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the upgrade manifest of the selected network",
		Long: `Show the proxies and implementation versions recorded in the upgrade manifest.
When forking, the manifest of the forked network is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			result, err := app.ShowManifest.Run(cmd.Context(), app.Config.Env())
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result)
			}
			return render.NewManifestRenderer(cmd.OutOrStdout()).Render(result)
		},
	})

	return cmd
}
