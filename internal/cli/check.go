package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kikiverse/kiki-deploy/internal/cli/render"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check contract surfaces and access control",
	}

	cmd.AddCommand(newCheckCapabilitiesCmd())
	cmd.AddCommand(newCheckAccessCmd())

	return cmd
}

func newCheckCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities [contract...]",
		Short: "Check that contracts expose only their expected mutative functions",
		Long: `Compare every contract's state-changing functions, minus those inherited from known
parent contracts, with its expected set. Reads compiled artifacts only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			reports, err := app.CheckCapabilities.Run(cmd.Context(), args)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				err = render.RenderJSON(cmd.OutOrStdout(), reports)
			} else {
				err = render.NewChecksRenderer(cmd.OutOrStdout()).RenderCapabilities(reports)
			}
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range reports {
				if !r.Passed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d contracts failed the capability check", failed, len(reports))
			}
			return nil
		},
	}
}

func newCheckAccessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "access [contract...]",
		Short: "Check that restricted functions revert for everyone but their owner",
		Long: `Simulate every owner-restricted function from each named account. The call must
succeed for the allowed account and revert for all others. No transactions are sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			checks, err := app.CheckAccess.Run(cmd.Context(), app.Config.Env(), args)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				err = render.RenderJSON(cmd.OutOrStdout(), checks)
			} else {
				err = render.NewChecksRenderer(cmd.OutOrStdout()).RenderAccess(checks)
			}
			if err != nil {
				return err
			}
			return accessFailures(checks)
		},
	}
}

func accessFailures(checks []*usecase.AccessCheck) error {
	failed := 0
	for _, c := range checks {
		if !c.Passed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d access checks failed", failed, len(checks))
	}
	return nil
}
