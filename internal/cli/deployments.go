package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kikiverse/kiki-deploy/internal/cli/render"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// NewDeploymentsCmd creates the deployments command
func NewDeploymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deployments",
		Aliases: []string{"deps"},
		Short:   "Inspect recorded deployments",
	}

	cmd.AddCommand(newDeploymentsListCmd())
	cmd.AddCommand(newDeploymentsShowCmd())

	return cmd
}

func newDeploymentsListCmd() *cobra.Command {
	var (
		contractName string
		deployType   string
		all          bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List deployments on the selected network",
		Example: `  # List all deployments
  kiki deployments list

  # List proxies only
  kiki deployments list --type proxy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			var deploymentType models.DeploymentType
			switch strings.ToLower(deployType) {
			case "":
			case "singleton":
				deploymentType = models.SingletonDeployment
			case "proxy":
				deploymentType = models.ProxyDeployment
			case "implementation":
				deploymentType = models.ImplementationDeployment
			default:
				return fmt.Errorf("invalid deployment type: %s (valid: singleton, proxy, implementation)", deployType)
			}

			result, err := app.ListDeployments.Run(cmd.Context(), app.Config.Env(), usecase.ListDeploymentsParams{
				ContractName:      contractName,
				Type:              deploymentType,
				IncludeProxyParts: all || deploymentType == models.ImplementationDeployment,
			})
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result)
			}
			return render.NewDeploymentsRenderer(cmd.OutOrStdout()).RenderDeploymentList(result)
		},
	}

	cmd.Flags().StringVar(&contractName, "contract", "", "Filter by contract or deployment name")
	cmd.Flags().StringVar(&deployType, "type", "", "Filter by type (singleton, proxy, implementation)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include the _Proxy and _Implementation records of proxied deployments")

	return cmd
}

func newDeploymentsShowCmd() *cobra.Command {
	var noResolve bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show detailed deployment information",
		Long: `Show a deployment record. For proxied deployments the live implementation is read
from the proxy and compared with the recorded one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			details, err := app.ShowDeployment.Run(cmd.Context(), app.Config.Env(), usecase.ShowDeploymentParams{
				Name:         args[0],
				ResolveProxy: !noResolve,
			})
			if err != nil {
				return fmt.Errorf("failed to show deployment: %w", err)
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), details)
			}
			return render.NewDeploymentRenderer(cmd.OutOrStdout()).RenderDeployment(details)
		},
	}

	cmd.Flags().BoolVar(&noResolve, "no-resolve", false, "Do not read the live implementation of proxies")
	return cmd
}
