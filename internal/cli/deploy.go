package cli

import (
	"github.com/spf13/cobra"

	"github.com/kikiverse/kiki-deploy/internal/cli/render"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var (
		tags   []string
		reset  bool
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Run the deployment plan",
		Long: `Run the deployment plan against the selected network.

Steps run in dependency order. A step whose contract, arguments and calls are unchanged
since its last run is skipped, so running deploy twice deploys nothing the second time.
Steps marked dev_only are skipped on live networks.`,
		Example: `  # Deploy everything to the local node
  kiki deploy

  # Deploy Kiki and everything it depends on
  kiki deploy --tags Kiki

  # Start over on the local node
  kiki deploy --reset --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.DeployParams{
				PlanPath: app.Config.Paths.Plan,
				Tags:     tags,
				Reset:    reset,
				Yes:      yes,
			}
			renderer := render.NewDeployRenderer(cmd.OutOrStdout())

			if dryRun {
				steps, err := app.DeploySequence.Plan(cmd.Context(), params)
				if err != nil {
					return err
				}
				if app.Config.JSON {
					return render.RenderJSON(cmd.OutOrStdout(), steps)
				}
				return renderer.RenderPlan(steps)
			}

			result, err := app.DeploySequence.Run(cmd.Context(), app.Config.Env(), params)
			if result != nil {
				var renderErr error
				if app.Config.JSON {
					renderErr = render.RenderJSON(cmd.OutOrStdout(), result)
				} else {
					renderErr = renderer.RenderResult(result)
				}
				if err == nil {
					err = renderErr
				}
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Only run steps with these tags or names, plus their dependencies")
	cmd.Flags().String("plan", "", "Deployment plan file (defaults to the built-in plan)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Discard the network's deployment records first")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the reset confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the steps that would run, in order")

	return cmd
}

// proxyFlags holds the flags shared by upgrade and validate
type proxyFlags struct {
	contract    string
	from        string
	owner       string
	method      string
	args        []string
	unsafeAllow []string
}

func (f *proxyFlags) params(name string) usecase.ProxyParams {
	args := make([]any, len(f.args))
	for i, a := range f.args {
		args[i] = a
	}
	return usecase.ProxyParams{
		Name:        name,
		Contract:    f.contract,
		From:        f.from,
		Owner:       f.owner,
		Method:      f.method,
		Args:        args,
		UnsafeAllow: f.unsafeAllow,
	}
}

// NewUpgradeCmd creates the upgrade command
func NewUpgradeCmd() *cobra.Command {
	flags := &proxyFlags{}
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upgrade <name>",
		Short: "Deploy or upgrade a contract behind a transparent proxy",
		Long: `Deploy an implementation behind a transparent proxy, or upgrade the existing proxy.

The implementation must not have a constructor, selfdestruct or delegatecall, and its
storage layout must be compatible with the one recorded for the implementation the proxy
currently points at. The upgrade manifest is only written once every transaction succeeded.`,
		Example: `  # First deployment of DemoV1 behind the proxy named Demo
  kiki upgrade Demo --contract DemoV1 --call initialize --args 42

  # Upgrade Demo to DemoV2
  kiki upgrade Demo --contract DemoV2

  # Only run the safety checks
  kiki upgrade Demo --contract DemoV2 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			renderer := render.NewDeployRenderer(cmd.OutOrStdout())
			params := flags.params(args[0])

			if dryRun {
				version, err := app.DeployProxy.Validate(cmd.Context(), app.Config.Env(), params)
				if err != nil {
					return err
				}
				if app.Config.JSON {
					return render.RenderJSON(cmd.OutOrStdout(), version)
				}
				return renderer.RenderValidation(args[0], version)
			}

			result, err := app.DeployProxy.Run(cmd.Context(), app.Config.Env(), params)
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result)
			}
			return renderer.RenderProxy(result)
		},
	}

	cmd.Flags().StringVar(&flags.contract, "contract", "", "Implementation contract (defaults to the name)")
	cmd.Flags().StringVar(&flags.from, "from", "", "Account deploying the contracts (default deployer)")
	cmd.Flags().StringVar(&flags.owner, "owner", "", "Proxy admin account (default admin)")
	cmd.Flags().StringVar(&flags.method, "call", "", "Function to call on the proxy after deploying or upgrading")
	cmd.Flags().StringSliceVar(&flags.args, "args", nil, "Arguments of --call")
	cmd.Flags().StringSliceVar(&flags.unsafeAllow, "unsafe-allow", nil, "Allow constructor, selfdestruct or delegatecall")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the safety checks without sending transactions")

	return cmd
}

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	var unsafeAllow []string

	cmd := &cobra.Command{
		Use:   "validate <original> <updated>",
		Short: "Check that one contract is a safe upgrade of another",
		Long: `Compare the storage layouts of two compiled contracts and check the updated one for
constructors, selfdestruct and delegatecall. Nothing is sent to the network.`,
		Example: `  kiki validate DemoV1 DemoV2`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			version, err := app.DeployProxy.Compare(cmd.Context(), args[0], args[1], unsafeAllow)
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), version)
			}
			return render.NewDeployRenderer(cmd.OutOrStdout()).RenderValidation(args[1], version)
		},
	}

	cmd.Flags().StringSliceVar(&unsafeAllow, "unsafe-allow", nil, "Allow constructor, selfdestruct or delegatecall")
	return cmd
}
