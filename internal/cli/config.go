package cli

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/kikiverse/kiki-deploy/internal/cli/render"
	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// NewConfigCmd creates the config command for the on-chain registry
func NewConfigCmd() *cobra.Command {
	kinds := make([]string, 0, len(domain.ConfigValueKinds()))
	for _, k := range domain.ConfigValueKinds() {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write the on-chain Config registry",
		Long: fmt.Sprintf(`Read and write the typed mappings of the deployed Config contract.

Kinds: %s
Keys are names, hashed with keccak256 the way id() hashes them, or raw 32-byte hex keys.
Array values are written as a comma separated list.`, strings.Join(kinds, ", ")),
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigRegisterCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "set <kind> <key> <value>",
		Short: "Write a registry value",
		Example: `  kiki config set address KKT 0x5FbDB2315678afecb367f032d93F642f64180aa3
  kiki config set uint256 FEE 250
  kiki config set addressArray OPERATORS 0x70997970C51812dc3A010C7d01b50e0d17dc79C8,0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			kind, err := domain.ParseConfigValueKind(args[0])
			if err != nil {
				return err
			}

			result, err := app.ConfigRegistry.Set(cmd.Context(), app.Config.Env(), usecase.ConfigSetParams{
				Kind:  kind,
				Key:   args[1],
				Value: args[2],
				From:  from,
			})
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result)
			}
			return render.NewConfigRenderer(cmd.OutOrStdout()).RenderSet(result)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Account sending the transaction (default owner)")
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var index int64

	cmd := &cobra.Command{
		Use:   "get <kind> <key>",
		Short: "Read a registry value",
		Long:  `Read a registry value. Unset keys read as the zero value of their kind.`,
		Example: `  kiki config get address KKT
  kiki config get uintArray PRICES --index 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			kind, err := domain.ParseConfigValueKind(args[0])
			if err != nil {
				return err
			}

			params := usecase.ConfigGetParams{Kind: kind, Key: args[1]}
			if cmd.Flags().Changed("index") {
				if !kind.IsArray() {
					return fmt.Errorf("--index only applies to array kinds")
				}
				params.Index = big.NewInt(index)
			}

			entry, err := app.ConfigRegistry.Get(cmd.Context(), app.Config.Env(), params)
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), entry)
			}
			return render.NewConfigRenderer(cmd.OutOrStdout()).RenderEntry(entry)
		},
	}

	cmd.Flags().Int64Var(&index, "index", 0, "Read a single element of an array value")
	return cmd
}

func newConfigRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "register <name> <address>",
		Short:   "Record a contract address under a name",
		Long:    `Shorthand for "config set address <name> <address>", sent from the owner account.`,
		Example: `  kiki config register RECEIVER 0x70997970C51812dc3A010C7d01b50e0d17dc79C8`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ConfigRegistry.Register(cmd.Context(), app.Config.Env(), args[0], common.HexToAddress(args[1]))
			if err != nil {
				return err
			}
			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result)
			}
			return render.NewConfigRenderer(cmd.OutOrStdout()).RenderSet(result)
		},
	}
}
