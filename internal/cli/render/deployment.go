package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// DeploymentRenderer renders detailed information about a single deployment
type DeploymentRenderer struct {
	out io.Writer
}

// NewDeploymentRenderer creates a new deployment renderer
func NewDeploymentRenderer(out io.Writer) *DeploymentRenderer {
	return &DeploymentRenderer{out: out}
}

// RenderDeployment renders detailed deployment information
func (r *DeploymentRenderer) RenderDeployment(details *usecase.DeploymentDetails) error {
	deployment := details.Deployment

	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Deployment: %s\n", deployment.Name)
	fmt.Fprintln(r.out, strings.Repeat("=", 80))

	fmt.Fprintln(r.out, "\nBasic Information:")
	fmt.Fprintf(r.out, "  Contract: %s\n", color.New(color.FgYellow).Sprint(deployment.ContractName))
	fmt.Fprintf(r.out, "  Address: %s\n", deployment.Address)
	fmt.Fprintf(r.out, "  Type: %s\n", deployment.Type)
	if len(deployment.Args) > 0 {
		fmt.Fprintln(r.out, "  Constructor Args:")
		for i, arg := range deployment.Args {
			fmt.Fprintf(r.out, "    %d. %v\n", i, arg)
		}
	}

	if info := deployment.ProxyInfo; info != nil {
		fmt.Fprintln(r.out, "\nProxy Information:")
		fmt.Fprintf(r.out, "  Kind: %s\n", info.Kind)

		impl := info.Implementation
		if details.Implementation != nil {
			impl = fmt.Sprintf("%s at %s",
				color.New(color.FgYellow, color.Bold).Sprint(details.Implementation.ContractName),
				info.Implementation)
		}
		fmt.Fprintf(r.out, "  Implementation: %s\n", impl)
		if details.LiveImplementation != "" {
			live := details.LiveImplementation
			if details.Drift {
				live = color.New(color.FgRed).Sprintf("%s (differs from the record)", live)
			}
			fmt.Fprintf(r.out, "  Live Implementation: %s\n", live)
		}
		if info.Admin != "" {
			fmt.Fprintf(r.out, "  Admin: %s\n", info.Admin)
		}
		if len(info.History) > 0 {
			fmt.Fprintln(r.out, "  Upgrade History:")
			for i, upgrade := range info.History {
				fmt.Fprintf(r.out, "    %d. %s (upgraded at %s)\n",
					i+1, upgrade.Implementation, upgrade.UpgradedAt.Format("2006-01-02 15:04:05"))
			}
		}
	}

	fmt.Fprintln(r.out, "\nTransaction Information:")
	fmt.Fprintf(r.out, "  Hash: %s\n", deployment.TransactionHash)
	if deployment.BlockNumber > 0 {
		fmt.Fprintf(r.out, "  Block: %d\n", deployment.BlockNumber)
	}
	if deployment.BytecodeHash != "" {
		fmt.Fprintf(r.out, "  Bytecode Hash: %s\n", deployment.BytecodeHash)
	}

	fmt.Fprintln(r.out, "\nTimestamps:")
	fmt.Fprintf(r.out, "  Created: %s\n", deployment.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.out, "  Updated: %s\n", deployment.UpdatedAt.Format("2006-01-02 15:04:05"))

	return nil
}
