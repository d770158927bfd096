package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// DeployRenderer renders plan runs, proxy deployments and VRF bootstraps
type DeployRenderer struct {
	out io.Writer
}

// NewDeployRenderer creates a new deploy renderer
func NewDeployRenderer(out io.Writer) *DeployRenderer {
	return &DeployRenderer{out: out}
}

// RenderPlan lists the steps a run would execute, in order
func (r *DeployRenderer) RenderPlan(steps []*domain.Step) error {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Step", "Contract", "Depends On", "Tags"})
	for i, s := range steps {
		contract := s.ContractName()
		if s.Proxy != nil {
			contract += " (proxy)"
		}
		if s.DevOnly {
			contract += " (dev)"
		}
		t.AppendRow(table.Row{i + 1, s.Name, contract, joinOrDash(s.Deps), joinOrDash(s.Tags)})
	}
	t.Render()
	return nil
}

// RenderResult renders the per-step outcome of a plan run
func (r *DeployRenderer) RenderResult(result *usecase.DeployResult) error {
	fmt.Fprintln(r.out)
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Step", "Contract", "Outcome", "Address", "Txs"})
	for _, s := range result.Steps {
		t.AppendRow(table.Row{s.Name, s.Contract, outcomeLabel(s.Outcome), s.Address, s.Transactions})
	}
	t.Render()

	summary := fmt.Sprintf("%d deployed, %d transactions on %s (chain %d)",
		result.Deployed, result.Transactions, result.Network, result.ChainID)
	if result.Transactions == 0 {
		summary = fmt.Sprintf("Nothing to do on %s, everything is up to date", result.Network)
	}
	fmt.Fprintln(r.out, FormatSuccess(summary))
	return nil
}

// RenderProxy renders a proxied deployment or upgrade
func (r *DeployRenderer) RenderProxy(result *usecase.ProxyResult) error {
	dep := result.Deployment
	fmt.Fprintf(r.out, "%s %s\n", color.New(color.Bold).Sprint(dep.Name), outcomeLabel(result.Outcome))
	fmt.Fprintf(r.out, "  proxy:          %s\n", dep.Address)
	if result.Implementation != nil {
		fmt.Fprintf(r.out, "  implementation: %s (%s)\n", result.Implementation.Address, result.Implementation.ContractName)
	}
	if dep.ProxyInfo != nil && dep.ProxyInfo.Admin != "" {
		fmt.Fprintf(r.out, "  admin:          %s\n", dep.ProxyInfo.Admin)
	}
	r.renderVersion(result.Version)
	fmt.Fprintf(r.out, "  transactions:   %d\n", result.Transactions)
	if result.ManifestSaved {
		fmt.Fprintln(r.out, FormatSuccess("Manifest updated"))
	}
	return nil
}

// RenderValidation renders a successful upgrade safety check
func (r *DeployRenderer) RenderValidation(name string, version models.Version) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("%s is upgrade safe", name)))
	r.renderVersion(version)
	return nil
}

func (r *DeployRenderer) renderVersion(v models.Version) {
	if v.WithoutMetadata == "" {
		return
	}
	fmt.Fprintf(r.out, "  version:        %s\n", shortHash(v.WithoutMetadata))
}

// RenderVRF renders a bootstrapped VRF coordinator
func (r *DeployRenderer) RenderVRF(result *usecase.VRFResult) error {
	fmt.Fprintf(r.out, "%s %s\n", color.New(color.Bold).Sprint(result.Coordinator.Name), outcomeLabel(result.Outcome))
	fmt.Fprintf(r.out, "  coordinator:  %s\n", result.Coordinator.Address)
	fmt.Fprintf(r.out, "  subscription: %s\n", result.SubscriptionID)
	if result.Funded != nil {
		fmt.Fprintf(r.out, "  funded:       %s\n", result.Funded)
	}
	fmt.Fprintf(r.out, "  transactions: %d\n", result.Transactions)
	return nil
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}
