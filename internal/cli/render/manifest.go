package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// ManifestRenderer renders an upgrade manifest
type ManifestRenderer struct {
	out io.Writer
}

// NewManifestRenderer creates a new manifest renderer
func NewManifestRenderer(out io.Writer) *ManifestRenderer {
	return &ManifestRenderer{out: out}
}

// Render lists the proxies and implementation versions of the manifest
func (r *ManifestRenderer) Render(result *usecase.ManifestResult) error {
	m := result.Manifest
	fmt.Fprintf(r.out, "Manifest for chain %d (format %s)\n\n", result.ChainID, m.ManifestVersion)

	if len(m.Proxies) == 0 && len(m.Impls) == 0 {
		fmt.Fprintln(r.out, "No proxies or implementations recorded")
		return nil
	}

	fmt.Fprintln(r.out, sectionHeaderStyle.Sprint("PROXIES"))
	proxies := table.NewWriter()
	proxies.SetOutputMirror(r.out)
	proxies.SetStyle(table.StyleLight)
	proxies.AppendHeader(table.Row{"Address", "Kind", "Tx"})
	for _, p := range m.Proxies {
		proxies.AppendRow(table.Row{p.Address, p.Kind, shortHash(p.TxHash)})
	}
	proxies.Render()

	versions := make([]string, 0, len(m.Impls))
	for v := range m.Impls {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	fmt.Fprintln(r.out, sectionHeaderStyle.Sprint("IMPLEMENTATIONS"))
	impls := table.NewWriter()
	impls.SetOutputMirror(r.out)
	impls.SetStyle(table.StyleLight)
	impls.AppendHeader(table.Row{"Version", "Address", "Storage Variables"})
	for _, v := range versions {
		impl := m.Impls[v]
		impls.AppendRow(table.Row{shortHash(v), impl.Address, len(impl.Layout.Storage)})
	}
	impls.Render()
	return nil
}
