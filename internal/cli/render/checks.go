package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// ChecksRenderer renders capability and access control reports
type ChecksRenderer struct {
	out io.Writer
}

// NewChecksRenderer creates a new checks renderer
func NewChecksRenderer(out io.Writer) *ChecksRenderer {
	return &ChecksRenderer{out: out}
}

// RenderCapabilities renders one row per contract and details every mismatch
func (r *ChecksRenderer) RenderCapabilities(reports []*usecase.CapabilityReport) error {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Contract", "Mutative Functions", "Fallback", "Result"})
	for _, rep := range reports {
		t.AppendRow(table.Row{rep.Contract, strings.Join(rep.Actual, ", "), rep.HasFallback, passLabel(rep.Passed())})
	}
	t.Render()

	for _, rep := range reports {
		if rep.Passed() {
			continue
		}
		if len(rep.Missing) > 0 {
			fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%s is missing %s", rep.Contract, strings.Join(rep.Missing, ", "))))
		}
		if len(rep.Unexpected) > 0 {
			fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%s unexpectedly exposes %s", rep.Contract, strings.Join(rep.Unexpected, ", "))))
		}
		if rep.FallbackMismatch {
			fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%s fallback presence differs, has fallback %t", rep.Contract, rep.HasFallback)))
		}
	}
	return nil
}

// RenderAccess renders one row per contract, method and account
func (r *ChecksRenderer) RenderAccess(checks []*usecase.AccessCheck) error {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Contract", "Method", "Account", "Expected", "Result"})
	for _, c := range checks {
		expected := "revert"
		if c.Allowed {
			expected = "succeed"
		}
		t.AppendRow(table.Row{c.Contract, c.Method, fmt.Sprintf("%s (%s)", c.Role, shortHash(c.Account.Hex())), expected, passLabel(c.Passed)})
	}
	t.Render()

	for _, c := range checks {
		if !c.Passed && c.Error != nil {
			fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%s.%s as %s: %v", c.Contract, c.Method, c.Role, c.Error)))
		}
	}
	return nil
}
