package render

import (
	"fmt"
	"io"
	"regexp"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// Color styles for table format
var (
	networkBg          = color.BgCyan
	networkHeader      = color.New(networkBg, color.FgBlack)
	networkHeaderBold  = color.New(networkBg, color.FgBlack, color.Bold)
	addressStyle       = color.New(color.FgWhite)
	timestampStyle     = color.New(color.Faint)
	sectionHeaderStyle = color.New(color.Bold, color.FgHiWhite)
	implPrefixStyle    = color.New(color.Faint)
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

type TableData [][]string

// DeploymentsRenderer renders deployment lists as formatted tables with tree-style layout
type DeploymentsRenderer struct {
	out io.Writer
}

// NewDeploymentsRenderer creates a new deployments renderer
func NewDeploymentsRenderer(out io.Writer) *DeploymentsRenderer {
	return &DeploymentsRenderer{out: out}
}

// RenderDeploymentList renders the deployments of one network grouped by type
func (r *DeploymentsRenderer) RenderDeploymentList(result *usecase.DeploymentListResult) error {
	if len(result.Deployments) == 0 {
		fmt.Fprintf(r.out, "No deployments found on %s\n", result.Network)
		return nil
	}

	sections := []struct {
		title string
		typ   models.DeploymentType
	}{
		{"PROXIES", models.ProxyDeployment},
		{"IMPLEMENTATIONS", models.ImplementationDeployment},
		{"SINGLETONS", models.SingletonDeployment},
	}

	grouped := make(map[models.DeploymentType][]*models.Deployment)
	for _, dep := range result.Deployments {
		typ := dep.Type
		if typ == "" {
			typ = models.SingletonDeployment
		}
		grouped[typ] = append(grouped[typ], dep)
	}

	var tables []TableData
	for _, s := range sections {
		if deps := grouped[s.typ]; len(deps) > 0 {
			tables = append(tables, r.buildDeploymentTable(deps))
		}
	}
	widths := calculateTableColumnWidths(tables)

	label := fmt.Sprintf("%-12s", "network:")
	value := fmt.Sprintf("%-30s", result.Network)
	fmt.Fprintln(r.out, networkHeader.Sprintf(" ⛓ %s ", label)+networkHeaderBold.Sprint(value))
	fmt.Fprintln(r.out)

	i := 0
	for _, s := range sections {
		if len(grouped[s.typ]) == 0 {
			continue
		}
		fmt.Fprintln(r.out, sectionHeaderStyle.Sprint(s.title))
		fmt.Fprint(r.out, renderTableWithWidths(tables[i], widths, ""))
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out)
		i++
	}

	fmt.Fprintf(r.out, "Total deployments: %d\n", result.Summary.Total)
	return nil
}

func (r *DeploymentsRenderer) buildDeploymentTable(deployments []*models.Deployment) TableData {
	data := make(TableData, 0, len(deployments)*2)
	for _, dep := range deployments {
		row := []string{
			color.New(color.FgGreen, color.Bold).Sprint(dep.Name),
			addressStyle.Sprint(dep.Address),
			dep.ContractName,
			timestampStyle.Sprint(dep.UpdatedAt.Format("2006-01-02 15:04:05")),
		}
		data = append(data, row)
		if dep.Type == models.ProxyDeployment && dep.ProxyInfo != nil {
			data = append(data, []string{
				implPrefixStyle.Sprint("└─ ") + "implementation",
				addressStyle.Sprint(dep.ProxyInfo.Implementation),
				"",
				"",
			})
		}
	}
	return data
}

// renderTableWithWidths renders a table with specific column widths
func renderTableWithWidths(tableData TableData, columnWidths []int, continuationPrefix string) string {
	if len(tableData) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box = table.BoxStyle{
		PaddingRight: "   ",
	}

	colConfigs := make([]table.ColumnConfig, len(columnWidths))
	for i, width := range columnWidths {
		if i == 0 {
			width += len([]rune(continuationPrefix))
		}
		colConfigs[i] = table.ColumnConfig{
			Number:   i + 1,
			Align:    text.AlignLeft,
			WidthMin: width,
			WidthMax: width,
		}
	}
	t.SetColumnConfigs(colConfigs)

	for _, row := range tableData {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			if i == 0 {
				tableRow[i] = continuationPrefix + cell
			} else {
				tableRow[i] = cell
			}
		}
		t.AppendRow(tableRow)
	}

	return t.Render()
}

// stripAnsiCodes removes ANSI escape sequences from a string
func stripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// calculateTableColumnWidths calculates column widths shared by several tables
func calculateTableColumnWidths(tables []TableData) []int {
	maxCols := 0
	for _, t := range tables {
		for _, row := range t {
			if len(row) > maxCols {
				maxCols = len(row)
			}
		}
	}

	widths := make([]int, maxCols)
	for _, t := range tables {
		for _, row := range t {
			for i, cell := range row {
				if w := len([]rune(stripAnsiCodes(cell))); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	return widths
}

// shortHash abbreviates long hex strings for tables
func shortHash(s string) string {
	if len(s) <= 18 {
		return s
	}
	return s[:10] + "…" + s[len(s)-6:]
}
