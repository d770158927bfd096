package render

import (
	"fmt"
	"io"

	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// ConfigRenderer renders registry reads and writes
type ConfigRenderer struct {
	out io.Writer
}

// NewConfigRenderer creates a new config renderer
func NewConfigRenderer(out io.Writer) *ConfigRenderer {
	return &ConfigRenderer{out: out}
}

// RenderEntry renders a value read from the registry
func (r *ConfigRenderer) RenderEntry(entry *usecase.ConfigEntry) error {
	fmt.Fprintf(r.out, "%s %s\n", entry.Key, formatValue(entry.Value))
	fmt.Fprintf(r.out, "  kind:     %s\n", entry.Kind)
	fmt.Fprintf(r.out, "  key hash: %s\n", entry.KeyHash.Hex())
	fmt.Fprintf(r.out, "  registry: %s\n", entry.Registry.Hex())
	return nil
}

// RenderSet renders the result of a registry write
func (r *ConfigRenderer) RenderSet(result *usecase.ConfigSetResult) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Set %s %s to %s", result.Kind, result.Key, formatValue(result.Value))))
	fmt.Fprintf(r.out, "📝 tx: %s\n", result.TxHash.Hex())
	return nil
}

func formatValue(v any) string {
	if values, ok := v.([]any); ok {
		out := "["
		for i, e := range values {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprint(e)
		}
		return out + "]"
	}
	return fmt.Sprint(v)
}
