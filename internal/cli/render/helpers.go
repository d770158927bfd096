package render

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kikiverse/kiki-deploy/internal/domain"
)

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", lastCause(message))
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	msg := lastCause(message)
	if len(msg) > 0 {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}
	return color.New(color.FgRed).Sprintf("❌ %s", msg)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// lastCause keeps the innermost message of an error chain
func lastCause(message string) string {
	parts := strings.Split(message, ": ")
	return parts[len(parts)-1]
}

// RenderJSON writes v as indented JSON
func RenderJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var titleCaser = cases.Title(language.English)

// outcomeLabel renders a step outcome with its color
func outcomeLabel(outcome domain.StepOutcome) string {
	label := titleCaser.String(string(outcome))
	switch outcome {
	case domain.StepDeployed, domain.StepUpgraded:
		return color.New(color.FgGreen).Sprint(label)
	case domain.StepReused, domain.StepSkipped:
		return color.New(color.Faint).Sprint(label)
	case domain.StepFailed:
		return color.New(color.FgRed).Sprint(label)
	default:
		return label
	}
}

func passLabel(passed bool) string {
	if passed {
		return color.New(color.FgGreen).Sprint("✓ pass")
	}
	return color.New(color.FgRed).Sprint("✗ fail")
}
