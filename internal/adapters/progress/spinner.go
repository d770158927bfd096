package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// SpinnerSink renders deployment progress as one spinner line per step, replaced by a
// summary line when the step finishes
type SpinnerSink struct {
	spinner   *spinner.Spinner
	out       io.Writer
	stepStart time.Time
	current   int
	total     int
}

// NewSpinnerSink creates a spinner sink writing to stderr
func NewSpinnerSink() *SpinnerSink {
	return newSpinnerSink(os.Stderr)
}

func newSpinnerSink(out io.Writer) *SpinnerSink {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false
	return &SpinnerSink{spinner: s, out: out}
}

// OnProgress handles progress events
func (r *SpinnerSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	switch event.Stage {
	case usecase.StagePlan:
		r.stop()
		fmt.Fprintln(r.out, color.New(color.FgCyan).Sprint(event.Message))
	case usecase.StageStep:
		r.current, r.total = event.Current, event.Total
		r.stepStart = time.Now()
		r.start(r.stepLabel(event.Message))
	case usecase.StageTx, usecase.StageValidate:
		if r.spinner.Active() {
			r.spinner.Suffix = fmt.Sprintf(" %s %s", r.stepLabel(""), event.Message)
		} else if event.Spinner {
			r.start(event.Message)
		}
	case usecase.StageStepDone:
		r.stop()
		r.printStep(event)
	case usecase.StageCompleted:
		r.stop()
	default:
		if event.Spinner {
			r.start(event.Message)
		} else {
			r.stop()
		}
	}
}

func (r *SpinnerSink) stepLabel(name string) string {
	label := fmt.Sprintf("[%d/%d]", r.current, r.total)
	if name != "" {
		label += " " + name
	}
	return label
}

func (r *SpinnerSink) printStep(event usecase.ProgressEvent) {
	sr, ok := event.Metadata.(*usecase.StepResult)
	if !ok || sr == nil {
		return
	}

	var icon string
	var c *color.Color
	switch sr.Outcome {
	case domain.StepDeployed, domain.StepUpgraded:
		icon, c = "✓", color.New(color.FgGreen)
	case domain.StepReused, domain.StepSkipped:
		icon, c = "⊘", color.New(color.FgWhite, color.Faint)
	default:
		icon, c = "✗", color.New(color.FgRed)
	}

	line := fmt.Sprintf("%s %s %s", icon, r.stepLabel(sr.Name), c.Sprint(sr.Outcome))
	if sr.Address != "" {
		line += " " + color.New(color.FgBlue).Sprint(sr.Address)
	}
	if sr.Transactions > 0 {
		line += fmt.Sprintf(" (%d tx, %s)", sr.Transactions, time.Since(r.stepStart).Round(time.Millisecond))
	}
	fmt.Fprintln(r.out, line)
	if sr.Error != nil {
		fmt.Fprintln(r.out, color.New(color.FgRed).Sprintf("  %v", sr.Error))
	}
}

func (r *SpinnerSink) start(suffix string) {
	r.spinner.Suffix = " " + suffix
	if !r.spinner.Active() {
		r.spinner.Start()
	}
}

func (r *SpinnerSink) stop() {
	if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// Info prints an info message
func (r *SpinnerSink) Info(message string) {
	r.print(color.New(color.FgCyan), message)
}

// Error prints an error message
func (r *SpinnerSink) Error(message string) {
	r.print(color.New(color.FgRed), message)
}

func (r *SpinnerSink) print(c *color.Color, message string) {
	// Stop spinner temporarily
	wasActive := r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	fmt.Fprintln(r.out, c.Sprint(message))
	if wasActive {
		r.spinner.Start()
	}
}

var _ usecase.ProgressSink = (*SpinnerSink)(nil)
