package interactive

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/kikiverse/kiki-deploy/internal/domain/config"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

// ErrNonInteractive is returned when confirmation is required but prompting is disabled
var ErrNonInteractive = errors.New("confirmation required in non-interactive mode, pass --yes")

// Confirmer asks yes/no questions on the terminal
type Confirmer struct {
	config *config.RuntimeConfig
	// run is swapped in tests
	run func(prompt promptui.Prompt) (string, error)
}

// NewConfirmer creates a new terminal confirmer
func NewConfirmer(cfg *config.RuntimeConfig) *Confirmer {
	return &Confirmer{
		config: cfg,
		run: func(p promptui.Prompt) (string, error) {
			return p.Run()
		},
	}
}

// Confirm returns true when the user accepts. Declining is not an error.
func (c *Confirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if c.config.NonInteractive {
		return false, ErrNonInteractive
	}

	_, err := c.run(promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	})
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

// Ensure the adapter implements the interface
var _ usecase.Confirmer = (*Confirmer)(nil)
