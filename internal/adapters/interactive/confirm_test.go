package interactive

import (
	"context"
	"errors"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiverse/kiki-deploy/internal/domain/config"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name    string
		answer  error
		want    bool
		wantErr bool
	}{
		{name: "accepted", want: true},
		{name: "declined", answer: promptui.ErrAbort},
		{name: "interrupted", answer: promptui.ErrInterrupt, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfirmer(&config.RuntimeConfig{})
			var label any
			c.run = func(p promptui.Prompt) (string, error) {
				label = p.Label
				assert.True(t, p.IsConfirm)
				return "y", tt.answer
			}

			ok, err := c.Confirm(context.Background(), "Reset deployments on localhost")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, "Reset deployments on localhost", label)
		})
	}
}

func TestConfirm_NonInteractive(t *testing.T) {
	c := NewConfirmer(&config.RuntimeConfig{NonInteractive: true})
	c.run = func(promptui.Prompt) (string, error) {
		t.Fatal("prompted in non-interactive mode")
		return "", nil
	}

	ok, err := c.Confirm(context.Background(), "Reset?")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrNonInteractive))
}
