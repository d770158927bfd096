package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kikiverse/kiki-deploy/internal/domain/config"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		debug bool
		want  slog.Level
	}{
		{name: "default", want: slog.LevelInfo},
		{name: "env debug", env: "debug", want: slog.LevelDebug},
		{name: "env warning", env: "WARNING", want: slog.LevelWarn},
		{name: "env unknown keeps default", env: "loud", want: slog.LevelInfo},
		{name: "debug flag wins", env: "error", debug: true, want: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KIKI_LOG_LEVEL", tt.env)
			log := NewLogger(&config.RuntimeConfig{Debug: tt.debug})

			assert.True(t, log.Enabled(context.Background(), tt.want))
			if tt.want > slog.LevelDebug {
				assert.False(t, log.Enabled(context.Background(), tt.want-4))
			}
		})
	}
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "internal/usecase/deployer.go", shortPath("/home/dev/src/kiki-deploy/internal/usecase/deployer.go"))
	assert.Equal(t, "main.go", shortPath("/somewhere/else/main.go"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel(" Warn ", slog.LevelInfo))
	assert.Equal(t, slog.LevelError, parseLevel("error", slog.LevelInfo))
	assert.Equal(t, slog.LevelDebug, parseLevel("", slog.LevelDebug))
}
