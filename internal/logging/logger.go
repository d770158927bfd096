package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/wire"
	"github.com/kikiverse/kiki-deploy/internal/domain/config"
)

var LoggingSet = wire.NewSet(
	NewLogger,
)

const moduleDir = "kiki-deploy/"

// NewLogger builds the process logger. Diagnostics go to stderr so stdout stays clean for
// tables and --json documents; with --json the diagnostics are JSON lines too.
func NewLogger(cfg *config.RuntimeConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(os.Getenv("KIKI_LOG_LEVEL"), slog.LevelInfo),
		ReplaceAttr: replaceAttr,
	}

	if cfg != nil && cfg.Debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	var handler slog.Handler
	if cfg != nil && cfg.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	log := slog.New(handler)
	if cfg != nil && cfg.Network != nil {
		log = log.With("network", cfg.Network.Name)
	}
	return log
}

func parseLevel(val string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		return slog.Attr{}
	case slog.SourceKey:
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = shortPath(source.File)
		}
	}
	return a
}

// shortPath trims a source path to the module-relative form
func shortPath(file string) string {
	if idx := strings.Index(file, moduleDir); idx != -1 {
		return file[idx+len(moduleDir):]
	}
	return filepath.Base(file)
}
