package logging

import (
	"log/slog"
	"os"
	"path/filepath"

	"courier/internal/config"
)

// NewFromConfig creates a logger using application config defaults. Daemon
// output goes to stdout plus the configured log file when a log directory
// is available.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", OutputPaths: []string{"stdout"}})
	}

	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err == nil {
			outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "courier.log"))
		}
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}
