package testsupport

import (
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Connectivity is assumed online so tests never reach for the network probe.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "courier.sock")
	cfg.Connectivity.AssumeOnline = true

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("prepare test directories: %v", err)
	}
	return &cfg
}

// WithProbe switches the test config to a live connectivity probe against
// the given URL.
func WithProbe(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Connectivity.AssumeOnline = false
		cfg.Connectivity.ProbeURL = url
		cfg.Connectivity.ProbeInterval = 1
		cfg.Connectivity.ProbeTimeout = 1
	}
}

// WithMaxAttempts overrides the default per-item retry budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Delivery.DefaultMaxAttempts = n
	}
}
