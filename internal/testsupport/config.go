package testsupport

import (
	"path/filepath"
	"testing"

	"quill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Providers = []config.Provider{
		{Name: "stub", Kind: "stub", Priority: 0, Local: true},
	}
	cfg.Executor.PollInterval = 1
	cfg.Executor.ErrorRetryInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithProviders overrides the provider chain on the test config.
func WithProviders(providers ...config.Provider) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Providers = providers
	}
}

// WithQualityThreshold overrides the critique loop threshold.
func WithQualityThreshold(threshold int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Generation.QualityThreshold = threshold
	}
}
