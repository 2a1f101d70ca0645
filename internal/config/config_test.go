package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quill.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"

[generation]
quality_threshold = 80
max_iterations = 2

[[providers]]
name = "stub"
kind = "stub"
priority = 0
local = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config file to be found, resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Generation.QualityThreshold != 80 {
		t.Fatalf("expected quality threshold 80, got %d", cfg.Generation.QualityThreshold)
	}
	if cfg.Generation.MaxIterations != 2 {
		t.Fatalf("expected max iterations 2, got %d", cfg.Generation.MaxIterations)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != "stub" {
		t.Fatalf("expected file providers to replace defaults, got %#v", cfg.Providers)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for absent file")
	}
	if cfg.Generation.QualityThreshold != defaultQualityThreshold {
		t.Fatalf("expected default threshold, got %d", cfg.Generation.QualityThreshold)
	}
}

func TestNormalizeSortsProvidersByPriority(t *testing.T) {
	cfg := Config{
		Providers: []Provider{
			{Name: "paid", Kind: "openai_compat", BaseURL: "https://x.test", Model: "m", Priority: 10},
			{Name: "local", Kind: "ollama", BaseURL: "http://127.0.0.1:11434", Priority: 0, Local: true},
		},
	}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if cfg.Providers[0].Name != "local" {
		t.Fatalf("expected local provider first, got %q", cfg.Providers[0].Name)
	}
}

func TestNormalizeZeroesLocalCost(t *testing.T) {
	cfg := Config{
		Providers: []Provider{
			{Name: "local", Kind: "ollama", BaseURL: "http://127.0.0.1:11434", Local: true, CostPerKiloTok: 2},
		},
	}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if cfg.Providers[0].CostPerKiloTok != 0 {
		t.Fatalf("expected zero cost for local provider, got %v", cfg.Providers[0].CostPerKiloTok)
	}
}

func TestValidateRejectsBadProvider(t *testing.T) {
	cases := []struct {
		name     string
		provider Provider
	}{
		{"missing name", Provider{Kind: "stub"}},
		{"unknown kind", Provider{Name: "x", Kind: "grpc"}},
		{"missing base url", Provider{Name: "x", Kind: "openai_compat", Model: "m"}},
		{"missing model", Provider{Name: "x", Kind: "openai_compat", BaseURL: "https://x.test"}},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.Providers = []Provider{tc.provider}
		if err := cfg.normalize(); err != nil {
			t.Fatalf("%s: normalize failed: %v", tc.name, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestProviderAPIKeyFromEnv(t *testing.T) {
	t.Setenv("QUILL_OPENROUTER_API_KEY", "secret")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	for _, p := range cfg.Providers {
		if p.Name == "openrouter" && p.APIKey != "secret" {
			t.Fatalf("expected env api key to apply, got %q", p.APIKey)
		}
	}
}
