package config

import (
	"os"
	"path/filepath"
	"testing"

	codex "github.com/samooth/open-codex-sub001"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Provider.Name != "openai" {
		t.Errorf("expected openai, got %s", cfg.Provider.Name)
	}
	if cfg.Approval.Policy != "suggest" {
		t.Errorf("expected suggest, got %s", cfg.Approval.Policy)
	}
	if cfg.Sandbox.Kind != "none" {
		t.Errorf("expected none, got %s", cfg.Sandbox.Kind)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[provider]
name = "openrouter"
model = "claude-x"

[approval]
policy = "full-auto"
`), 0644)

	cfg := Load(path)
	if cfg.Provider.Name != "openrouter" {
		t.Errorf("expected openrouter, got %s", cfg.Provider.Name)
	}
	if cfg.Provider.Model != "claude-x" {
		t.Errorf("expected claude-x, got %s", cfg.Provider.Model)
	}
	if cfg.Approval.Policy != "full-auto" {
		t.Errorf("expected full-auto, got %s", cfg.Approval.Policy)
	}
	// Defaults preserved for unset fields.
	if cfg.Sandbox.Kind != "none" {
		t.Errorf("default sandbox kind should be preserved, got %s", cfg.Sandbox.Kind)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("CODEX_MODEL", "env-model")

	cfg := Load("/nonexistent/path.toml")
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "env-model" {
		t.Errorf("expected env-model, got %s", cfg.Provider.Model)
	}
}

func TestApprovalPolicy(t *testing.T) {
	cases := map[string]codex.ApprovalPolicy{
		"suggest":   codex.ApprovalSuggest,
		"auto-edit": codex.ApprovalAutoEdit,
		"full-auto": codex.ApprovalFullAuto,
		"":          codex.ApprovalSuggest,
		"bogus":     codex.ApprovalSuggest,
	}
	for policy, want := range cases {
		cfg := Config{Approval: ApprovalConfig{Policy: policy}}
		if got := cfg.ApprovalPolicy(); got != want {
			t.Errorf("policy %q: got %v want %v", policy, got, want)
		}
	}
}
