// Package config loads the CLI's settings: defaults, then an optional
// TOML file (--config), then environment variables, each layer
// overriding the last — the same precedence and BurntSushi/toml
// plumbing the teacher's config package uses.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	codex "github.com/samooth/open-codex-sub001"
)

type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Approval ApprovalConfig `toml:"approval"`
	Sandbox  SandboxConfig  `toml:"sandbox"`
	Observer ObserverConfig `toml:"observer"`
	Debug    bool           `toml:"debug"`
}

type ProviderConfig struct {
	Name    string `toml:"name"` // "openai", "openrouter", ...
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type WorkspaceConfig struct {
	Path string `toml:"path"`
}

type ApprovalConfig struct {
	Policy string `toml:"policy"` // "suggest", "auto-edit", "full-auto"
}

type SandboxConfig struct {
	Kind        string `toml:"kind"` // "none", "seatbelt", "docker"
	DockerImage string `toml:"docker_image"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with every field set to its baseline value.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		Provider: ProviderConfig{
			Name:    "openai",
			Model:   "gpt-4o",
			BaseURL: "https://api.openai.com/v1",
		},
		Workspace: WorkspaceConfig{Path: cwd},
		Approval:  ApprovalConfig{Policy: "suggest"},
		Sandbox:   SandboxConfig{Kind: "none"},
	}
}

// Load reads config: defaults -> TOML file (if path is non-empty and
// exists) -> environment variables, each layer overriding the last.
func Load(path string) Config {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = toml.Unmarshal(data, &cfg)
		}
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("CODEX_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("CODEX_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("CODEX_WORKSPACE"); v != "" {
		cfg.Workspace.Path = v
	}
	if v := os.Getenv("CODEX_APPROVAL"); v != "" {
		cfg.Approval.Policy = v
	}
	if v := os.Getenv("CODEX_SANDBOX"); v != "" {
		cfg.Sandbox.Kind = v
	}
	if v := os.Getenv("DEBUG"); v == "1" || v == "true" {
		cfg.Debug = true
	}

	return cfg
}

// ApprovalPolicy parses the configured approval policy string, defaulting
// to ApprovalSuggest for an empty or unrecognized value.
func (c Config) ApprovalPolicy() codex.ApprovalPolicy {
	switch c.Approval.Policy {
	case "auto-edit":
		return codex.ApprovalAutoEdit
	case "full-auto":
		return codex.ApprovalFullAuto
	default:
		return codex.ApprovalSuggest
	}
}
