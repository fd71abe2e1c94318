package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quietroomlabs/haven/pkg/therapy"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Agent.DefaultMode != string(therapy.ModeHumanistic) {
		t.Fatalf("DefaultMode = %q, want humanistic", cfg.Agent.DefaultMode)
	}
	if cfg.Agent.RoutingPolicy != PolicyKeyword {
		t.Fatalf("RoutingPolicy = %q, want keyword", cfg.Agent.RoutingPolicy)
	}
	if cfg.Gateway.Port != 18690 {
		t.Fatalf("Gateway.Port = %d", cfg.Gateway.Port)
	}
	cfg.Providers.UseMock = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with mock provider must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Providers.UseMock = true
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"classifier policy", func(c *Config) { c.Agent.RoutingPolicy = PolicyClassifier }, false},
		{"bad mode", func(c *Config) { c.Agent.DefaultMode = "gestalt" }, true},
		{"bad policy", func(c *Config) { c.Agent.RoutingPolicy = "random" }, true},
		{"negative threshold", func(c *Config) { c.Agent.ClassifyAfterTurns = -1 }, true},
		{"missing key without mock", func(c *Config) { c.Providers.UseMock = false }, true},
		{"key without mock", func(c *Config) {
			c.Providers.UseMock = false
			c.Providers.OpenRouter.APIKey = "sk-test"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Agent.Model != DefaultConfig().Agent.Model {
		t.Fatalf("Model = %q", cfg.Agent.Model)
	}
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"agent": {"default_mode": "cbt", "model": "from-file"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HAVEN_AGENT_MODEL", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Agent.DefaultMode != "cbt" {
		t.Fatalf("DefaultMode = %q, file value lost", cfg.Agent.DefaultMode)
	}
	if cfg.Agent.Model != "from-env" {
		t.Fatalf("Model = %q, env must override the file", cfg.Agent.Model)
	}
}

func TestLoadConfig_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("malformed config must fail to load")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Agent.DefaultMode = "psychoanalytic"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Agent.DefaultMode != "psychoanalytic" {
		t.Fatalf("DefaultMode = %q after round trip", loaded.Agent.DefaultMode)
	}
}

func TestStoragePathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "~/.haven/conversations.db"
	got := cfg.StoragePath()
	if got == cfg.Storage.Path {
		t.Fatalf("home not expanded: %q", got)
	}
	home, _ := os.UserHomeDir()
	if got != filepath.Join(home, ".haven", "conversations.db") {
		t.Fatalf("StoragePath() = %q", got)
	}
}

func TestAPIBaseDefault(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.APIBase() != "https://openrouter.ai/api/v1" {
		t.Fatalf("APIBase() = %q", cfg.APIBase())
	}
	cfg.Providers.OpenRouter.APIBase = "http://localhost:8080/v1"
	if cfg.APIBase() != "http://localhost:8080/v1" {
		t.Fatalf("APIBase() = %q, want the configured value", cfg.APIBase())
	}
}
