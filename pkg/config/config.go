package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/quietroomlabs/haven/pkg/therapy"
)

const (
	PolicyKeyword    = "keyword"
	PolicyClassifier = "classifier"
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Providers ProvidersConfig `json:"providers"`
	Storage   StorageConfig   `json:"storage"`
	Gateway   GatewayConfig   `json:"gateway"`
	Channels  ChannelsConfig  `json:"channels"`
	Checkin   CheckinConfig   `json:"checkin"`
	// KeywordsFile optionally points at a YAML file overriding the
	// built-in crisis/redirection/tag keyword tables.
	KeywordsFile string `json:"keywords_file" env:"HAVEN_KEYWORDS_FILE"`
}

type AgentConfig struct {
	// DefaultMode is the persona every new session starts in.
	DefaultMode string `json:"default_mode" env:"HAVEN_AGENT_DEFAULT_MODE"`
	// RoutingPolicy selects between keyword-triggered redirection and
	// periodic LLM classification ("keyword" or "classifier").
	RoutingPolicy string `json:"routing_policy" env:"HAVEN_AGENT_ROUTING_POLICY"`
	// ClassifyAfterTurns is the minimum recorded turn count before the
	// classifier policy starts calling the responder.
	ClassifyAfterTurns int     `json:"classify_after_turns" env:"HAVEN_AGENT_CLASSIFY_AFTER_TURNS"`
	HistoryLimit       int     `json:"history_limit" env:"HAVEN_AGENT_HISTORY_LIMIT"`
	Model              string  `json:"model" env:"HAVEN_AGENT_MODEL"`
	MaxTokens          int     `json:"max_tokens" env:"HAVEN_AGENT_MAX_TOKENS"`
	Temperature        float64 `json:"temperature" env:"HAVEN_AGENT_TEMPERATURE"`
}

type ProvidersConfig struct {
	OpenRouter ProviderConfig `json:"openrouter"`
	// UseMock swaps the HTTP provider for the deterministic mock, for
	// local runs and tests without credentials.
	UseMock bool `json:"use_mock" env:"HAVEN_PROVIDERS_USE_MOCK"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"HAVEN_PROVIDERS_OPENROUTER_API_KEY"`
	APIBase string `json:"api_base" env:"HAVEN_PROVIDERS_OPENROUTER_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"HAVEN_PROVIDERS_OPENROUTER_PROXY"`
}

type StorageConfig struct {
	// Path is the SQLite database file holding conversation logs.
	Path string `json:"path" env:"HAVEN_STORAGE_PATH"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"HAVEN_GATEWAY_HOST"`
	Port int    `json:"port" env:"HAVEN_GATEWAY_PORT"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string   `json:"token" env:"HAVEN_CHANNELS_DISCORD_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"HAVEN_CHANNELS_DISCORD_ALLOW_FROM"`
}

type CheckinConfig struct {
	Enabled bool `json:"enabled" env:"HAVEN_CHECKIN_ENABLED"`
	// Schedule is a cron expression, validated with gronx at startup.
	Schedule string   `json:"schedule" env:"HAVEN_CHECKIN_SCHEDULE"`
	Users    []string `json:"users" env:"HAVEN_CHECKIN_USERS"`
	Message  string   `json:"message" env:"HAVEN_CHECKIN_MESSAGE"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			DefaultMode:        string(therapy.ModeHumanistic),
			RoutingPolicy:      PolicyKeyword,
			ClassifyAfterTurns: 2,
			HistoryLimit:       5,
			Model:              "openai/gpt-4o-mini",
			MaxTokens:          1024,
			Temperature:        0.7,
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{},
			UseMock:    false,
		},
		Storage: StorageConfig{
			Path: "~/.haven/conversations.db",
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18690,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{AllowFrom: []string{}},
		},
		Checkin: CheckinConfig{
			Enabled:  false,
			Schedule: "0 9 * * *",
			Users:    []string{},
			Message:  "Just checking in. How are you feeling today?",
		},
	}
}

// LoadConfig reads the JSON config at path (missing file means defaults)
// and then applies env overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate enforces startup invariants. Violations here are fatal: a
// session must never begin with an out-of-range mode or an unusable
// provider configuration.
func (c *Config) Validate() error {
	if _, err := therapy.ParseMode(c.Agent.DefaultMode); err != nil {
		return fmt.Errorf("agent.default_mode: %w", err)
	}
	switch c.Agent.RoutingPolicy {
	case PolicyKeyword, PolicyClassifier:
	default:
		return fmt.Errorf("agent.routing_policy: unknown policy %q", c.Agent.RoutingPolicy)
	}
	if c.Agent.ClassifyAfterTurns < 0 {
		return fmt.Errorf("agent.classify_after_turns must not be negative")
	}
	if !c.Providers.UseMock && c.Providers.OpenRouter.APIKey == "" {
		return fmt.Errorf("providers.openrouter.api_key is required (or set providers.use_mock)")
	}
	return nil
}

// DefaultMode returns the configured initial mode. Validate guarantees it
// parses, so failures here fall back to the humanistic default.
func (c *Config) DefaultMode() therapy.Mode {
	mode, err := therapy.ParseMode(c.Agent.DefaultMode)
	if err != nil {
		return therapy.ModeHumanistic
	}
	return mode
}

// StoragePath expands a leading ~ in the configured database path.
func (c *Config) StoragePath() string {
	return expandHome(c.Storage.Path)
}

func (c *Config) APIBase() string {
	if c.Providers.OpenRouter.APIBase != "" {
		return c.Providers.OpenRouter.APIBase
	}
	return "https://openrouter.ai/api/v1"
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
