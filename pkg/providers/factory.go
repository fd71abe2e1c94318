package providers

import (
	"fmt"

	"github.com/quietroomlabs/haven/pkg/config"
)

// FromConfig builds the configured provider. Credential validation happens
// in config.Validate before this is called; a missing key here is still an
// error rather than a panic.
func FromConfig(cfg *config.Config) (LLMProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Providers.UseMock {
		return NewMockProvider(), nil
	}
	if cfg.Providers.OpenRouter.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key not configured")
	}
	return NewHTTPProvider(
		cfg.Providers.OpenRouter.APIKey,
		cfg.APIBase(),
		cfg.Providers.OpenRouter.Proxy,
		cfg.Agent.Model,
	), nil
}
