package provider

import (
	"fmt"

	"gridpilot/model"
)

// New creates a provider from configuration. This is the single entry
// point the rest of the application uses; nothing outside this package
// names a concrete adapter type.
func New(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg)
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts a user-facing provider ID from settings to
// the factory's ProviderType. Unknown IDs pass through as-is so the
// factory reports them.
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	case "ollama":
		return ProviderTypeOllama
	default:
		return ProviderType(id)
	}
}
