package config

import (
	"fmt"
)

// UpdateProviderField updates one provider setting and persists it.
//
// Fields:
//   - Ollama: "host", "model", "enabled"
//   - Cloud providers: "apikey", "model", "enabled"
//
// API keys go to the credential store; everything else lands in
// config.toml.
func UpdateProviderField(dataDir, providerID, fieldName, value string) error {
	if fieldName == "apikey" {
		return updateAPIKey(dataDir, providerID, value)
	}

	cfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch providerID {
	case "ollama":
		switch fieldName {
		case "host":
			cfg.Ollama.Host = value
			if entry := providerEntry(cfg, "ollama", false); entry != nil {
				// Keep the [[providers]] entry in sync.
				entry.BaseURL = value
			}
		case "model":
			cfg.Ollama.DefaultModel = value
		case "enabled":
			providerEntry(cfg, providerID, true).Enabled = value == "true"
		default:
			return fmt.Errorf("unknown field for ollama: %s", fieldName)
		}

	case "anthropic", "openai":
		switch fieldName {
		case "model":
			providerEntry(cfg, providerID, true).Model = value
		case "enabled":
			providerEntry(cfg, providerID, true).Enabled = value == "true"
		default:
			return fmt.Errorf("unknown field for %s: %s", providerID, fieldName)
		}

	default:
		return fmt.Errorf("unknown provider: %s", providerID)
	}

	if err := SaveUserConfig(cfg, dataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func updateAPIKey(dataDir, providerID, value string) error {
	if providerID != "anthropic" && providerID != "openai" {
		return fmt.Errorf("provider %s does not take an API key", providerID)
	}

	cfg, err := Load()
	if err != nil {
		return fmt.Errorf("failed to load full config for credential update: %w", err)
	}
	if cfg.CredentialStore == nil {
		return nil
	}

	if err := cfg.CredentialStore.Set(providerID, value); err != nil {
		return fmt.Errorf("failed to set API key: %w", err)
	}
	if err := cfg.CredentialStore.Save(dataDir); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}

// providerEntry finds the [[providers]] entry for id, appending a
// default-shaped one when create is set and none exists. The returned
// pointer aliases cfg.Providers and stays valid until the next append.
func providerEntry(cfg *UserConfig, id string, create bool) *ProviderConfig {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == id {
			return &cfg.Providers[i]
		}
	}
	if !create {
		return nil
	}
	cfg.Providers = append(cfg.Providers, ProviderConfig{
		ID:      id,
		Name:    providerDisplayName(id),
		BaseURL: providerDefaultBaseURL(id),
	})
	return &cfg.Providers[len(cfg.Providers)-1]
}

func providerDisplayName(providerID string) string {
	switch providerID {
	case "ollama":
		return "Ollama"
	case "anthropic":
		return "Anthropic"
	case "openai":
		return "OpenAI"
	default:
		return providerID
	}
}

func providerDefaultBaseURL(providerID string) string {
	switch providerID {
	case "anthropic":
		return "https://api.anthropic.com"
	case "openai":
		return "https://api.openai.com/v1"
	case "ollama":
		return "http://localhost:11434"
	default:
		return ""
	}
}
