package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClampTokenBudget(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero falls back to default", 0, DefaultTokenBudget},
		{"negative falls back to default", -100, DefaultTokenBudget},
		{"below minimum is raised", 1000, MinTokenBudget},
		{"minimum passes through", MinTokenBudget, MinTokenBudget},
		{"typical value passes through", 32000, 32000},
		{"maximum passes through", MaxTokenBudget, MaxTokenBudget},
		{"above maximum is lowered", 1000000, MaxTokenBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampTokenBudget(tt.in); got != tt.want {
				t.Errorf("ClampTokenBudget(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultUserConfig(t *testing.T) {
	cfg := DefaultUserConfig()

	if cfg.Agent.DefaultProvider != "ollama" {
		t.Errorf("expected ollama default provider, got %q", cfg.Agent.DefaultProvider)
	}
	if !cfg.Agent.ApprovalMode {
		t.Error("approval mode should default to on")
	}
	if cfg.Agent.MaxTokenBudget != DefaultTokenBudget {
		t.Errorf("expected default token budget %d, got %d", DefaultTokenBudget, cfg.Agent.MaxTokenBudget)
	}
	if cfg.Agent.RiskyCellThreshold != DefaultRiskyCellThreshold {
		t.Errorf("expected risky cell threshold %d, got %d", DefaultRiskyCellThreshold, cfg.Agent.RiskyCellThreshold)
	}
	if len(cfg.Providers) != 3 {
		t.Fatalf("expected 3 default providers, got %d", len(cfg.Providers))
	}
}

func TestFromUserConfigClampsBudget(t *testing.T) {
	u := DefaultUserConfig()
	u.Agent.MaxTokenBudget = 500

	cfg := fromUserConfig(u)
	if cfg.MaxTokenBudget != MinTokenBudget {
		t.Errorf("expected clamped budget %d, got %d", MinTokenBudget, cfg.MaxTokenBudget)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRIDPILOT_OLLAMA_HOST", "http://remote:11434")
	t.Setenv("GRIDPILOT_MODEL", "qwen2.5:14b")
	t.Setenv("GRIDPILOT_PROVIDER", "anthropic")
	t.Setenv("GRIDPILOT_TOKEN_BUDGET", "999999")
	t.Setenv("GRIDPILOT_PROXY_URL", "http://localhost:8080/relay")

	cfg := fromUserConfig(DefaultUserConfig())
	cfg.applyEnvOverrides()

	if cfg.OllamaHost != "http://remote:11434" {
		t.Errorf("ollama host override not applied: %q", cfg.OllamaHost)
	}
	if cfg.DefaultModel != "qwen2.5:14b" {
		t.Errorf("model override not applied: %q", cfg.DefaultModel)
	}
	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("provider override not applied: %q", cfg.DefaultProvider)
	}
	if cfg.MaxTokenBudget != MaxTokenBudget {
		t.Errorf("budget override should be clamped to %d, got %d", MaxTokenBudget, cfg.MaxTokenBudget)
	}
	if !cfg.ProxyEnabled || cfg.ProxyURL != "http://localhost:8080/relay" {
		t.Errorf("proxy override not applied: enabled=%v url=%q", cfg.ProxyEnabled, cfg.ProxyURL)
	}
}

func TestEnvOverrideIgnoresBadBudget(t *testing.T) {
	t.Setenv("GRIDPILOT_TOKEN_BUDGET", "not-a-number")

	cfg := fromUserConfig(DefaultUserConfig())
	cfg.applyEnvOverrides()

	if cfg.MaxTokenBudget != DefaultTokenBudget {
		t.Errorf("bad budget should leave default %d, got %d", DefaultTokenBudget, cfg.MaxTokenBudget)
	}
}

func TestUserConfigRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	cfg := DefaultUserConfig()
	cfg.Agent.DefaultProvider = "openai"
	cfg.Agent.WebSearchEnabled = true
	cfg.Agent.RiskyCellThreshold = 50
	cfg.Search.Endpoint = "http://localhost:9200/search"

	if err := SaveUserConfig(cfg, dataDir); err != nil {
		t.Fatalf("SaveUserConfig: %v", err)
	}

	loaded, err := LoadUserConfig(dataDir)
	if err != nil {
		t.Fatalf("LoadUserConfig: %v", err)
	}

	if loaded.Agent.DefaultProvider != "openai" {
		t.Errorf("provider not round-tripped: %q", loaded.Agent.DefaultProvider)
	}
	if !loaded.Agent.WebSearchEnabled {
		t.Error("web search flag not round-tripped")
	}
	if loaded.Agent.RiskyCellThreshold != 50 {
		t.Errorf("risky cell threshold not round-tripped: %d", loaded.Agent.RiskyCellThreshold)
	}
	if loaded.Search.Endpoint != "http://localhost:9200/search" {
		t.Errorf("search endpoint not round-tripped: %q", loaded.Search.Endpoint)
	}

	info, err := os.Stat(filepath.Join(dataDir, "config.toml"))
	if err != nil {
		t.Fatalf("stat config.toml: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config.toml permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestProviderByID(t *testing.T) {
	cfg := fromUserConfig(DefaultUserConfig())

	p, ok := cfg.ProviderByID("anthropic")
	if !ok {
		t.Fatal("anthropic provider missing from defaults")
	}
	if p.BaseURL != "https://api.anthropic.com" {
		t.Errorf("unexpected base URL: %q", p.BaseURL)
	}

	if _, ok := cfg.ProviderByID("nope"); ok {
		t.Error("unknown provider should not be found")
	}
}

func TestCredentialStorePlainTextRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	if err := store.Set("openai", "sk-test-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Save(dataDir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewCredentialStore(SecurityPlainText, "")
	if err := reloaded.Load(dataDir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Get("openai"); got != "sk-test-123" {
		t.Errorf("credential not round-tripped: %q", got)
	}

	info, err := os.Stat(filepath.Join(dataDir, "credentials.toml"))
	if err != nil {
		t.Fatalf("stat credentials.toml: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credentials.toml permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestExpandPath(t *testing.T) {
	home := GetHomeDir()
	got := ExpandPath("~/.local/share/gridpilot")
	want := filepath.Join(home, ".local", "share", "gridpilot")
	if got != want {
		t.Errorf("ExpandPath = %q, want %q", got, want)
	}

	if ExpandPath("") != "" {
		t.Error("empty path should stay empty")
	}
}

func TestOpenCredentialStoreDefaultsToPlainText(t *testing.T) {
	store, err := openCredentialStore(SecurityConfig{}, t.TempDir())
	if err != nil {
		t.Fatalf("openCredentialStore: %v", err)
	}
	if store.GetMethod() != SecurityPlainText {
		t.Errorf("expected plaintext method, got %s", store.GetMethod())
	}
}

func TestUpdateProviderField(t *testing.T) {
	dataDir := t.TempDir()

	if err := UpdateProviderField(dataDir, "ollama", "model", "qwen2.5:7b"); err != nil {
		t.Fatalf("UpdateProviderField: %v", err)
	}
	if err := UpdateProviderField(dataDir, "anthropic", "model", "claude-sonnet-4-5"); err != nil {
		t.Fatalf("UpdateProviderField: %v", err)
	}
	if err := UpdateProviderField(dataDir, "ollama", "host", "http://10.0.0.5:11434"); err != nil {
		t.Fatalf("UpdateProviderField: %v", err)
	}

	cfg, err := LoadUserConfig(dataDir)
	if err != nil {
		t.Fatalf("LoadUserConfig: %v", err)
	}
	if cfg.Ollama.DefaultModel != "qwen2.5:7b" {
		t.Errorf("ollama model = %q", cfg.Ollama.DefaultModel)
	}
	if cfg.Ollama.Host != "http://10.0.0.5:11434" {
		t.Errorf("ollama host = %q", cfg.Ollama.Host)
	}
	entry := providerEntry(cfg, "ollama", false)
	if entry == nil || entry.BaseURL != "http://10.0.0.5:11434" {
		t.Errorf("providers entry not kept in sync with ollama host")
	}
	entry = providerEntry(cfg, "anthropic", false)
	if entry == nil || entry.Model != "claude-sonnet-4-5" {
		t.Errorf("anthropic model not persisted")
	}

	if err := UpdateProviderField(dataDir, "ollama", "bogus", "x"); err == nil {
		t.Error("expected error for unknown field")
	}
	if err := UpdateProviderField(dataDir, "nope", "model", "x"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
