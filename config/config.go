// Package config loads and persists the application settings: provider
// selection and credentials, safety switches, the token budget and proxy
// routing. The layout follows a two-file scheme: a small system config
// pointing at the data directory, and the user config inside it.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// Token budget bounds. User-supplied budgets are clamped into this range
// so a typo can neither starve the context manager nor blow past what any
// backend accepts.
const (
	MinTokenBudget     = 4096
	MaxTokenBudget     = 200000
	DefaultTokenBudget = 32000
)

// DefaultRiskyCellThreshold is the bulk-write cell count above which a
// write always needs confirmation.
const DefaultRiskyCellThreshold = 25

// DefaultIterationLimit bounds the tool loop within one turn.
const DefaultIterationLimit = 10

// SystemConfig is the small bootstrap file in the config directory; it
// only locates the data directory.
type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// ProviderConfig is one entry in the user config's provider list.
type ProviderConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model,omitempty"`
}

// AgentConfig holds the agent-facing settings.
type AgentConfig struct {
	DefaultProvider    string `toml:"default_provider"`
	SystemPrompt       string `toml:"system_prompt,omitempty"`
	ApprovalMode       bool   `toml:"approval_mode"`
	WebSearchEnabled   bool   `toml:"web_search_enabled"`
	RiskyCellThreshold int    `toml:"risky_cell_threshold"`
	MaxTokenBudget     int    `toml:"max_token_budget"`
	IterationLimit     int    `toml:"iteration_limit"`
	LoggingEnabled     bool   `toml:"logging_enabled"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
}

// ProxyConfig configures the optional credential-shielding relay.
type ProxyConfig struct {
	URL     string `toml:"url"`
	Enabled bool   `toml:"enabled"`
}

// SearchConfig configures the optional external web-search endpoint.
type SearchConfig struct {
	Endpoint string `toml:"endpoint"`
}

// SecurityConfig selects how API keys are stored: "plaintext" (default)
// or "ssh_key" for AES encryption under the user's SSH key.
type SecurityConfig struct {
	Method     string `toml:"method"`
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// UserConfig is the on-disk shape of the user configuration.
type UserConfig struct {
	Agent     AgentConfig      `toml:"agent"`
	Ollama    OllamaConfig     `toml:"ollama"`
	Proxy     ProxyConfig      `toml:"proxy"`
	Search    SearchConfig     `toml:"search"`
	Security  SecurityConfig   `toml:"security"`
	Providers []ProviderConfig `toml:"providers"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory string

	DefaultProvider    string
	SystemPrompt       string
	ApprovalMode       bool
	WebSearchEnabled   bool
	RiskyCellThreshold int
	MaxTokenBudget     int
	IterationLimit     int
	LoggingEnabled     bool

	OllamaHost   string
	DefaultModel string

	ProxyURL       string
	ProxyEnabled   bool
	SearchEndpoint string

	Providers []ProviderConfig

	CredentialStore *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

// DataDir returns the expanded data directory path.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// ProviderByID returns the configured entry for a provider, if any.
func (c *Config) ProviderByID(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// ClampTokenBudget bounds a requested budget to the allowed range.
// Non-positive input falls back to the default.
func ClampTokenBudget(budget int) int {
	if budget <= 0 {
		return DefaultTokenBudget
	}
	if budget < MinTokenBudget {
		return MinTokenBudget
	}
	if budget > MaxTokenBudget {
		return MaxTokenBudget
	}
	return budget
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("GRIDPILOT_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if model := os.Getenv("GRIDPILOT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("GRIDPILOT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if p := os.Getenv("GRIDPILOT_PROVIDER"); p != "" {
		c.DefaultProvider = p
	}
	if budget := os.Getenv("GRIDPILOT_TOKEN_BUDGET"); budget != "" {
		if n, err := strconv.Atoi(budget); err == nil {
			c.MaxTokenBudget = ClampTokenBudget(n)
		}
	}
	if proxy := os.Getenv("GRIDPILOT_PROXY_URL"); proxy != "" {
		c.ProxyURL = proxy
		c.ProxyEnabled = true
	}
}

// CheckDebug reports whether debug logging is requested via environment.
func CheckDebug() bool {
	debug := os.Getenv("GRIDPILOT_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log inside the data directory when debug
// mode is on.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: debug output may contain prompt and range contents.
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (GRIDPILOT_DEBUG=%s) ===", os.Getenv("GRIDPILOT_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load resolves the runtime configuration: defaults, then the config
// files (created with defaults on first run), then environment overrides.
func Load() (*Config, error) {
	cfg := fromUserConfig(DefaultUserConfig())
	cfg.DataDirectory = DefaultSystemConfig().DataDirectory

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	cfg.DataDirectory = systemCfg.DataDirectory
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	resolved := fromUserConfig(userCfg)
	resolved.DataDirectory = cfg.DataDirectory
	resolved.applyEnvOverrides()

	store, err := openCredentialStore(userCfg.Security, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	resolved.CredentialStore = store

	return resolved, nil
}

// openCredentialStore builds and loads the credential store per the
// [security] section. With the ssh_key method and no configured key
// path, the first key found under ~/.ssh is used.
func openCredentialStore(sec SecurityConfig, dataDir string) (*CredentialStore, error) {
	method := SecurityMethod(sec.Method)
	if method == "" {
		method = SecurityPlainText
	}

	keyPath := ExpandPath(sec.SSHKeyPath)
	if method == SecuritySSHKey && keyPath == "" {
		keys, err := FindSSHKeys()
		if err != nil {
			return nil, fmt.Errorf("failed to scan for SSH keys: %w", err)
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("security method ssh_key but no key found under ~/.ssh")
		}
		keyPath = keys[0]
	}

	store := NewCredentialStore(method, keyPath)
	if pass := os.Getenv("GRIDPILOT_SSH_PASSPHRASE"); pass != "" {
		store.SetPassphrase(pass)
	}
	if err := store.Load(dataDir); err != nil {
		return nil, err
	}
	return store, nil
}

func fromUserConfig(u *UserConfig) *Config {
	return &Config{
		DefaultProvider:    u.Agent.DefaultProvider,
		SystemPrompt:       u.Agent.SystemPrompt,
		ApprovalMode:       u.Agent.ApprovalMode,
		WebSearchEnabled:   u.Agent.WebSearchEnabled,
		RiskyCellThreshold: u.Agent.RiskyCellThreshold,
		MaxTokenBudget:     ClampTokenBudget(u.Agent.MaxTokenBudget),
		IterationLimit:     u.Agent.IterationLimit,
		LoggingEnabled:     u.Agent.LoggingEnabled,
		OllamaHost:         u.Ollama.Host,
		DefaultModel:       u.Ollama.DefaultModel,
		ProxyURL:           u.Proxy.URL,
		ProxyEnabled:       u.Proxy.Enabled,
		SearchEndpoint:     u.Search.Endpoint,
		Providers:          u.Providers,
	}
}
