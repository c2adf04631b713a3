package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/gridpilot",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Agent: AgentConfig{
			DefaultProvider:    "ollama",
			ApprovalMode:       true,
			WebSearchEnabled:   false,
			RiskyCellThreshold: DefaultRiskyCellThreshold,
			MaxTokenBudget:     DefaultTokenBudget,
			IterationLimit:     DefaultIterationLimit,
			LoggingEnabled:     true,
		},
		Ollama: OllamaConfig{
			Host:         "http://localhost:11434",
			DefaultModel: "llama3.1:latest",
		},
		Security: SecurityConfig{
			Method: string(SecurityPlainText),
		},
		Providers: []ProviderConfig{
			{ID: "openai", Name: "OpenAI", Enabled: false, BaseURL: "https://api.openai.com/v1"},
			{ID: "anthropic", Name: "Anthropic", Enabled: false, BaseURL: "https://api.anthropic.com"},
			{ID: "ollama", Name: "Ollama", Enabled: true, BaseURL: "http://localhost:11434"},
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# GridPilot System Configuration
# Location: ~/.config/gridpilot/settings.toml
# This file uses TOML format: https://toml.io

# Directory where sessions, turn logs and user config are stored
data_directory = "~/.local/share/gridpilot"
`
}

func GenerateUserConfigTemplate() string {
	return `# GridPilot User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[agent]
# Provider used when starting a new session: openai, anthropic or ollama
default_provider = "ollama"

# Extra system prompt text appended to the built-in instructions (optional)
system_prompt = ""

# Ask before applying risky workbook edits
approval_mode = true

# Allow the web_search tool (requires [search] endpoint below)
web_search_enabled = false

# Writes touching more than this many cells always need confirmation
risky_cell_threshold = 25

# Upper bound on estimated request tokens per model call
# Clamped to the 4096..200000 range
max_token_budget = 32000

# Maximum tool iterations within a single turn
iteration_limit = 10

# Record turns and compactions in the local turn log
logging_enabled = true

[ollama]
# Ollama server URL
host = "http://localhost:11434"

# Default model to use when starting a new session
default_model = "llama3.1:latest"

[proxy]
# Relay endpoint for cloud providers; when enabled, requests to OpenAI
# and Anthropic are sent here instead and no API key is required locally
url = ""
enabled = false

[search]
# External web-search endpoint used by the web_search tool
endpoint = ""

[security]
# How API keys are stored: "plaintext" or "ssh_key"
# With ssh_key, credentials are AES-encrypted under your SSH key; set
# ssh_key_path to pick a key, otherwise ~/.ssh is scanned
method = "plaintext"
# ssh_key_path = "~/.ssh/id_ed25519"

[[providers]]
id = "openai"
name = "OpenAI"
enabled = false
base_url = "https://api.openai.com/v1"

[[providers]]
id = "anthropic"
name = "Anthropic"
enabled = false
base_url = "https://api.anthropic.com"

[[providers]]
id = "ollama"
name = "Ollama"
enabled = true
base_url = "http://localhost:11434"
`
}
