// Package provider implements the model.Provider contract for the three
// supported chat-completion backends: OpenAI, Anthropic and a local
// Ollama server.
//
// Each adapter normalizes its backend's protocol into the uniform
// request/response contract defined in the model package: role vocabulary
// translation, native structured tool calls plus the inline-JSON fallback,
// per-family parameter quirks, and a synthesized streaming illusion where
// the call path has no native incremental output.
//
// The Provider interface itself is defined in the model package
// (model/provider.go) to avoid import cycles; this package implements it.
package provider

// ProviderType identifies the adapter implementation.
type ProviderType string

const (
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOllama    ProviderType = "ollama"
)

// Config holds what an adapter needs at construction time. Credentials
// and proxy routing are bound here, not per request.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama

	// ProxyURL is a local relay endpoint. When ProxyEnabled is set,
	// cloud requests are wrapped in an envelope and POSTed there instead
	// of going to the backend directly, so the raw credential never has
	// to leave the proxy boundary. Ollama is local and never proxied.
	ProxyURL     string
	ProxyEnabled bool
}
