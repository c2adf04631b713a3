package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// StreamCallback receives incremental text while a completion is being
// produced. Purely a UX affordance: the final Completion content is
// authoritative and must not depend on whether a callback was set.
type StreamCallback func(chunk string)

// CompletionRequest is the uniform request every adapter accepts.
// Credentials and proxy routing are bound at adapter construction, not per
// request; the request carries only per-call parameters.
type CompletionRequest struct {
	Model       string
	MaxTokens   int
	Messages    []Message
	Tools       []mcptypes.Tool
	Temperature *float64
	OnDelta     StreamCallback
}

// CompletionKind tags the two possible adapter outcomes.
type CompletionKind int

const (
	// CompletionFinal: the model produced a free-text answer.
	CompletionFinal CompletionKind = iota
	// CompletionToolCall: the model requested a tool invocation.
	CompletionToolCall
)

// Completion is the tagged union returned by every adapter: either final
// text or a single tool call, never both. Call is non-nil exactly when
// Kind is CompletionToolCall.
type Completion struct {
	Kind CompletionKind
	Text string
	Call *ToolCall

	// EstimatedOutputTokens is backend-reported usage when available,
	// otherwise a character heuristic over the produced text.
	EstimatedOutputTokens int
}

// ModelInfo describes one model offered by a provider.
type ModelInfo struct {
	Name         string // display name
	InternalName string // full name used in API calls
	Size         int64  // bytes, 0 when the backend does not report size
	Provider     string // provider ID: "openai", "anthropic", "ollama"
}

// Provider abstracts the three supported chat-completion backends behind
// one contract. Implementations normalize role vocabulary, recognize both
// native structured tool calls and the inline-JSON fallback, and surface
// transport failures with status code and truncated body. They never retry
// internally; retries are the orchestrator's responsibility.
type Provider interface {
	// CreateCompletion issues one completion call and blocks until the
	// backend finishes or fails.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// ListModels returns the models available for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model id.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks reachability and credential validity.
	Ping(ctx context.Context) error
}
