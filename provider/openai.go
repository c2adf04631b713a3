package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"gridpilot/config"
	"gridpilot/model"
	"gridpilot/tokens"
	"gridpilot/tools"
)

// OpenAIProvider implements model.Provider using OpenAI's official Go
// SDK, or the relay path when a proxy is configured.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	relay   *relay
}

// NewOpenAIProvider creates an OpenAI adapter. The API key is required
// unless the relay path is enabled, in which case the proxy holds it.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	modelID := cfg.Model
	if modelID == "" {
		modelID = "gpt-4o-mini"
	}

	p := &OpenAIProvider{
		model:   modelID,
		baseURL: baseURL,
	}

	if cfg.ProxyEnabled && cfg.ProxyURL != "" {
		p.relay = newRelay(cfg.ProxyURL, ProviderTypeOpenAI)
		return p, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	p.client = openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	)
	return p, nil
}

// reasoningModelPrefixes lists the model families that reject the
// temperature parameter and take reasoning_effort instead.
var reasoningModelPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

func isReasoningModel(modelID string) bool {
	lower := strings.ToLower(modelID)
	for _, prefix := range reasoningModelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// reasoningEffortFor maps a requested temperature onto the effort scale
// reasoning models accept. Exactly one of temperature or reasoning_effort
// is ever sent.
func reasoningEffortFor(temperature *float64) shared.ReasoningEffort {
	if temperature == nil {
		return shared.ReasoningEffortMedium
	}
	switch {
	case *temperature < 0.34:
		return shared.ReasoningEffortLow
	case *temperature < 0.67:
		return shared.ReasoningEffortMedium
	default:
		return shared.ReasoningEffortHigh
	}
}

// CreateCompletion implements model.Provider.
func (p *OpenAIProvider) CreateCompletion(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
	if p.relay != nil {
		return p.relay.Complete(ctx, p.withModel(req))
	}

	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}

	messages := req.Messages
	if len(req.Tools) > 0 {
		instruction := model.Message{
			Role:    model.RoleSystem,
			Content: buildToolInstructions(req.Tools),
		}
		messages = append([]model.Message{instruction}, messages...)
	}

	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(modelID),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if isReasoningModel(modelID) {
		params.ReasoningEffort = reasoningEffortFor(req.Temperature)
	} else if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = tools.ToOpenAIFormat(req.Tools)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	var call *model.ToolCall
	var content strings.Builder

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok && call == nil {
			call = &model.ToolCall{
				Name:      tool.Name,
				Arguments: ParseToolArguments(tool.Arguments),
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			delta := chunk.Choices[0].Delta.Content
			content.WriteString(delta)
			if req.OnDelta != nil && call == nil {
				req.OnDelta(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("OpenAI completion failed: %w", err)
	}

	outTokens := int(acc.Usage.CompletionTokens)

	if call != nil {
		return &model.Completion{
			Kind:                  model.CompletionToolCall,
			Call:                  call,
			EstimatedOutputTokens: outTokens,
		}, nil
	}

	text := content.String()
	if inline, ok := ParseInlineToolCall(text, req.Tools); ok {
		if config.Debug {
			config.DebugLog.Printf("[OpenAI] inline tool-call fallback fired for %s", inline.Name)
		}
		return &model.Completion{
			Kind:                  model.CompletionToolCall,
			Call:                  inline,
			EstimatedOutputTokens: outTokens,
		}, nil
	}

	if outTokens == 0 {
		outTokens = tokens.Estimate(text)
	}
	return &model.Completion{
		Kind:                  model.CompletionFinal,
		Text:                  text,
		EstimatedOutputTokens: outTokens,
	}, nil
}

// withModel fills the request's model from the adapter default for the
// relay path.
func (p *OpenAIProvider) withModel(req *model.CompletionRequest) *model.CompletionRequest {
	if req.Model != "" {
		return req
	}
	filled := *req
	filled.Model = p.model
	return &filled
}

// ListModels implements model.Provider.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Size:         0,
			Provider:     "openai",
		})
	}
	return result, nil
}

// GetModel implements model.Provider.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// SetModel implements model.Provider.
func (p *OpenAIProvider) SetModel(modelID string) {
	p.model = modelID
}

// Ping implements model.Provider by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if p.relay != nil {
		return nil
	}
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}
