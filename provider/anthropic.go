package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"gridpilot/config"
	"gridpilot/model"
	"gridpilot/tokens"
	"gridpilot/tools"
)

// defaultAnthropicMaxTokens is used when the request does not set a
// limit; the Anthropic API requires one.
const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements model.Provider using Anthropic's official
// Go SDK, or the relay path when a proxy is configured.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	relay   *relay
}

// NewAnthropicProvider creates an Anthropic adapter. The API key is
// required unless the relay path is enabled.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	var anthropicModel anthropic.Model
	if cfg.Model == "" {
		anthropicModel = anthropic.ModelClaudeSonnet4_5_20250929
	} else {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	p := &AnthropicProvider{
		model:   anthropicModel,
		baseURL: baseURL,
	}

	if cfg.ProxyEnabled && cfg.ProxyURL != "" {
		p.relay = newRelay(cfg.ProxyURL, ProviderTypeAnthropic)
		return p, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	)
	p.client = &client
	return p, nil
}

// CreateCompletion implements model.Provider.
func (p *AnthropicProvider) CreateCompletion(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
	if p.relay != nil {
		filled := *req
		if filled.Model == "" {
			filled.Model = string(p.model)
		}
		return p.relay.Complete(ctx, &filled)
	}

	modelID := p.model
	if req.Model != "" {
		modelID = anthropic.Model(req.Model)
	}

	anthropicMessages, systemBlocks := convertToAnthropicMessages(req.Messages)

	if len(req.Tools) > 0 {
		instruction := anthropic.TextBlockParam{
			Text: buildToolInstructions(req.Tools),
		}
		systemBlocks = append([]anthropic.TextBlockParam{instruction}, systemBlocks...)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     modelID,
		Messages:  anthropicMessages,
		MaxTokens: maxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = tools.ToAnthropicFormat(req.Tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	msg := anthropic.Message{}

	var content strings.Builder
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("error accumulating message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				content.WriteString(deltaVariant.Text)
				if req.OnDelta != nil {
					req.OnDelta(deltaVariant.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("Anthropic completion failed: %w", err)
	}

	outTokens := int(msg.Usage.OutputTokens)

	if call := extractToolCall(msg.Content); call != nil {
		return &model.Completion{
			Kind:                  model.CompletionToolCall,
			Call:                  call,
			EstimatedOutputTokens: outTokens,
		}, nil
	}

	text := content.String()
	if inline, ok := ParseInlineToolCall(text, req.Tools); ok {
		if config.Debug {
			config.DebugLog.Printf("[Anthropic] inline tool-call fallback fired for %s", inline.Name)
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

// extractToolCall pulls the first tool-use block out of Anthropic message
// content.
func extractToolCall(content []anthropic.ContentBlockUnion) *model.ToolCall {
	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			continue
		}
		return &model.ToolCall{
			Name:      toolUse.Name,
			Arguments: args,
		}
	}
	return nil
}

// ListModels implements model.Provider. Anthropic has no models-list API,
// so this returns a curated list of known models.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Size:         0,
			Provider:     "anthropic",
		})
	}
	return result, nil
}

// GetModel implements model.Provider.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// SetModel implements model.Provider.
func (p *AnthropicProvider) SetModel(modelID string) {
	p.model = anthropic.Model(modelID)
}

// Ping implements model.Provider with a minimal one-token request since
// Anthropic has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	if p.relay != nil {
		return nil
	}
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
