package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"gridpilot/config"
	"gridpilot/model"
	"gridpilot/tokens"
	"gridpilot/tools"
)

// OllamaProvider implements model.Provider against a local Ollama server.
// Ollama runs on the user's machine, so there is no credential and no
// relay path.
type OllamaProvider struct {
	client  *api.Client
	model   string
	baseURL string
}

// NewOllamaProvider creates an Ollama adapter.
func NewOllamaProvider(baseURL, modelID string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelID == "" {
		modelID = "llama3.1:latest"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaProvider{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   modelID,
		baseURL: baseURL,
	}, nil
}

// CreateCompletion implements model.Provider.
func (p *OllamaProvider) CreateCompletion(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}

	messages := req.Messages
	var ollamaTools []api.Tool
	if len(req.Tools) > 0 {
		instruction := model.Message{
			Role:    model.RoleSystem,
			Content: buildToolInstructions(req.Tools),
		}
		messages = append([]model.Message{instruction}, messages...)
		if ModelSupportsToolCalling(modelID) {
			ollamaTools = tools.ToOllamaFormat(req.Tools)
		}
	}

	chatReq := &api.ChatRequest{
		Model:    modelID,
		Messages: ConvertToOllamaMessages(messages),
		Tools:    ollamaTools,
		Stream:   func(b bool) *bool { return &b }(true),
	}
	if req.Temperature != nil {
		chatReq.Options = map[string]any{"temperature": *req.Temperature}
	}

	var call *model.ToolCall
	var content strings.Builder
	outTokens := 0

	respFunc := func(resp api.ChatResponse) error {
		if call == nil && len(resp.Message.ToolCalls) > 0 {
			fn := resp.Message.ToolCalls[0].Function
			call = &model.ToolCall{
				Name:      fn.Name,
				Arguments: fn.Arguments,
			}
		}
		if resp.Message.Content != "" {
			content.WriteString(resp.Message.Content)
			if req.OnDelta != nil && call == nil {
				req.OnDelta(resp.Message.Content)
			}
		}
		if resp.Done {
			outTokens = resp.EvalCount
		}
		return nil
	}

	if err := p.client.Chat(ctx, chatReq, respFunc); err != nil {
		return nil, fmt.Errorf("Ollama completion failed: %w", err)
	}

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
			config.DebugLog.Printf("[Ollama] inline tool-call fallback fired for %s", inline.Name)
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

// ListModels implements model.Provider.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:         m.Name,
			InternalName: m.Name,
			Size:         m.Size,
			Provider:     "ollama",
		}
	}
	return models, nil
}

// GetModel implements model.Provider.
func (p *OllamaProvider) GetModel() string {
	return p.model
}

// SetModel implements model.Provider.
func (p *OllamaProvider) SetModel(modelID string) {
	p.model = modelID
}

// Ping implements model.Provider with a short timeout so a stopped local
// server fails fast.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.List(ctx)
	return err
}

// toolCallingModels tracks which local model families support the native
// tool-calling API. For families that do not, only the inline JSON
// instruction path is used. Curated from Ollama documentation and
// community testing.
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,

	"llama3-gradient": false,
	"llama3":          false, // original llama3, not 3.1/3.2/3.3
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes is checked most specific first so llama3.2 does not
// match the generic llama3 entry.
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// ModelSupportsToolCalling reports whether a local model supports the
// native tool-calling API. Unknown models default to false.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			if supported, exists := toolCallingModels[prefix]; exists {
				return supported
			}
		}
	}
	return false
}
