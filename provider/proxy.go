package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gridpilot/model"
	"gridpilot/tokens"
)

// relay POSTs completion requests to a local proxy endpoint instead of
// the backend directly. The backend identifier and the logical request
// travel in an envelope; the proxy holds the credential and performs the
// real call. Adapters behind a relay are agnostic to that indirection:
// they return the same Completion either way, with streaming synthesized
// from the final text.
type relay struct {
	endpoint string
	backend  ProviderType
	client   *http.Client
}

func newRelay(endpoint string, backend ProviderType) *relay {
	return &relay{
		endpoint: endpoint,
		backend:  backend,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type relayEnvelope struct {
	Backend string       `json:"backend"`
	Payload relayPayload `json:"payload"`
}

type relayPayload struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	Messages    []relayMessage `json:"messages"`
	Tools       []relayTool    `json:"tools,omitempty"`
}

type relayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type relayTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type relayResponse struct {
	Text     string `json:"text"`
	ToolCall *struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
		Reason    string         `json:"reason"`
	} `json:"tool_call"`
	OutputTokens int `json:"output_tokens"`
}

// maxErrorBody bounds how much of a failure response lands in the error
// string.
const maxErrorBody = 512

// Complete issues the relayed completion call. No native streaming exists
// on this path, so the final text is replayed through the callback in
// synthesized chunks.
func (r *relay) Complete(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
	env := relayEnvelope{
		Backend: string(r.backend),
		Payload: relayPayload{
			Model:       req.Model,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			Messages:    relayMessages(req.Messages),
		},
	}
	for _, t := range req.Tools {
		env.Payload.Tools = append(env.Payload.Tools, relayTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode relay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("relay call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("relay returned status %d: %s",
			resp.StatusCode, truncate(string(respBody), maxErrorBody))
	}

	var parsed relayResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode relay response: %w", err)
	}

	if parsed.ToolCall != nil {
		args := parsed.ToolCall.Arguments
		if args == nil {
			args = make(map[string]any)
		}
		return &model.Completion{
			Kind: model.CompletionToolCall,
			Call: &model.ToolCall{
				Name:      parsed.ToolCall.Name,
				Arguments: args,
				Reason:    parsed.ToolCall.Reason,
			},
			EstimatedOutputTokens: parsed.OutputTokens,
		}, nil
	}

	if call, ok := ParseInlineToolCall(parsed.Text, req.Tools); ok {
		return &model.Completion{
			Kind:                  model.CompletionToolCall,
			Call:                  call,
			EstimatedOutputTokens: parsed.OutputTokens,
		}, nil
	}

	synthesizeStream(parsed.Text, req.OnDelta)

	out := parsed.OutputTokens
	if out == 0 {
		out = tokens.Estimate(parsed.Text)
	}
	return &model.Completion{
		Kind:                  model.CompletionFinal,
		Text:                  parsed.Text,
		EstimatedOutputTokens: out,
	}, nil
}

func relayMessages(messages []model.Message) []relayMessage {
	out := make([]relayMessage, len(messages))
	for i, m := range messages {
		role := m.Role
		content := m.Content
		switch m.Role {
		case model.RoleMemory:
			role = model.RoleSystem
			content = "Conversation memory:\n" + m.Content
		case model.RoleTool:
			role = model.RoleUser
			content = toolResultMarker + m.Content
		}
		out[i] = relayMessage{Role: role, Content: content}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
