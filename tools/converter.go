package tools

import (
	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// The registry declares schemas once, in MCP form; these converters render
// them into each backend's native tool wire format. All three formats are
// JSON Schema underneath, so conversion is structural.

// ToOpenAIFormat converts schemas to the OpenAI chat-completions tool
// format.
func ToOpenAIFormat(schemas []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(schemas))
	for i, tool := range schemas {
		params := openai.FunctionParameters{
			"type":       tool.InputSchema.Type,
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
			},
		)
	}
	return result
}

// ToAnthropicFormat converts schemas to Anthropic's tool-use format.
func ToAnthropicFormat(schemas []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(schemas))
	for i, tool := range schemas {
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}
	return result
}

// ToOllamaFormat converts schemas to the Ollama API tool format.
func ToOllamaFormat(schemas []mcptypes.Tool) []api.Tool {
	if len(schemas) == 0 {
		return nil
	}

	result := make([]api.Tool, len(schemas))
	for i, tool := range schemas {
		params := api.ToolFunctionParameters{
			Type:       tool.InputSchema.Type,
			Required:   tool.InputSchema.Required,
			Properties: make(map[string]api.ToolProperty, len(tool.InputSchema.Properties)),
		}
		for name, prop := range tool.InputSchema.Properties {
			params.Properties[name] = toOllamaProperty(prop)
		}

		result[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		}
	}
	return result
}

func toOllamaProperty(prop any) api.ToolProperty {
	out := api.ToolProperty{}
	propMap, ok := prop.(map[string]any)
	if !ok {
		return out
	}
	if t, ok := propMap["type"].(string); ok {
		out.Type = api.PropertyType{t}
	}
	if desc, ok := propMap["description"].(string); ok {
		out.Description = desc
	}
	if enum, ok := propMap["enum"].([]any); ok {
		out.Enum = enum
	}
	return out
}
