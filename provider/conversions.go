package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"gridpilot/model"
)

// toolResultMarker prefixes tool-result content when it is folded into a
// user-role message. None of the three backends accept our tool role
// as-is for plain-text results, so the marker keeps the origin visible to
// the model.
const toolResultMarker = "[tool result] "

// ConvertToOpenAIMessages translates the uniform role set into OpenAI
// chat-completion messages. Tool results fold into user messages with a
// marker; memory summaries travel as system messages.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleMemory:
			result[i] = openai.SystemMessage("Conversation memory:\n" + msg.Content)
		case model.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		case model.RoleTool:
			result[i] = openai.UserMessage(toolResultMarker + msg.Content)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

// convertToAnthropicMessages translates the uniform role set into
// Anthropic messages. System and memory content is returned separately as
// system blocks because Anthropic keeps system text out of the message
// array.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: msg.Content,
			})
		case model.RoleMemory:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: "Conversation memory:\n" + msg.Content,
			})
		case model.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)),
			)
		case model.RoleTool:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(toolResultMarker+msg.Content)),
			)
		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}

// ConvertToOllamaMessages translates the uniform role set into Ollama API
// messages. Ollama accepts a tool role natively; only the memory role
// needs remapping.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		role := msg.Role
		content := msg.Content
		switch msg.Role {
		case model.RoleMemory:
			role = "system"
			content = "Conversation memory:\n" + msg.Content
		case model.RoleTool:
			role = "tool"
		}
		result[i] = api.Message{
			Role:    role,
			Content: content,
		}
	}
	return result
}

// ParseToolArguments parses a JSON arguments string into a map. Parse
// failures degrade to an empty map so validation, not the adapter,
// reports the malformed call.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
