package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// buildToolInstructions creates the system instruction prepended when
// tools are declared. Besides execution guidance it pins down the inline
// JSON format the fallback parser accepts, for models that ignore the
// structured channel.
func buildToolInstructions(tools []mcptypes.Tool) string {
	toolNames := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(toolNames, ", "),
		"",
		"When the user's request requires a spreadsheet operation:",
		"1. Determine which tool is needed",
		"2. Check you have all required arguments",
		"3. If yes: call the tool IMMEDIATELY without explanation",
		"4. If no: ask for the missing argument ONLY",
		"",
		"If you cannot use the structured tool channel, respond with exactly one JSON object and nothing else:",
		`{"tool": "<name>", "args": {...}, "reason": "<why>"}`,
		"",
		"DO NOT:",
		"- List available tools",
		"- Explain what you are about to do",
		"- Mix prose with a tool-call JSON object",
	}, "\n")
}
