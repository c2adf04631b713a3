package provider

import (
	"encoding/json"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"gridpilot/model"
)

// inlineToolCall is the plain-text wire format some models emit instead
// of using the structured tool-call channel.
type inlineToolCall struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Reason string         `json:"reason"`
}

// ParseInlineToolCall is the fallback parse path: it accepts free text
// only when the whole trimmed text is a single well-formed JSON object
// with a "tool" field naming a declared schema. It is attempted only
// after the native structured channel yielded nothing; callers should log
// when it fires so malformed output never passes silently.
func ParseInlineToolCall(text string, declared []mcptypes.Tool) (*model.ToolCall, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, false
	}

	var inline inlineToolCall
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&inline); err != nil {
		return nil, false
	}
	// Reject trailing content after the object; the whole text must be
	// the call.
	if dec.More() {
		return nil, false
	}
	if inline.Tool == "" || !declaresTool(declared, inline.Tool) {
		return nil, false
	}

	args := inline.Args
	if args == nil {
		args = make(map[string]any)
	}
	return &model.ToolCall{
		Name:      inline.Tool,
		Arguments: args,
		Reason:    inline.Reason,
	}, true
}

func declaresTool(declared []mcptypes.Tool, name string) bool {
	for _, t := range declared {
		if t.Name == name {
			return true
		}
	}
	return false
}

// LooksLikeToolJSON reports whether free text superficially resembles a
// tool-call object that failed to parse, typically because it was
// truncated. The orchestrator uses this to decide whether a final answer
// deserves one corrective retry.
func LooksLikeToolJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return strings.Contains(trimmed, `"tool"`)
}
