package tools

import "testing"

func TestToOpenAIFormat(t *testing.T) {
	r := NewRegistry()
	converted := ToOpenAIFormat(r.MCPTools())

	if len(converted) != len(r.All()) {
		t.Fatalf("converted %d tools, registry has %d", len(converted), len(r.All()))
	}
	if ToOpenAIFormat(nil) != nil {
		t.Error("empty input should convert to nil")
	}
}

func TestToAnthropicFormat(t *testing.T) {
	r := NewRegistry()
	converted := ToAnthropicFormat(r.MCPTools())

	if len(converted) != len(r.All()) {
		t.Fatalf("converted %d tools, registry has %d", len(converted), len(r.All()))
	}
	for i, tool := range r.All() {
		if converted[i].OfTool == nil {
			t.Fatalf("tool %q converted to nil variant", tool.Name)
		}
		if converted[i].OfTool.Name != tool.Name {
			t.Errorf("tool %d name = %q, want %q", i, converted[i].OfTool.Name, tool.Name)
		}
	}
}

func TestToOllamaFormat(t *testing.T) {
	r := NewRegistry()
	converted := ToOllamaFormat(r.MCPTools())

	if len(converted) != len(r.All()) {
		t.Fatalf("converted %d tools, registry has %d", len(converted), len(r.All()))
	}
	for _, tool := range converted {
		if tool.Type != "function" {
			t.Errorf("tool %q type = %q, want function", tool.Function.Name, tool.Type)
		}
		if tool.Function.Parameters.Type != "object" {
			t.Errorf("tool %q parameters type = %q, want object", tool.Function.Name, tool.Function.Parameters.Type)
		}
	}
}
