package provider

import (
	"strings"
	"testing"

	"gridpilot/model"
)

func TestConvertToOllamaMessagesRoleMapping(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "instructions"},
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleTool, Content: "range written"},
		{Role: model.RoleMemory, Content: "earlier facts"},
	}

	got := ConvertToOllamaMessages(messages)
	if len(got) != 5 {
		t.Fatalf("got %d messages", len(got))
	}
	wantRoles := []string{"system", "user", "assistant", "tool", "system"}
	for i, role := range wantRoles {
		if got[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, got[i].Role, role)
		}
	}
	if !strings.HasPrefix(got[4].Content, "Conversation memory:") {
		t.Errorf("memory content not marked: %q", got[4].Content)
	}
}

func TestConvertToAnthropicMessagesSplitsSystem(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "be helpful"},
		{Role: model.RoleMemory, Content: "earlier facts"},
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleTool, Content: "wrote A1"},
	}

	msgs, system := convertToAnthropicMessages(messages)
	if len(system) != 2 {
		t.Fatalf("system blocks = %d, want 2", len(system))
	}
	if system[0].Text != "be helpful" {
		t.Errorf("first system block = %q", system[0].Text)
	}
	if !strings.Contains(system[1].Text, "earlier facts") {
		t.Errorf("memory block = %q", system[1].Text)
	}
	// user + folded tool result
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
}

func TestConvertToOpenAIMessagesCount(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "sys"},
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleTool, Content: "result"},
	}
	got := ConvertToOpenAIMessages(messages)
	if len(got) != 3 {
		t.Fatalf("got %d messages", len(got))
	}
}

func TestParseToolArguments(t *testing.T) {
	args := ParseToolArguments(`{"address": "Sheet1!A1", "count": 3}`)
	if args["address"] != "Sheet1!A1" {
		t.Errorf("args = %v", args)
	}

	bad := ParseToolArguments(`not json`)
	if bad == nil || len(bad) != 0 {
		t.Errorf("malformed input should yield empty map, got %v", bad)
	}
}
