package tokens

import (
	"strings"
	"testing"

	"gridpilot/model"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "whitespace only", text: "  \t\n  ", want: 0},
		{name: "four chars", text: "abcd", want: 1},
		{name: "five chars rounds up", text: "abcde", want: 2},
		{name: "longer text", text: strings.Repeat("x", 400), want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(tt.text)
			if got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateNonNegativeAndMonotonic(t *testing.T) {
	prev := 0
	for i := 0; i < 20; i++ {
		text := strings.Repeat("word ", i*3)
		got := Estimate(text)
		if got < 0 {
			t.Fatalf("Estimate returned negative count %d for len %d", got, len(text))
		}
		if i > 0 && got <= prev {
			t.Errorf("estimate did not grow: len %d gave %d, previous %d", len(text), got, prev)
		}
		prev = got
	}
}

func TestEstimateJSONNeverFails(t *testing.T) {
	// Channels cannot be marshaled; the estimator must degrade, not fail.
	got := EstimateJSON(map[string]any{"ch": make(chan int)})
	if got <= 0 {
		t.Errorf("EstimateJSON on unmarshalable value = %d, want > 0", got)
	}
}

func TestEstimateRequestTotals(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleUser, Content: "Sum column B for me please"},
		{Role: model.RoleAssistant, Content: "The total is 42."},
	}

	b := EstimateRequest("system prompt text", "memory", `{"sheet":"Sheet1"}`, messages, `[{"name":"read_range"}]`)

	if b.InputTokens <= 0 {
		t.Fatalf("InputTokens = %d, want > 0", b.InputTokens)
	}
	if b.Total != b.InputTokens+b.OutputTokens {
		t.Errorf("Total = %d, want InputTokens+OutputTokens = %d", b.Total, b.InputTokens+b.OutputTokens)
	}
	if b.OutputTokens != int(float64(b.InputTokens)*0.25) {
		t.Errorf("OutputTokens = %d, want quarter of input %d", b.OutputTokens, b.InputTokens)
	}
}

func TestEstimateMessagesOverhead(t *testing.T) {
	none := EstimateMessages(nil)
	if none != 0 {
		t.Fatalf("EstimateMessages(nil) = %d, want 0", none)
	}

	one := EstimateMessages([]model.Message{{Role: model.RoleUser, Content: ""}})
	if one != perMessageOverhead {
		t.Errorf("empty message = %d tokens, want overhead %d", one, perMessageOverhead)
	}
}
