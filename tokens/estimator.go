// Package tokens provides cheap token-count estimation for budget
// decisions. The estimate is a fixed characters-per-token heuristic, not a
// real tokenizer: it only needs to be a stable upper-bound signal for the
// context budget ladder, and it runs on the hot path of every budget
// decision, so it must stay O(len) and allocation-light.
package tokens

import (
	"encoding/json"
	"fmt"
	"strings"

	"gridpilot/model"
)

const (
	// charsPerToken is the fixed heuristic ratio. Four characters per
	// token is a reasonable upper bound for English prose and JSON.
	charsPerToken = 4

	// perMessageOverhead covers role markers and separators the backend
	// adds around each message.
	perMessageOverhead = 4

	// outputFraction derives the expected output size from the input
	// estimate when the backend has not reported usage yet.
	outputFraction = 0.25
)

// Estimate returns the approximate token count of text. Empty or
// whitespace-only input yields zero. Never fails.
func Estimate(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// EstimateJSON estimates the serialized size of any JSON-compatible value.
// Marshal errors degrade to a Sprintf rendering rather than failing.
func EstimateJSON(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return Estimate(fmt.Sprintf("%v", v))
	}
	return Estimate(string(data))
}

// EstimateMessages sums the message contents plus a fixed per-message
// overhead.
func EstimateMessages(messages []model.Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += Estimate(m.Content)
	}
	return total
}

// Budget is a compound estimate for one completion call.
type Budget struct {
	InputTokens  int
	OutputTokens int
	Total        int
}

// EstimateRequest produces the compound estimate the budget manager checks
// against its ceiling: system prompt + memory summary + serialized context
// + messages + serialized tool schemas, with the expected output derived
// as a fixed fraction of the input total.
func EstimateRequest(systemPrompt, memorySummary, contextPayload string, messages []model.Message, toolSchemas string) Budget {
	input := Estimate(systemPrompt) +
		Estimate(memorySummary) +
		Estimate(contextPayload) +
		EstimateMessages(messages) +
		Estimate(toolSchemas)

	output := int(float64(input) * outputFraction)

	return Budget{
		InputTokens:  input,
		OutputTokens: output,
		Total:        input + output,
	}
}
