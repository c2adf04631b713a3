package model

// ToolCall is a structured operation request proposed by the model.
// It is transient: it exists only within one loop iteration, between the
// provider response and the tool-result message that reports its outcome.
type ToolCall struct {
	Name      string
	Arguments map[string]any
	// Reason is the model-supplied human-readable justification, shown to
	// the user when the call needs confirmation.
	Reason string
}
