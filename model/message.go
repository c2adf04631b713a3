// Package model defines the provider-agnostic core types shared by every
// other package: conversation messages, tool calls, the completion contract
// and the Provider interface.
//
// The Provider interface lives here (not in the provider package) to avoid
// import cycles: adapter implementations import model, and the agent can use
// the interface without importing any concrete adapter.
package model

import "time"

// Conversation roles. Memory is an internal role that carries the rolling
// summary produced by context compaction; adapters fold it into whatever
// role the backend understands.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleMemory    = "memory"
)

// Message is a single entry in the conversation history. The history is
// append-only; a message is mutated only once, to finalize a streaming
// entry (flip Streaming off and fix Content).
type Message struct {
	ID        string
	Role      string
	Content   string
	Citations []string // normalized range addresses backing an answer
	Streaming bool
	Timestamp time.Time
}
