package contextpack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gridpilot/model"
)

// MemoryState is the rolling summary that replaces older conversation
// history after compaction. There is at most one per session and the
// compaction step replaces it wholesale.
type MemoryState struct {
	Summary   string
	SourceIDs []string
	UpdatedAt time.Time
}

const compactionPrompt = `Summarize the conversation below for your own later reference. Keep concrete facts: ranges read or written, values, formulas, sheet names, decisions made and anything the user asked for that is still pending. Be terse, use short bullet points, no preamble.`

// compactionMaxTokens bounds the summary call; summaries past this size
// defeat the purpose.
const compactionMaxTokens = 512

// Compact summarizes older history into a MemoryState. Any existing
// summary is folded in so facts survive repeated compactions. The model
// call may fail; a local bulleted summary is produced instead, never an
// error.
func Compact(ctx context.Context, p model.Provider, prev *MemoryState, older []model.Message) *MemoryState {
	state := &MemoryState{
		SourceIDs: sourceIDs(prev, older),
		UpdatedAt: time.Now(),
	}

	if p != nil {
		if summary, err := modelSummary(ctx, p, prev, older); err == nil && summary != "" {
			state.Summary = summary
			return state
		}
	}
	state.Summary = localSummary(prev, older)
	return state
}

func sourceIDs(prev *MemoryState, older []model.Message) []string {
	var ids []string
	if prev != nil {
		ids = append(ids, prev.SourceIDs...)
	}
	for _, m := range older {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func modelSummary(ctx context.Context, p model.Provider, prev *MemoryState, older []model.Message) (string, error) {
	var b strings.Builder
	if prev != nil && prev.Summary != "" {
		b.WriteString("Earlier summary:\n")
		b.WriteString(prev.Summary)
		b.WriteString("\n\n")
	}
	b.WriteString("Conversation to summarize:\n")
	for _, m := range older {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}

	req := &model.CompletionRequest{
		Model:     p.GetModel(),
		MaxTokens: compactionMaxTokens,
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: compactionPrompt},
			{Role: model.RoleUser, Content: b.String()},
		},
	}
	resp, err := p.CreateCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Kind != model.CompletionFinal {
		return "", fmt.Errorf("summary call returned a tool call")
	}
	return strings.TrimSpace(resp.Text), nil
}

// localSummary is the fallback when the summary call fails: one truncated
// bullet per message, carrying the previous summary forward.
func localSummary(prev *MemoryState, older []model.Message) string {
	var b strings.Builder
	if prev != nil && prev.Summary != "" {
		b.WriteString(prev.Summary)
		b.WriteString("\n")
	}
	for _, m := range older {
		line := strings.TrimSpace(m.Content)
		if line == "" {
			continue
		}
		if len(line) > 120 {
			line = line[:120] + "..."
		}
		line = strings.ReplaceAll(line, "\n", " ")
		fmt.Fprintf(&b, "- %s: %s\n", m.Role, line)
	}
	return strings.TrimSpace(b.String())
}
