package contextpack

import (
	"context"
	"errors"
	"fmt"

	"gridpilot/model"
	"gridpilot/sheet"
	"gridpilot/tokens"
)

// ErrBudgetExceeded is returned when the degradation ladder is exhausted
// and the estimate still exceeds the ceiling. The turn must fail cleanly
// without a model call.
var ErrBudgetExceeded = errors.New("context exceeds token budget after full degradation")

// Step names one observable degradation transition.
type Step string

const (
	StepSelectionPack Step = "selection_pack"
	StepCompacted     Step = "history_compacted"
	StepMinimalPack   Step = "minimal_pack"
	StepDroppedOldest Step = "dropped_oldest_message"
)

const (
	// minHistoryForCompaction is the minimum history length before the
	// summarization step is considered.
	minHistoryForCompaction = 6

	// keepRecentMessages is how many trailing messages survive
	// compaction verbatim.
	keepRecentMessages = 4
)

// Result is a context+history combination that fits the ceiling.
type Result struct {
	Pack           *Pack
	ContextPayload string
	Messages       []model.Message
	Memory         *MemoryState
	Compacted      bool
	Steps          []Step
	Budget         tokens.Budget
}

// Manager fits the document context and conversation history under a
// token ceiling by walking a strictly ordered degradation ladder,
// re-estimating after every step.
type Manager struct {
	driver   sheet.Driver
	provider model.Provider
	ceiling  int
}

// NewManager creates a budget manager. The provider is used only for the
// history-summarization step and may be nil, in which case compaction
// falls back to the local summary.
func NewManager(driver sheet.Driver, provider model.Provider, ceiling int) *Manager {
	return &Manager{driver: driver, provider: provider, ceiling: ceiling}
}

// Ceiling returns the configured token ceiling.
func (m *Manager) Ceiling() int { return m.ceiling }

// Fit assembles a context pack and conversation slice whose compound
// estimate stays under the ceiling. The ladder never re-expands context:
// each step's payload is no larger than the previous step's. Returns
// ErrBudgetExceeded when nothing fits.
func (m *Manager) Fit(ctx context.Context, systemPrompt string, memory *MemoryState, history []model.Message, toolSchemas string) (*Result, error) {
	res := &Result{
		Memory:   memory,
		Messages: history,
	}

	res.Pack = Build(m.driver, DetailFull)
	res.ContextPayload = res.Pack.Serialize()
	if m.estimate(res, systemPrompt, toolSchemas) {
		return res, nil
	}

	// Step 1: selection-focused pack.
	m.shrinkPack(res, DetailSelection, StepSelectionPack)
	if m.estimate(res, systemPrompt, toolSchemas) {
		return res, nil
	}

	// Step 2: summarize older history into the rolling memory.
	if len(res.Messages) > minHistoryForCompaction {
		older := res.Messages[:len(res.Messages)-keepRecentMessages]
		res.Memory = Compact(ctx, m.provider, res.Memory, older)
		res.Messages = res.Messages[len(res.Messages)-keepRecentMessages:]
		res.Compacted = true
		res.Steps = append(res.Steps, StepCompacted)
		if m.estimate(res, systemPrompt, toolSchemas) {
			return res, nil
		}
	}

	// Step 3: minimal pack.
	m.shrinkPack(res, DetailMinimal, StepMinimalPack)
	if m.estimate(res, systemPrompt, toolSchemas) {
		return res, nil
	}

	// Step 4: drop the oldest remaining messages one at a time. The
	// last message is the prompt that started the turn and is never
	// dropped.
	for len(res.Messages) > 1 {
		res.Messages = res.Messages[1:]
		res.Steps = append(res.Steps, StepDroppedOldest)
		if m.estimate(res, systemPrompt, toolSchemas) {
			return res, nil
		}
	}

	return nil, fmt.Errorf("%w: estimated %d tokens, ceiling %d",
		ErrBudgetExceeded, res.Budget.Total, m.ceiling)
}

// shrinkPack rebuilds the pack at a lower detail level. A rebuild that
// somehow serializes larger (the document changed mid-turn) keeps the
// previous, smaller payload so degradation stays monotonic.
func (m *Manager) shrinkPack(res *Result, level DetailLevel, step Step) {
	pack := Build(m.driver, level)
	payload := pack.Serialize()
	if len(payload) <= len(res.ContextPayload) {
		res.Pack = pack
		res.ContextPayload = payload
	}
	res.Steps = append(res.Steps, step)
}

func (m *Manager) estimate(res *Result, systemPrompt, toolSchemas string) bool {
	summary := ""
	if res.Memory != nil {
		summary = res.Memory.Summary
	}
	res.Budget = tokens.EstimateRequest(systemPrompt, summary, res.ContextPayload, res.Messages, toolSchemas)
	return res.Budget.Total <= m.ceiling
}
