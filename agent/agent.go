// Package agent runs the turn loop: it fits context under the token
// budget, calls the model, validates and executes proposed tool calls
// behind the approval gate, records every document change in the ledger,
// and finalizes each turn with a cited answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridpilot/config"
	"gridpilot/contextpack"
	"gridpilot/ledger"
	"gridpilot/model"
	"gridpilot/provider"
	"gridpilot/safety"
	"gridpilot/sheet"
	"gridpilot/storage"
	"gridpilot/tokens"
	"gridpilot/tools"
)

// State is the orchestrator's observable phase within a turn.
type State string

const (
	StateIdle          State = "idle"
	StateUnderstanding State = "understanding"
	StateContext       State = "context"
	StatePlanning      State = "planning"
	StateExecution     State = "execution"
	StateSummary       State = "summary"
)

// ErrTurnInFlight is returned when RunTurn is called while a turn is
// already running. One turn at a time; the caller must wait.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// Outcome classifies how a turn ended.
type Outcome int

const (
	OutcomeAnswer Outcome = iota
	OutcomeBudgetExceeded
	OutcomeIterationLimit
	OutcomeError
)

const defaultMaxOutputTokens = 4096

// maxRecordedArguments caps the argument JSON stored per tool call in
// the turn record.
const maxRecordedArguments = 2000

// ApprovalRequest is handed to the approval gate when a proposed call
// needs confirmation before execution.
type ApprovalRequest struct {
	ToolName  string
	Reason    string
	Arguments map[string]any
	Risk      *safety.Confirmation
}

// ApprovalGate decides whether a risky call may execute. Invoked
// synchronously within the loop; execution waits on the decision.
type ApprovalGate interface {
	Approve(req ApprovalRequest) bool
}

// GateFunc adapts a plain function to the ApprovalGate interface.
type GateFunc func(req ApprovalRequest) bool

func (f GateFunc) Approve(req ApprovalRequest) bool { return f(req) }

// TurnSink receives audit records. Sink failures never fail the turn.
type TurnSink interface {
	AppendTurn(rec storage.TurnRecord) error
	AppendCompaction(rec storage.CompactionRecord) error
}

// StateObserver is notified on every state transition.
type StateObserver func(state State)

// TurnResult is what one finished turn reports back to the caller.
type TurnResult struct {
	TurnID       string
	Outcome      Outcome
	FinalText    string
	Citations    []string
	ToolCalls    []storage.ToolCallRecord
	EditedRanges []string
	Budget       tokens.Budget
	Compacted    bool
}

// Options configures an Orchestrator. Driver, Provider and Budget are
// required; everything else has a usable default.
type Options struct {
	Driver         sheet.Driver
	Provider       model.Provider
	Registry       *tools.Registry
	Ledger         *ledger.Ledger
	Budget         *contextpack.Manager
	Gate           ApprovalGate
	Sink           TurnSink
	Settings       safety.Settings
	SystemPrompt   string
	SearchEndpoint string
	IterationLimit int
	SessionID      string
	ProviderID     string
	OnDelta        model.StreamCallback
}

// Orchestrator owns the session state for one workbook conversation and
// runs turns against it. It is the only writer to that state while a turn
// is in flight.
type Orchestrator struct {
	driver   sheet.Driver
	provider model.Provider
	registry *tools.Registry
	assessor *safety.Assessor
	ledger   *ledger.Ledger
	budget   *contextpack.Manager
	gate     ApprovalGate
	sink     TurnSink
	onDelta  model.StreamCallback

	systemPrompt     string
	searchEndpoint   string
	iterationLimit   int
	sessionID        string
	providerID       string
	webSearchEnabled bool

	mu       sync.Mutex
	busy     bool
	state    State
	observer StateObserver
	history  []model.Message
	memory   *contextpack.MemoryState
}

// New creates an orchestrator from options.
func New(opts Options) *Orchestrator {
	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	ldg := opts.Ledger
	if ldg == nil {
		ldg = ledger.New(opts.Driver)
	}
	limit := opts.IterationLimit
	if limit <= 0 {
		limit = config.DefaultIterationLimit
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	return &Orchestrator{
		driver:           opts.Driver,
		provider:         opts.Provider,
		registry:         registry,
		assessor:         safety.NewAssessor(opts.Driver, opts.Settings),
		ledger:           ldg,
		budget:           opts.Budget,
		gate:             opts.Gate,
		sink:             opts.Sink,
		onDelta:          opts.OnDelta,
		systemPrompt:     buildSystemPrompt(opts.SystemPrompt),
		searchEndpoint:   opts.SearchEndpoint,
		iterationLimit:   limit,
		sessionID:        sessionID,
		providerID:       opts.ProviderID,
		webSearchEnabled: opts.Settings.WebSearchEnabled,
		state:            StateIdle,
	}
}

// SetObserver registers a state-transition observer. Not safe to call
// while a turn is in flight.
func (o *Orchestrator) SetObserver(fn StateObserver) { o.observer = fn }

// Busy reports whether a turn is currently running.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns the conversation history.
func (o *Orchestrator) History() []model.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.Message, len(o.history))
	copy(out, o.history)
	return out
}

// Memory returns the rolling memory state, nil before any compaction.
func (o *Orchestrator) Memory() *contextpack.MemoryState { return o.memory }

// Ledger exposes the change ledger for manual revert between turns.
func (o *Orchestrator) Ledger() *ledger.Ledger { return o.ledger }

// SessionID returns the session identifier used in audit records.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// Restore replaces the conversation state, e.g. when resuming a saved
// session. Must not be called while a turn is in flight.
func (o *Orchestrator) Restore(history []model.Message, memory *contextpack.MemoryState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = history
	o.memory = memory
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	fn := o.observer
	o.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (o *Orchestrator) appendHistory(role, content string, citations []string) model.Message {
	msg := model.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Citations: citations,
		Timestamp: time.Now(),
	}
	o.mu.Lock()
	o.history = append(o.history, msg)
	o.mu.Unlock()
	return msg
}

// RunTurn executes one full turn for the given prompt. It returns
// ErrTurnInFlight if a turn is already running. All other failures are
// absorbed into the turn: they surface as an assistant message and an
// Outcome, never as a stuck busy flag.
func (o *Orchestrator) RunTurn(ctx context.Context, prompt string) (result *TurnResult, err error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	o.busy = true
	o.mu.Unlock()

	turnID := uuid.New().String()
	result = &TurnResult{TurnID: turnID}

	defer func() {
		if r := recover(); r != nil {
			text := fmt.Sprintf("The turn failed unexpectedly: %s", truncateText(fmt.Sprintf("%v", r), 2000))
			o.appendHistory(model.RoleAssistant, text, nil)
			result.Outcome = OutcomeError
			result.FinalText = text
			o.logTurn(result, prompt)
			err = nil
		}
		o.setState(StateIdle)
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	o.setState(StateUnderstanding)
	o.appendHistory(model.RoleUser, prompt, nil)

	o.setState(StateContext)
	fit, ferr := o.fitContext(ctx)
	if ferr != nil {
		text := fmt.Sprintf("I can't answer this: the request does not fit the token budget even after reducing context (%v). Try a shorter prompt or start a new session.", ferr)
		o.appendHistory(model.RoleAssistant, text, nil)
		result.Outcome = OutcomeBudgetExceeded
		result.FinalText = text
		o.logTurn(result, prompt)
		return result, nil
	}
	result.Budget = fit.Budget
	result.Compacted = fit.Compacted

	// Outgoing is the exact message list sent to the model this turn.
	// Turn-local messages (tool results, corrective instructions) are
	// appended to both outgoing and the durable history.
	outgoing := o.assembleOutgoing(fit)

	o.setState(StatePlanning)

	retriedInvalidCall := false
	retriedMalformedFinal := false
	toolsDisabled := false

	for iter := 0; iter < o.iterationLimit; iter++ {
		req := &model.CompletionRequest{
			Model:     o.provider.GetModel(),
			MaxTokens: defaultMaxOutputTokens,
			Messages:  outgoing,
			OnDelta:   o.onDelta,
		}
		if !toolsDisabled {
			req.Tools = o.registry.MCPTools()
		}

		comp, cerr := o.provider.CreateCompletion(ctx, req)
		if cerr != nil {
			text := fmt.Sprintf("The model call failed: %s", truncateText(cerr.Error(), 2000))
			o.appendHistory(model.RoleAssistant, text, nil)
			result.Outcome = OutcomeError
			result.FinalText = text
			o.logTurn(result, prompt)
			return result, nil
		}
		result.Budget.OutputTokens += comp.EstimatedOutputTokens

		if comp.Kind == model.CompletionFinal {
			// A final that reads like a broken tool call gets one
			// corrective retry per turn.
			if provider.LooksLikeToolJSON(comp.Text) && !retriedMalformedFinal {
				retriedMalformedFinal = true
				outgoing = o.addTurnMessage(outgoing, model.RoleUser, correctiveMalformedFinal)
				continue
			}
			o.finalize(result, comp.Text)
			o.logTurn(result, prompt)
			return result, nil
		}

		o.setState(StateExecution)
		call := *comp.Call
		record := storage.ToolCallRecord{
			Name:      call.Name,
			Arguments: marshalArguments(call.Arguments),
		}

		spec, known := o.registry.Get(call.Name)
		var verr error
		if !known {
			verr = fmt.Errorf("unknown tool %q", call.Name)
		} else {
			verr = o.registry.Validate(call)
		}
		if verr != nil {
			if !retriedInvalidCall {
				retriedInvalidCall = true
				outgoing = o.addTurnMessage(outgoing, model.RoleUser, fmt.Sprintf(correctiveToolCall, verr))
				continue
			}
			toolsDisabled = true
			outgoing = o.addTurnMessage(outgoing, model.RoleUser, correctiveNoTools)
			continue
		}

		if spec.Class == tools.ClassExternal && !o.webSearchEnabled {
			record.Error = "web search is disabled"
			result.ToolCalls = append(result.ToolCalls, record)
			outgoing = o.addTurnMessage(outgoing, model.RoleTool,
				fmt.Sprintf("status: error\n%s is disabled in settings", call.Name))
			continue
		}

		conf := o.assessor.Assess(spec, call)
		record.Risk = riskLabel(conf)

		approved := true
		if conf != nil {
			approved = o.gate != nil && o.gate.Approve(ApprovalRequest{
				ToolName:  call.Name,
				Reason:    call.Reason,
				Arguments: call.Arguments,
				Risk:      conf,
			})
		}
		record.Approved = approved

		if !approved {
			record.Error = "rejected by user"
			result.ToolCalls = append(result.ToolCalls, record)
			outgoing = o.addTurnMessage(outgoing, model.RoleTool,
				fmt.Sprintf("status: cancelled\nuser rejected %s: %s", call.Name, conf.Reason))
			continue
		}

		outcome := o.executeTool(call, turnID)
		if outcome.err != nil {
			record.Error = outcome.err.Error()
			result.ToolCalls = append(result.ToolCalls, record)
			outgoing = o.addTurnMessage(outgoing, model.RoleTool,
				fmt.Sprintf("status: error\n%s failed: %v", call.Name, outcome.err))
			outgoing = o.addTurnMessage(outgoing, model.RoleUser, safeFallbackInstruction)
			continue
		}

		result.ToolCalls = append(result.ToolCalls, record)
		result.EditedRanges = appendUnique(result.EditedRanges, outcome.edited)
		outgoing = o.addTurnMessage(outgoing, model.RoleTool,
			fmt.Sprintf("status: success\n%s", outcome.summary))
	}

	text := fmt.Sprintf("I reached the %d-step tool limit without producing a final answer. The changes made so far are recorded and can be reverted.", o.iterationLimit)
	o.appendHistory(model.RoleAssistant, text, nil)
	result.Outcome = OutcomeIterationLimit
	result.FinalText = text
	o.logTurn(result, prompt)
	return result, nil
}

// fitContext runs the budget ladder. On compaction the durable history is
// replaced before any model call is issued.
func (o *Orchestrator) fitContext(ctx context.Context) (*contextpack.Result, error) {
	schemas, merr := json.Marshal(o.registry.MCPTools())
	if merr != nil {
		schemas = nil
	}

	o.mu.Lock()
	history := make([]model.Message, len(o.history))
	copy(history, o.history)
	o.mu.Unlock()

	fit, err := o.budget.Fit(ctx, o.systemPrompt, o.memory, history, string(schemas))
	if err != nil {
		return nil, err
	}

	if fit.Compacted {
		dropped := len(history) - len(fit.Messages)
		o.mu.Lock()
		o.history = fit.Messages
		o.mu.Unlock()
		o.memory = fit.Memory
		if o.sink != nil {
			summary := ""
			if fit.Memory != nil {
				summary = fit.Memory.Summary
			}
			_ = o.sink.AppendCompaction(storage.CompactionRecord{
				SessionID:     o.sessionID,
				Timestamp:     time.Now(),
				DroppedCount:  dropped,
				MemorySummary: summary,
			})
		}
	}

	return fit, nil
}

func (o *Orchestrator) assembleOutgoing(fit *contextpack.Result) []model.Message {
	outgoing := []model.Message{
		{Role: model.RoleSystem, Content: o.systemPrompt},
		{Role: model.RoleSystem, Content: fit.ContextPayload},
	}
	if fit.Memory != nil && fit.Memory.Summary != "" {
		outgoing = append(outgoing, model.Message{Role: model.RoleMemory, Content: fit.Memory.Summary})
	}
	return append(outgoing, fit.Messages...)
}

// addTurnMessage appends a message to both the outgoing payload and the
// durable history, keeping the two in chronological agreement.
func (o *Orchestrator) addTurnMessage(outgoing []model.Message, role, content string) []model.Message {
	msg := o.appendHistory(role, content, nil)
	return append(outgoing, msg)
}

// finalize turns model text into the answer: extract citations, fall back
// to the active selection when there are none, and append the assistant
// message.
func (o *Orchestrator) finalize(result *TurnResult, text string) {
	o.setState(StateSummary)

	citations := sheet.ExtractCitations(text)
	if len(citations) == 0 {
		citations = []string{o.fallbackCitation()}
	}

	o.appendHistory(model.RoleAssistant, text, citations)
	result.Outcome = OutcomeAnswer
	result.FinalText = text
	result.Citations = citations
}

// fallbackCitation points at the active selection so every answer is
// backed by at least one reference.
func (o *Orchestrator) fallbackCitation() string {
	sel := o.driver.ActiveSelection()
	if sel == "" {
		sel = "A1"
	}
	if !strings.Contains(sel, "!") {
		sel = o.driver.ActiveSheet() + "!" + sel
	}
	return sheet.Normalize(sel)
}

func (o *Orchestrator) logTurn(result *TurnResult, prompt string) {
	if o.sink == nil {
		return
	}
	_ = o.sink.AppendTurn(storage.TurnRecord{
		ID:           result.TurnID,
		SessionID:    o.sessionID,
		Timestamp:    time.Now(),
		Prompt:       prompt,
		Provider:     o.providerID,
		Model:        o.provider.GetModel(),
		InputTokens:  result.Budget.InputTokens,
		OutputTokens: result.Budget.OutputTokens,
		ToolCalls:    result.ToolCalls,
		EditedRanges: result.EditedRanges,
		Summary:      truncateText(result.FinalText, 1000),
	})
}

func riskLabel(conf *safety.Confirmation) string {
	switch {
	case conf == nil:
		return "low"
	case conf.Risky:
		return "high"
	default:
		return "medium"
	}
}

// marshalArguments renders tool arguments for the turn record. Large
// grids are truncated; the record is an audit trail, not a replay log.
func marshalArguments(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return truncateText(fmt.Sprintf("%v", args), maxRecordedArguments)
	}
	return truncateText(string(data), maxRecordedArguments)
}

func appendUnique(dst []string, items []string) []string {
	for _, it := range items {
		seen := false
		for _, have := range dst {
			if have == it {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, it)
		}
	}
	return dst
}
