package contextpack

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gridpilot/model"
	"gridpilot/sheet"
	"gridpilot/tokens"
)

func msg(role, content string) model.Message {
	return model.Message{Role: role, Content: content}
}

func TestFitNoDegradationUnderGenerousCeiling(t *testing.T) {
	wb := sampleWorkbook(t)
	m := NewManager(wb, nil, 1<<20)

	history := []model.Message{
		msg(model.RoleUser, "sum the sales column"),
	}
	res, err := m.Fit(context.Background(), "system prompt", nil, history, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Steps) != 0 {
		t.Errorf("no degradation expected, got steps %v", res.Steps)
	}
	if res.Pack.Level != DetailFull {
		t.Errorf("pack level = %v, want full", res.Pack.Level)
	}
	if len(res.Messages) != 1 {
		t.Errorf("history trimmed without need: %d messages", len(res.Messages))
	}
	if res.Budget.Total > m.Ceiling() {
		t.Errorf("budget %d over ceiling %d", res.Budget.Total, m.Ceiling())
	}
}

func TestFitCompactsLongHistory(t *testing.T) {
	wb := sheet.NewWorkbook("Sheet1")

	long := strings.Repeat("the quarterly numbers were discussed at length ", 22)
	history := make([]model.Message, 0, 10)
	for i := 0; i < 6; i++ {
		history = append(history, msg(model.RoleUser, long))
	}
	for i := 0; i < 4; i++ {
		history = append(history, msg(model.RoleUser, "short recent message"))
	}

	m := NewManager(wb, nil, 1000)
	res, err := m.Fit(context.Background(), "sys", nil, history, "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Compacted {
		t.Fatal("expected history compaction")
	}
	if len(res.Messages) != keepRecentMessages {
		t.Errorf("kept %d messages, want %d", len(res.Messages), keepRecentMessages)
	}
	if res.Memory == nil || res.Memory.Summary == "" {
		t.Fatal("expected a memory summary")
	}
	if res.Budget.Total > 1000 {
		t.Errorf("budget %d over ceiling", res.Budget.Total)
	}

	wantOrder := []Step{StepSelectionPack, StepCompacted}
	for i, want := range wantOrder {
		if i >= len(res.Steps) || res.Steps[i] != want {
			t.Fatalf("steps = %v, want prefix %v", res.Steps, wantOrder)
		}
	}
}

func TestFitDropsOldestMessages(t *testing.T) {
	wb := sheet.NewWorkbook("Sheet1")

	body := strings.Repeat("x", 400)
	history := []model.Message{
		msg(model.RoleUser, body),
		msg(model.RoleAssistant, body),
		msg(model.RoleUser, body),
		msg(model.RoleAssistant, body),
		msg(model.RoleUser, body),
	}

	// Ceiling that admits exactly the last two messages over a minimal
	// pack. Five messages is under the compaction threshold, so the
	// ladder must reach the drop-oldest step.
	minimalPayload := Build(wb, DetailMinimal).Serialize()
	ceiling := tokens.EstimateRequest("sys", "", minimalPayload, history[3:], "").Total

	m := NewManager(wb, nil, ceiling)
	res, err := m.Fit(context.Background(), "sys", nil, history, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Compacted {
		t.Error("short history should not be compacted")
	}
	if len(res.Messages) != 2 {
		t.Fatalf("kept %d messages, want 2", len(res.Messages))
	}
	if res.Messages[len(res.Messages)-1].Content != body {
		t.Error("the newest message must survive")
	}

	drops := 0
	for _, s := range res.Steps {
		if s == StepDroppedOldest {
			drops++
		}
	}
	if drops != 3 {
		t.Errorf("recorded %d drop steps, want 3", drops)
	}
}

func TestFitBudgetExceeded(t *testing.T) {
	wb := sheet.NewWorkbook("Sheet1")
	m := NewManager(wb, nil, 10)

	history := []model.Message{
		msg(model.RoleUser, strings.Repeat("y", 4000)),
	}
	res, err := m.Fit(context.Background(), "sys", nil, history, "")
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
	if res != nil {
		t.Error("result must be nil on budget failure")
	}
}
