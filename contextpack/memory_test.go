package contextpack

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gridpilot/model"
)

type stubProvider struct {
	resp *model.Completion
	err  error
}

func (s *stubProvider) CreateCompletion(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
	return s.resp, s.err
}

func (s *stubProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return nil, nil
}

func (s *stubProvider) GetModel() string  { return "stub-model" }
func (s *stubProvider) SetModel(m string) {}

func (s *stubProvider) Ping(ctx context.Context) error { return nil }

func TestCompactUsesModelSummary(t *testing.T) {
	p := &stubProvider{resp: &model.Completion{
		Kind: model.CompletionFinal,
		Text: "- wrote totals to Sheet1!D2:D10",
	}}

	older := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "add a totals column"},
		{ID: "m2", Role: model.RoleAssistant, Content: "done"},
	}
	state := Compact(context.Background(), p, nil, older)

	if state.Summary != "- wrote totals to Sheet1!D2:D10" {
		t.Errorf("Summary = %q", state.Summary)
	}
	if len(state.SourceIDs) != 2 {
		t.Errorf("SourceIDs = %v", state.SourceIDs)
	}
	if state.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestCompactFallsBackOnProviderError(t *testing.T) {
	p := &stubProvider{err: errors.New("backend down")}

	older := []model.Message{
		{Role: model.RoleUser, Content: "sort the range by sales"},
	}
	state := Compact(context.Background(), p, nil, older)

	if !strings.Contains(state.Summary, "sort the range by sales") {
		t.Errorf("fallback summary missing content: %q", state.Summary)
	}
	if !strings.HasPrefix(state.Summary, "- user:") {
		t.Errorf("fallback summary not bulleted: %q", state.Summary)
	}
}

func TestCompactWithoutProvider(t *testing.T) {
	older := []model.Message{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "second"},
	}
	state := Compact(context.Background(), nil, nil, older)

	if !strings.Contains(state.Summary, "first") || !strings.Contains(state.Summary, "second") {
		t.Errorf("local summary incomplete: %q", state.Summary)
	}
}

func TestCompactCarriesPreviousSummaryForward(t *testing.T) {
	prev := &MemoryState{
		Summary:   "- earlier: renamed Sheet2 to Budget",
		SourceIDs: []string{"m0"},
	}
	older := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "now add a chart"},
	}
	state := Compact(context.Background(), nil, prev, older)

	if !strings.Contains(state.Summary, "renamed Sheet2") {
		t.Errorf("previous summary lost: %q", state.Summary)
	}
	if len(state.SourceIDs) != 2 {
		t.Errorf("SourceIDs = %v, want previous ids carried forward", state.SourceIDs)
	}
}

func TestLocalSummaryTruncatesLongMessages(t *testing.T) {
	older := []model.Message{
		{Role: model.RoleUser, Content: strings.Repeat("a", 300)},
	}
	got := localSummary(nil, older)
	if len(got) > 140 {
		t.Errorf("bullet not truncated: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated bullet should end with ellipsis: %q", got)
	}
}
