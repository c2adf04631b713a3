// Package testutil provides a configurable mock provider and shared
// fixtures for tests that need a model backend without network access.
package testutil

import (
	"context"

	"gridpilot/model"
)

// MockProvider implements model.Provider for testing. Each method
// delegates to a swappable func field so tests configure exactly the
// behavior they need.
type MockProvider struct {
	CreateCompletionFunc func(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error)
	ListModelsFunc       func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc             func(ctx context.Context) error

	// Requests records every CreateCompletion call for assertions.
	Requests []*model.CompletionRequest

	currentModel string
}

// NewMockProvider creates a mock with default implementations: a canned
// final-text completion, two models, successful ping.
func NewMockProvider(modelName string) *MockProvider {
	m := &MockProvider{currentModel: modelName}
	m.CreateCompletionFunc = m.defaultCreateCompletion
	m.ListModelsFunc = m.defaultListModels
	m.PingFunc = func(ctx context.Context) error { return nil }
	return m
}

// RespondWith queues fixed completions returned in order; the last one
// repeats once the queue is exhausted.
func (m *MockProvider) RespondWith(completions ...*model.Completion) {
	idx := 0
	m.CreateCompletionFunc = func(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
		c := completions[idx]
		if idx < len(completions)-1 {
			idx++
		}
		return c, nil
	}
}

func (m *MockProvider) defaultCreateCompletion(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
	return &model.Completion{
		Kind: model.CompletionFinal,
		Text: "Mock response",
	}, nil
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", InternalName: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", InternalName: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

// CreateCompletion implements model.Provider.
func (m *MockProvider) CreateCompletion(ctx context.Context, req *model.CompletionRequest) (*model.Completion, error) {
	m.Requests = append(m.Requests, req)
	return m.CreateCompletionFunc(ctx, req)
}

// ListModels implements model.Provider.
func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

// GetModel implements model.Provider.
func (m *MockProvider) GetModel() string {
	return m.currentModel
}

// SetModel implements model.Provider.
func (m *MockProvider) SetModel(modelID string) {
	m.currentModel = modelID
}

// Ping implements model.Provider.
func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}
