package interview

import (
	"context"
	"sync"
)

// MockModel 用于测试的 chat model mock
type MockModel struct {
	CompleteFunc func(ctx context.Context, p Prompt) (string, error)

	mu    sync.Mutex
	Calls []Prompt
}

func NewMockModel(reply string) *MockModel {
	return &MockModel{
		CompleteFunc: func(context.Context, Prompt) (string, error) {
			return reply, nil
		},
	}
}

func (m *MockModel) Complete(ctx context.Context, p Prompt) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, p)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, p)
}
