package matching

import (
	"context"
	"sync"

	"github.com/Zereker/talentmatch/pkg/vector"
)

// MockStore 用于测试的向量存储 mock
// 实现 vector.Store 接口
type MockStore struct {
	UpsertFunc func(ctx context.Context, records []vector.Record) error
	QueryFunc  func(ctx context.Context, q vector.Query) ([]vector.Match, error)
	FetchFunc  func(ctx context.Context, ids []string) (map[string]vector.Record, error)

	UpsertCalls [][]vector.Record
	QueryCalls  []vector.Query
	FetchCalls  [][]string
}

var _ vector.Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		UpsertFunc: func(ctx context.Context, records []vector.Record) error {
			return nil
		},
		QueryFunc: func(ctx context.Context, q vector.Query) ([]vector.Match, error) {
			return []vector.Match{}, nil
		},
		FetchFunc: func(ctx context.Context, ids []string) (map[string]vector.Record, error) {
			return map[string]vector.Record{}, nil
		},
	}
}

func (m *MockStore) Upsert(ctx context.Context, records []vector.Record) error {
	m.UpsertCalls = append(m.UpsertCalls, records)
	return m.UpsertFunc(ctx, records)
}

func (m *MockStore) Query(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	m.QueryCalls = append(m.QueryCalls, q)
	return m.QueryFunc(ctx, q)
}

func (m *MockStore) Fetch(ctx context.Context, ids []string) (map[string]vector.Record, error) {
	m.FetchCalls = append(m.FetchCalls, ids)
	return m.FetchFunc(ctx, ids)
}

func (m *MockStore) Close() error {
	return nil
}

// MockEmbedder 用于测试的 embedder mock
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	Dims      int

	mu         sync.Mutex
	EmbedCalls []string
}

func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{
		Dims: dims,
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			v := make([]float32, dims)
			v[0] = 1
			return v, nil
		},
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.EmbedCalls = append(m.EmbedCalls, text)
	m.mu.Unlock()
	return m.EmbedFunc(ctx, text)
}

func (m *MockEmbedder) Dimensions() int {
	return m.Dims
}
