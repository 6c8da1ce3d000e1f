package testutils

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/localcompute/g4l/pkg/vector"
)

// MockVectorDriver is an in-memory vector driver. Query returns Results
// verbatim (trimmed to topK) so tests control ranking.
type MockVectorDriver struct {
	mu        sync.Mutex
	documents map[string]vector.Document

	Results  []vector.QueryResult
	QueryErr error
	LastTopK int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make(map[string]vector.Document),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.documents[d.ID] = d
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastTopK = topK
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []vector.Document
	for _, id := range ids {
		if d, ok := m.documents[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.documents, id)
	}
	return nil
}

func (m *MockVectorDriver) DeleteSource(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.documents {
		if d.Source == source {
			delete(m.documents, id)
		}
	}
	return nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents), nil
}

// Documents returns the stored documents sorted by ID.
func (m *MockVectorDriver) Documents() []vector.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]vector.Document, 0, len(m.documents))
	for _, d := range m.documents {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b vector.Document) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (m *MockVectorDriver) Close() error {
	return nil
}
