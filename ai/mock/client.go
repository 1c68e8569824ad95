package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/lmao/ai"
)

// MockClient is a test double for ai.Client.
// Behavior can be injected via function fields; by default every call
// succeeds with sequential IDs.
type MockClient struct {
	UploadFileFunc        func(ctx context.Context, path string) (string, error)
	CreateVectorStoreFunc func(ctx context.Context, name string) (string, error)
	AddFileBatchFunc      func(ctx context.Context, vectorStoreID string, fileIDs []string) (ai.FileBatch, error)
	CreateAssistantFunc   func(ctx context.Context, spec ai.AssistantSpec) (string, error)

	mu         sync.Mutex
	uploads    []string
	stores     []string
	batches    [][]string
	assistants []ai.AssistantSpec
}

// NewMockClient creates a mock client with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// UploadFile records the path and returns "file-<n>".
func (m *MockClient) UploadFile(ctx context.Context, path string) (string, error) {
	if m.UploadFileFunc != nil {
		id, err := m.UploadFileFunc(ctx, path)
		if err == nil {
			m.mu.Lock()
			m.uploads = append(m.uploads, path)
			m.mu.Unlock()
		}
		return id, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, path)
	return fmt.Sprintf("file-%d", len(m.uploads)), nil
}

// CreateVectorStore records the name and returns "vs-<n>".
func (m *MockClient) CreateVectorStore(ctx context.Context, name string) (string, error) {
	if m.CreateVectorStoreFunc != nil {
		return m.CreateVectorStoreFunc(ctx, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores = append(m.stores, name)
	return fmt.Sprintf("vs-%d", len(m.stores)), nil
}

// AddFileBatch records the file IDs and reports a completed batch.
func (m *MockClient) AddFileBatch(ctx context.Context, vectorStoreID string, fileIDs []string) (ai.FileBatch, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), fileIDs...))
	n := len(m.batches)
	m.mu.Unlock()

	if m.AddFileBatchFunc != nil {
		return m.AddFileBatchFunc(ctx, vectorStoreID, fileIDs)
	}
	return ai.FileBatch{
		ID:        fmt.Sprintf("vsfb-%d", n),
		Status:    ai.FileBatchCompleted,
		Completed: len(fileIDs),
		Total:     len(fileIDs),
	}, nil
}

// CreateAssistant records the spec and returns "asst-<n>".
func (m *MockClient) CreateAssistant(ctx context.Context, spec ai.AssistantSpec) (string, error) {
	if m.CreateAssistantFunc != nil {
		return m.CreateAssistantFunc(ctx, spec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.assistants = append(m.assistants, spec)
	return fmt.Sprintf("asst-%d", len(m.assistants)), nil
}

// Uploads returns the paths of successful uploads in call order.
func (m *MockClient) Uploads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.uploads...)
}

// Batches returns the file IDs of every AddFileBatch call.
func (m *MockClient) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}

// Assistants returns every assistant spec passed to CreateAssistant.
func (m *MockClient) Assistants() []ai.AssistantSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.AssistantSpec(nil), m.assistants...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads, m.stores, m.batches, m.assistants = nil, nil, nil, nil
	m.UploadFileFunc = nil
	m.CreateVectorStoreFunc = nil
	m.AddFileBatchFunc = nil
	m.CreateAssistantFunc = nil
}

// Compile-time interface check
var _ ai.Client = (*MockClient)(nil)
