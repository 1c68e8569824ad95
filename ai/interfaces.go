package ai

import "context"

// Client talks to the OpenAI files, vector store and assistant APIs.
// Implementations must be thread-safe for concurrent use.
type Client interface {
	// UploadFile uploads the local file at path with purpose "assistants"
	// and returns the remote file ID.
	UploadFile(ctx context.Context, path string) (string, error)

	// CreateVectorStore creates an empty vector store and returns its ID.
	CreateVectorStore(ctx context.Context, name string) (string, error)

	// AddFileBatch attaches fileIDs to the vector store as one file batch and
	// blocks until the batch reaches a terminal status.
	AddFileBatch(ctx context.Context, vectorStoreID string, fileIDs []string) (FileBatch, error)

	// CreateAssistant creates an assistant and returns its ID.
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)
}

// TokenCounter reports the number of model tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

// FileBatchStatus is the processing status of a vector store file batch.
type FileBatchStatus string

const (
	FileBatchInProgress FileBatchStatus = "in_progress"
	FileBatchCompleted  FileBatchStatus = "completed"
	FileBatchCancelled  FileBatchStatus = "cancelled"
	FileBatchFailed     FileBatchStatus = "failed"
)

// Terminal reports whether no further status change is expected.
func (s FileBatchStatus) Terminal() bool {
	switch s {
	case FileBatchCompleted, FileBatchCancelled, FileBatchFailed:
		return true
	}
	return false
}

// FileBatch describes a group of files added to a vector store together.
type FileBatch struct {
	ID        string
	Status    FileBatchStatus
	Completed int
	Failed    int
	Cancelled int
	Total     int
}

// AssistantSpec describes an assistant with file search over vector stores.
type AssistantSpec struct {
	Name           string
	Instructions   string
	Model          string
	VectorStoreIDs []string
}
