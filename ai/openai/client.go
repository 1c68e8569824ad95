package openai

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/poiesic/lmao/ai"
	goopenai "github.com/sashabaranov/go-openai"
)

// Client implements ai.Client on top of go-openai.
type Client struct {
	api    *goopenai.Client
	config *ai.Config
	logger *slog.Logger
}

// newClient is an internal constructor that returns the concrete type.
func newClient(config *ai.Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL

	return &Client{
		api:    goopenai.NewClientWithConfig(clientConfig),
		config: config,
		logger: slog.Default().With("component", "openai-client"),
	}, nil
}

// NewClient creates a client for the configured OpenAI endpoint.
//
// Returns ai.Client interface to enforce abstraction.
func NewClient(config *ai.Config) (ai.Client, error) {
	return newClient(config)
}

// UploadFile uploads the file at path with purpose "assistants".
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := c.api.CreateFile(ctx, goopenai.FileRequest{
		FileName: filepath.Base(path),
		FilePath: path,
		Purpose:  string(goopenai.PurposeAssistants),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	c.logger.Debug("uploaded file", "path", path, "file_id", file.ID, "bytes", file.Bytes)
	return file.ID, nil
}

// CreateVectorStore creates an empty vector store.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (string, error) {
	store, err := c.api.CreateVectorStore(ctx, goopenai.VectorStoreRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("create vector store %q: %w", name, err)
	}
	return store.ID, nil
}

// AddFileBatch creates a file batch and polls it until it is no longer in progress.
func (c *Client) AddFileBatch(ctx context.Context, vectorStoreID string, fileIDs []string) (ai.FileBatch, error) {
	created, err := c.api.CreateVectorStoreFileBatch(ctx, vectorStoreID, goopenai.VectorStoreFileBatchRequest{
		FileIDs: fileIDs,
	})
	if err != nil {
		return ai.FileBatch{}, fmt.Errorf("create file batch: %w", err)
	}

	batch := toFileBatch(created)
	for !batch.Status.Terminal() {
		c.logger.Debug("waiting for file batch", "batch_id", batch.ID, "completed", batch.Completed, "total", batch.Total)
		select {
		case <-ctx.Done():
			return batch, ctx.Err()
		case <-time.After(c.config.PollInterval):
		}

		current, err := c.api.RetrieveVectorStoreFileBatch(ctx, vectorStoreID, batch.ID)
		if err != nil {
			return batch, fmt.Errorf("poll file batch %s: %w", batch.ID, err)
		}
		batch = toFileBatch(current)
	}
	return batch, nil
}

// CreateAssistant creates an assistant with the file_search tool bound to
// the given vector stores.
func (c *Client) CreateAssistant(ctx context.Context, spec ai.AssistantSpec) (string, error) {
	model := spec.Model
	if model == "" {
		model = c.config.Model
	}

	request := goopenai.AssistantRequest{
		Model: model,
		Tools: []goopenai.AssistantTool{{Type: goopenai.AssistantToolTypeFileSearch}},
		ToolResources: &goopenai.AssistantToolResource{
			FileSearch: &goopenai.AssistantToolFileSearch{
				VectorStoreIDs: spec.VectorStoreIDs,
			},
		},
	}
	if spec.Name != "" {
		request.Name = &spec.Name
	}
	if spec.Instructions != "" {
		request.Instructions = &spec.Instructions
	}

	assistant, err := c.api.CreateAssistant(ctx, request)
	if err != nil {
		return "", fmt.Errorf("create assistant %q: %w", spec.Name, err)
	}
	return assistant.ID, nil
}

func toFileBatch(b goopenai.VectorStoreFileBatch) ai.FileBatch {
	return ai.FileBatch{
		ID:        b.ID,
		Status:    ai.FileBatchStatus(b.Status),
		Completed: b.FileCounts.Completed,
		Failed:    b.FileCounts.Failed,
		Cancelled: b.FileCounts.Cancelled,
		Total:     b.FileCounts.Total,
	}
}
