package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lmao/ai"
)

// DefaultChunkSize is the largest number of files added to a vector store
// in one file batch.
const DefaultChunkSize = 500

// ErrNoFiles is returned by Run when nothing could be uploaded.
var ErrNoFiles = errors.New("no files to publish")

// Result is the outcome of a complete publishing run.
type Result struct {
	FileIDs       []string
	VectorStoreID string
	AssistantID   string
	Upload        *UploadResult
}

// Publisher turns a directory of batch files into an assistant with file
// search over them.
type Publisher struct {
	client          ai.Client
	uploader        *Uploader
	model           string
	vectorStoreName string
	chunkSize       int
	batchDelay      time.Duration
	instructions    func(name string) string
	logger          *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithChunkSize sets the number of files per vector store file batch.
func WithChunkSize(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithBatchDelay sets the pause between vector store file batches.
func WithBatchDelay(delay time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.batchDelay = delay
	}
}

// WithVectorStoreName sets the name of created vector stores.
func WithVectorStoreName(name string) PublisherOption {
	return func(p *Publisher) {
		p.vectorStoreName = name
	}
}

// WithModel sets the assistant model.
func WithModel(model string) PublisherOption {
	return func(p *Publisher) {
		p.model = model
	}
}

// WithInstructions sets the function rendering assistant instructions
// from the assistant name.
func WithInstructions(fn func(name string) string) PublisherOption {
	return func(p *Publisher) {
		if fn != nil {
			p.instructions = fn
		}
	}
}

// NewPublisher creates a publisher.
func NewPublisher(client ai.Client, uploader *Uploader, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:          client,
		uploader:        uploader,
		model:           "gpt-4o",
		vectorStoreName: "lmao_vector_store",
		chunkSize:       DefaultChunkSize,
		batchDelay:      time.Second,
		instructions: func(name string) string {
			return fmt.Sprintf("Your name is %s. Use File Search to answer from your files.", name)
		},
		logger: slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateVectorStore creates a vector store and adds fileIDs to it in
// chunks of at most chunkSize files.
func (p *Publisher) CreateVectorStore(ctx context.Context, fileIDs []string) (string, error) {
	storeID, err := p.client.CreateVectorStore(ctx, p.vectorStoreName)
	if err != nil {
		return "", err
	}
	p.logger.Info("created vector store", "vector_store_id", storeID, "name", p.vectorStoreName)

	for start := 0; start < len(fileIDs); start += p.chunkSize {
		if start > 0 && p.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return storeID, ctx.Err()
			case <-time.After(p.batchDelay):
			}
		}

		end := min(start+p.chunkSize, len(fileIDs))
		batch, err := p.client.AddFileBatch(ctx, storeID, fileIDs[start:end])
		if err != nil {
			return storeID, fmt.Errorf("add files %d-%d to vector store: %w", start, end, err)
		}
		p.logger.Info("batch add status",
			"status", batch.Status, "completed", batch.Completed, "failed", batch.Failed, "total", batch.Total)
		if batch.Status != ai.FileBatchCompleted {
			p.logger.Warn("file batch did not complete", "batch_id", batch.ID, "status", batch.Status)
		}
	}
	return storeID, nil
}

// CreateAssistant creates an assistant named name with file search over
// the vector store.
func (p *Publisher) CreateAssistant(ctx context.Context, vectorStoreID, name string) (string, error) {
	id, err := p.client.CreateAssistant(ctx, ai.AssistantSpec{
		Name:           name,
		Instructions:   p.instructions(name),
		Model:          p.model,
		VectorStoreIDs: []string{vectorStoreID},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("created assistant", "assistant_id", id, "name", name)
	return id, nil
}

// Run uploads every batch file below base, builds a vector store from them
// and creates the assistant.
func (p *Publisher) Run(ctx context.Context, base, name string) (*Result, error) {
	paths, err := CollectFiles(base)
	if err != nil {
		return nil, fmt.Errorf("collect files under %s: %w", base, err)
	}
	p.logger.Info("collected files", "base", base, "count", len(paths))

	upload, err := p.uploader.Upload(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(upload.FileIDs) == 0 {
		return nil, ErrNoFiles
	}

	storeID, err := p.CreateVectorStore(ctx, upload.FileIDs)
	if err != nil {
		return nil, err
	}

	assistantID, err := p.CreateAssistant(ctx, storeID, name)
	if err != nil {
		return nil, err
	}

	return &Result{
		FileIDs:       upload.FileIDs,
		VectorStoreID: storeID,
		AssistantID:   assistantID,
		Upload:        upload,
	}, nil
}
