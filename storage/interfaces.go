package storage

import (
	"context"

	"github.com/poiesic/lmao/core"
)

// UploadCache remembers which local files were already uploaded to OpenAI.
// Entries are keyed by local path.
// Implementations must be thread-safe; uploads run on a worker pool.
type UploadCache interface {
	// Get returns the entry for path.
	// Returns ErrNotFound if the path was never uploaded.
	Get(ctx context.Context, path string) (*core.UploadEntry, error)

	// Has reports whether path is present in the cache.
	Has(ctx context.Context, path string) (bool, error)

	// Put stores or replaces the entry for entry.Path.
	// Sets UploadedAt if not already set.
	Put(ctx context.Context, entry *core.UploadEntry) error

	// Delete removes the entry for path.
	// Returns ErrNotFound if the path is not cached.
	Delete(ctx context.Context, path string) error

	// List returns every cached entry ordered by path.
	List(ctx context.Context) ([]*core.UploadEntry, error)

	// Close releases resources held by the cache.
	Close() error
}

// CheckpointRepository persists ingestion checkpoints between runs.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint under checkpoint.Key.
	// UpdatedAt is set automatically.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint stored under key.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, key string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint stored under key.
	// Deleting a missing checkpoint is not an error.
	DeleteCheckpoint(ctx context.Context, key string) error
}
