package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lmao/ai"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/progress"
	"github.com/poiesic/lmao/retry"
	"github.com/poiesic/lmao/storage"
)

// UploadResult summarizes one Upload call.
type UploadResult struct {
	// FileIDs holds the remote IDs of cached and newly uploaded files in
	// path order. Failed paths have no entry.
	FileIDs []string

	Uploaded int
	Cached   int
	Failed   []string
}

// Uploader uploads batch files to OpenAI, skipping files the upload cache
// already knows about.
type Uploader struct {
	client          ai.Client
	cache           storage.UploadCache
	pool            *ants.Pool
	maxRetries      int
	retryDelay      time.Duration
	reuploadChanged bool
	progressWriter  io.Writer
	logger          *slog.Logger
}

// Option configures an Uploader.
type Option func(*Uploader) error

// WithPoolSize sets the number of concurrent uploads.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(u *Uploader) error {
		if size < 1 {
			size = 1
		}
		if u.pool != nil {
			u.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		u.pool = pool
		return nil
	}
}

// WithMaxRetries sets the number of upload attempts per file. Default is 2.
func WithMaxRetries(attempts int) Option {
	return func(u *Uploader) error {
		if attempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		u.maxRetries = attempts
		return nil
	}
}

// WithRetryDelay sets the sleep between upload attempts. Default is 1s.
func WithRetryDelay(delay time.Duration) Option {
	return func(u *Uploader) error {
		u.retryDelay = delay
		return nil
	}
}

// WithReuploadChanged uploads cached files again when their content digest
// no longer matches the cached one.
func WithReuploadChanged(enabled bool) Option {
	return func(u *Uploader) error {
		u.reuploadChanged = enabled
		return nil
	}
}

// WithProgress renders a progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(u *Uploader) error {
		u.progressWriter = w
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) error {
		if logger == nil {
			logger = slog.Default()
		}
		u.logger = logger
		return nil
	}
}

// NewUploader creates an uploader backed by client and cache.
func NewUploader(client ai.Client, cache storage.UploadCache, opts ...Option) (*Uploader, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	u := &Uploader{
		client:     client,
		cache:      cache,
		pool:       pool,
		maxRetries: 2,
		retryDelay: time.Second,
		logger:     slog.Default().With("component", "uploader"),
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			u.pool.Release()
			return nil, err
		}
	}
	return u, nil
}

// Release stops the worker pool.
func (u *Uploader) Release() {
	u.pool.Release()
}

// Upload uploads every path not yet in the cache. Cache entries are written
// as each upload succeeds, so an interrupted run resumes where it stopped.
// Files that still fail after all attempts are logged and skipped.
func (u *Uploader) Upload(ctx context.Context, paths []string) (*UploadResult, error) {
	// Each slot is written by exactly one goroutine, the loop or a worker.
	ids := make([]string, len(paths))
	failed := make([]bool, len(paths))
	result := &UploadResult{}

	progressWriter := u.progressWriter
	if progressWriter == nil {
		progressWriter = io.Discard
	}
	tracker := progress.NewTracker(progressWriter, len(paths), "Uploading files")
	tracker.Start()
	defer tracker.Finish()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		cacheErr error
	)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			u.logger.Error("failed to read file, skipping", "path", path, "err", err)
			failed[i] = true
			tracker.Increment(1)
			continue
		}
		digest := core.DigestBytes(data)

		cached, err := u.cachedID(ctx, path, digest)
		if err != nil {
			wg.Wait()
			return nil, err
		}
		if cached != "" {
			u.logger.Info("skipping already uploaded file", "path", path)
			ids[i] = cached
			result.Cached++
			tracker.Increment(1)
			continue
		}

		wg.Add(1)
		index := i
		submitErr := u.pool.Submit(func() {
			defer wg.Done()
			defer tracker.Increment(1)

			id, err := u.uploadOne(ctx, path, digest)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ids[index] = id
				result.Uploaded++
			case errors.Is(err, errCache):
				if cacheErr == nil {
					cacheErr = err
				}
				ids[index] = id
				result.Uploaded++
			default:
				failed[index] = true
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit upload of %s: %w", path, submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cacheErr != nil {
		return nil, cacheErr
	}

	for i, id := range ids {
		if id != "" {
			result.FileIDs = append(result.FileIDs, id)
		}
		if failed[i] {
			result.Failed = append(result.Failed, paths[i])
		}
	}
	u.logger.Info("upload finished",
		"uploaded", result.Uploaded, "cached", result.Cached, "failed", len(result.Failed))
	return result, nil
}

var errCache = errors.New("upload cache write failed")

// cachedID returns the cached file ID of path, or "" when the file must be
// uploaded.
func (u *Uploader) cachedID(ctx context.Context, path, digest string) (string, error) {
	entry, err := u.cache.Get(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read upload cache for %s: %w", path, err)
	}
	if u.reuploadChanged && entry.Digest != "" && entry.Digest != digest {
		u.logger.Info("file changed since upload, uploading again", "path", path, "previous_id", entry.FileID)
		return "", nil
	}
	return entry.FileID, nil
}

func (u *Uploader) uploadOne(ctx context.Context, path, digest string) (string, error) {
	var id string
	attempt := 0
	err := retry.Fixed(ctx, u.maxRetries, u.retryDelay, func() error {
		attempt++
		var err error
		id, err = u.client.UploadFile(ctx, path)
		if err != nil {
			u.logger.Warn("failed to upload file", "path", path, "attempt", attempt, "max_attempts", u.maxRetries, "err", err)
		}
		return err
	})
	if err != nil {
		u.logger.Error("giving up on file", "path", path, "attempts", u.maxRetries, "err", err)
		return "", err
	}
	u.logger.Info("uploaded file", "path", path, "file_id", id)

	entry := &core.UploadEntry{Path: path, FileID: id, Digest: digest}
	if err := u.cache.Put(ctx, entry); err != nil {
		return id, fmt.Errorf("%w: %s: %w", errCache, path, err)
	}
	return id, nil
}
