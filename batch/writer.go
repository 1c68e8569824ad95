package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	// ErrInvalidBatchSize is returned when MaxRecords is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrNamerRequired is returned when no file namer is configured.
	ErrNamerRequired = errors.New("batch file namer required")
)

// Namer returns the file name of the batch with the given index.
type Namer func(index int) string

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

// FileInfo describes one written batch file.
type FileInfo struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Records int    `json:"records"`
	Path    string `json:"-"`
}

// Config controls where and how batches are written.
type Config struct {
	// Dir is the output directory. It is created on the first flush.
	Dir string

	// MaxRecords is the maximum number of records per file.
	MaxRecords int

	// MaxTokens optionally caps the tokens of a file's records. Zero disables
	// the cap. A single record above the cap is written on its own.
	MaxTokens int

	// Counter counts tokens when MaxTokens is set.
	Counter TokenCounter

	// FirstIndex is the index of the first file.
	FirstIndex int

	// Append skips indexes whose file already exists in Dir, so incremental
	// runs never overwrite earlier batches.
	Append bool

	// Namer names batch files.
	Namer Namer
}

// Writer accumulates records and flushes them to numbered JSON files.
// A file never holds more than MaxRecords records.
// Writer is not safe for concurrent use.
type Writer[T any] struct {
	cfg           Config
	pending       []T
	pendingTokens int
	next          int
	files         []FileInfo
	logger        *slog.Logger

	accepted int
	written  int
	err      error
	waiting  []watermark
}

// watermark is an action held back until the first upTo accepted records
// are on disk.
type watermark struct {
	upTo int
	fn   func() error
}

// NewWriter creates a batch writer.
func NewWriter[T any](cfg Config) (*Writer[T], error) {
	if cfg.MaxRecords <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if cfg.Namer == nil {
		return nil, ErrNamerRequired
	}
	return &Writer[T]{
		cfg:     cfg,
		pending: make([]T, 0, cfg.MaxRecords),
		next:    cfg.FirstIndex,
		logger:  slog.Default().With("component", "batch-writer", "dir", cfg.Dir),
	}, nil
}

// Add appends record to the current batch, flushing first when the token
// cap would be exceeded and afterwards when the batch is full.
func (w *Writer[T]) Add(record T) error {
	tokens := 0
	if w.cfg.MaxTokens > 0 && w.cfg.Counter != nil {
		data, err := Encode(record)
		if err != nil {
			return w.fail(fmt.Errorf("encode record: %w", err))
		}
		tokens = w.cfg.Counter.CountTokens(string(data))
		if len(w.pending) > 0 && w.pendingTokens+tokens > w.cfg.MaxTokens {
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}

	w.pending = append(w.pending, record)
	w.pendingTokens += tokens
	w.accepted++

	if len(w.pending) >= w.cfg.MaxRecords {
		return w.Flush()
	}
	return nil
}

// Flush writes the pending records, if any, to the next batch file.
// A failed write is returned to the caller; the pending records are dropped
// and the index still advances so later batches keep their own files.
func (w *Writer[T]) Flush() error {
	if len(w.pending) == 0 {
		w.release()
		return nil
	}

	records := w.pending
	w.pending = make([]T, 0, w.cfg.MaxRecords)
	w.pendingTokens = 0

	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return w.fail(fmt.Errorf("create output directory: %w", err))
	}

	index := w.nextIndex()
	name := w.cfg.Namer(index)
	path := filepath.Join(w.cfg.Dir, name)

	if err := WriteJSON(path, records); err != nil {
		return w.fail(fmt.Errorf("write batch %d: %w", index, err))
	}

	w.files = append(w.files, FileInfo{Name: name, Index: index, Records: len(records), Path: path})
	w.written += len(records)
	w.logger.Info("exported batch", "index", index, "records", len(records), "path", path)
	w.release()
	return nil
}

// AfterWritten holds fn back until every record added so far has been
// written to a batch file, and runs it right away when nothing is buffered.
// Once any write has failed, fn is dropped and never runs: some records it
// covers may be missing from disk. Errors returned by fn are logged.
func (w *Writer[T]) AfterWritten(fn func() error) {
	if w.err != nil {
		w.logger.Warn("write failed earlier, dropping deferred action", "err", w.err)
		return
	}
	w.waiting = append(w.waiting, watermark{upTo: w.accepted, fn: fn})
	w.release()
}

// Err returns the first write failure, if any.
func (w *Writer[T]) Err() error {
	return w.err
}

func (w *Writer[T]) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	if len(w.waiting) > 0 {
		w.logger.Warn("dropping deferred actions after failed write", "count", len(w.waiting))
		w.waiting = nil
	}
	return err
}

func (w *Writer[T]) release() {
	if w.err != nil {
		return
	}
	n := 0
	for _, mark := range w.waiting {
		if mark.upTo > w.written {
			break
		}
		n++
		if err := mark.fn(); err != nil {
			w.logger.Error("deferred action failed", "err", err)
		}
	}
	w.waiting = w.waiting[n:]
}

// nextIndex claims the next file index.
func (w *Writer[T]) nextIndex() int {
	if w.cfg.Append {
		for {
			if _, err := os.Stat(filepath.Join(w.cfg.Dir, w.cfg.Namer(w.next))); err != nil {
				break
			}
			w.next++
		}
	}
	index := w.next
	w.next++
	return index
}

// Pending returns the number of records not yet flushed.
func (w *Writer[T]) Pending() int {
	return len(w.pending)
}

// Files returns the batch files written so far.
func (w *Writer[T]) Files() []FileInfo {
	return append([]FileInfo(nil), w.files...)
}

// Total returns the number of records written to files so far.
func (w *Writer[T]) Total() int {
	return w.written
}

// IndexedNamer returns a Namer producing "<prefix><index>.json".
func IndexedNamer(prefix string) Namer {
	return func(index int) string {
		return fmt.Sprintf("%s%d.json", prefix, index)
	}
}
