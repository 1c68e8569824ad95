package sharepoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/office"
	"github.com/poiesic/lmao/progress"
	"github.com/poiesic/lmao/retry"
)

// DefaultDownloadPolicy makes three download attempts one second apart.
var DefaultDownloadPolicy = retry.FixedPolicy(3, time.Second)

// Graph is the part of the Graph API the ingestor needs.
type Graph interface {
	ListDocuments(ctx context.Context, recursive bool) ([]DriveItem, error)
	ListVersions(ctx context.Context, itemID string) ([]DriveItemVersion, error)
	Download(ctx context.Context, itemID string, w io.Writer) error
}

// ExtractFunc extracts the content of a downloaded document.
type ExtractFunc func(path, imageDir string) (core.DocumentContent, error)

// Config configures an Ingestor.
type Config struct {
	// UserEmail selects documents that have a version last modified by
	// this user.
	UserEmail string

	// DownloadDir receives the documents, their images and the batch files.
	DownloadDir string

	// BatchSize is the number of documents per batch file. Default: 10
	BatchSize int

	// Recursive descends into folders of the document library.
	Recursive bool

	// Download is the retry policy of a single download.
	Download retry.Policy

	MaxTokens int
	Counter   batch.TokenCounter

	// Progress, when set, renders a bar of processed documents.
	Progress io.Writer
}

// Result summarizes an ingestion run. Processed counts documents written to
// batch files.
type Result struct {
	Listed    int
	Matched   int
	Processed int
	Failed    []string
	Files     []batch.FileInfo
}

// Ingestor exports the SharePoint documents a user contributed to.
type Ingestor struct {
	cfg     Config
	graph   Graph
	extract ExtractFunc
	logger  *slog.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithExtractor replaces office.Extract.
func WithExtractor(fn ExtractFunc) IngestorOption {
	return func(in *Ingestor) {
		in.extract = fn
	}
}

// NewIngestor creates an ingestor reading from graph.
func NewIngestor(cfg Config, graph Graph, opts ...IngestorOption) (*Ingestor, error) {
	if cfg.UserEmail == "" {
		return nil, ErrMissingUser
	}
	if cfg.DownloadDir == "" {
		return nil, errors.New("download directory is required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchSize < 0 {
		return nil, batch.ErrInvalidBatchSize
	}
	if cfg.Download.MaxAttempts == 0 {
		cfg.Download = DefaultDownloadPolicy
	}

	in := &Ingestor{
		cfg:     cfg,
		graph:   graph,
		extract: office.Extract,
		logger:  slog.Default().With("component", "sharepoint-ingestor"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// BatchNamer names SharePoint batch files.
func BatchNamer(index int) string {
	return fmt.Sprintf("batch_%d.json", index)
}

// Run lists the site's documents, keeps those the user modified, then
// downloads and extracts them batch by batch. A document that cannot be
// downloaded or extracted is logged and skipped.
func (in *Ingestor) Run(ctx context.Context) (*Result, error) {
	items, err := in.graph.ListDocuments(ctx, in.cfg.Recursive)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	result := &Result{Listed: len(items)}

	documents, err := in.FilterByUser(ctx, items)
	if err != nil {
		return result, err
	}
	result.Matched = len(documents)
	in.logger.Info("documents selected", "listed", len(items), "matched", len(documents), "user", in.cfg.UserEmail)

	if err := os.MkdirAll(in.cfg.DownloadDir, 0755); err != nil {
		return result, fmt.Errorf("create download directory: %w", err)
	}

	writer, err := batch.NewWriter[core.OfficeDocument](batch.Config{
		Dir:        in.cfg.DownloadDir,
		MaxRecords: in.cfg.BatchSize,
		MaxTokens:  in.cfg.MaxTokens,
		Counter:    in.cfg.Counter,
		FirstIndex: 1,
		Namer:      BatchNamer,
	})
	if err != nil {
		return result, err
	}

	progressWriter := in.cfg.Progress
	if progressWriter == nil {
		progressWriter = io.Discard
	}
	tracker := progress.NewTracker(progressWriter, len(documents), "Processing documents")
	tracker.Start()
	defer tracker.Finish()

	for _, item := range documents {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		doc, err := in.process(ctx, item)
		tracker.Increment(1)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			in.logger.Error("skipping document", "id", item.ID, "name", item.Name, "err", err)
			result.Failed = append(result.Failed, item.ID)
			continue
		}
		if err := writer.Add(doc); err != nil {
			in.logger.Error("failed to save batch", "err", err)
		}
	}

	if err := writer.Flush(); err != nil {
		in.logger.Error("failed to save batch", "err", err)
	}
	result.Processed = writer.Total()
	result.Files = writer.Files()

	if len(result.Files) > 0 {
		manifest := batch.NewManifest("sharepoint", in.cfg.BatchSize)
		manifest.Add(result.Files...)
		if err := batch.WriteManifest(in.cfg.DownloadDir, manifest); err != nil {
			in.logger.Warn("failed to write manifest", "err", err)
		}
	}

	in.logger.Info("sharepoint export completed",
		"processed", result.Processed, "failed", len(result.Failed), "files", len(result.Files))
	return result, nil
}

// FilterByUser keeps items with at least one version last modified by the
// configured user. Emails compare case-insensitively. An item whose
// versions cannot be listed is logged and dropped.
func (in *Ingestor) FilterByUser(ctx context.Context, items []DriveItem) ([]DriveItem, error) {
	var matched []DriveItem
	for _, item := range items {
		versions, err := in.graph.ListVersions(ctx, item.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			in.logger.Warn("failed to list versions", "id", item.ID, "name", item.Name, "err", err)
			continue
		}
		for _, v := range versions {
			if strings.EqualFold(v.ModifiedBy(), in.cfg.UserEmail) {
				matched = append(matched, item)
				break
			}
		}
	}
	return matched, nil
}

func (in *Ingestor) process(ctx context.Context, item DriveItem) (core.OfficeDocument, error) {
	var buf bytes.Buffer
	err := retry.Do(ctx, in.cfg.Download, func() error {
		buf.Reset()
		return in.graph.Download(ctx, item.ID, &buf)
	})
	if err != nil {
		return core.OfficeDocument{}, fmt.Errorf("download: %w", err)
	}

	filePath := filepath.Join(in.cfg.DownloadDir, in.localName(item))
	if err := os.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return core.OfficeDocument{}, fmt.Errorf("save: %w", err)
	}
	in.logger.Debug("downloaded", "name", item.Name, "bytes", buf.Len())

	if !office.Supported(item.Name) {
		in.logger.Info("unsupported file type, exporting without content", "name", item.Name)
	}
	content, err := in.extract(filePath, in.cfg.DownloadDir)
	if err != nil {
		return core.OfficeDocument{}, fmt.Errorf("extract: %w", err)
	}

	return core.OfficeDocument{
		Name:     item.Name,
		ID:       item.ID,
		Content:  content,
		Metadata: item.Raw,
	}, nil
}

// localName is the file name a document is saved under. Recursive listings
// can hold equal names in different folders, so the item ID is prepended.
func (in *Ingestor) localName(item DriveItem) string {
	name := filepath.Base(item.Name)
	if in.cfg.Recursive {
		return item.ID + "_" + name
	}
	return name
}
