package slack

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/progress"
	"github.com/poiesic/lmao/retry"
	"github.com/poiesic/lmao/storage"
)

// DefaultRetryPolicy retries a Slack call up to 5 times, waiting between
// 4 and 10 seconds with exponential growth.
var DefaultRetryPolicy = retry.ExponentialPolicy(5, time.Second, 4*time.Second, 10*time.Second)

// Config configures an Ingestor.
type Config struct {
	// OutputDir receives slack_messages_<n>.json files.
	OutputDir string

	// MaxMessagesPerFile is the batch size. Default: 1000
	MaxMessagesPerFile int

	// User, when set, keeps only messages authored by this user ID.
	User string

	// Incremental fetches only messages newer than the previous run.
	// Requires a checkpoint repository.
	Incremental bool

	// Retry is the policy applied to each API call.
	Retry retry.Policy

	MaxTokens int
	Counter   batch.TokenCounter

	// Progress, when set, renders a spinner of exported messages.
	Progress io.Writer
}

// Result summarizes an ingestion run. Messages counts messages written to
// batch files.
type Result struct {
	Channels       int
	FailedChannels []string
	Messages       int
	Excluded       int
	Files          []batch.FileInfo
}

// Ingestor exports the messages of every readable channel.
type Ingestor struct {
	cfg         Config
	auth        Refresher
	newAPI      APIFactory
	api         API
	checkpoints storage.CheckpointRepository
	logger      *slog.Logger
}

// NewIngestor creates an ingestor. checkpoints may be nil unless
// cfg.Incremental is set.
func NewIngestor(cfg Config, auth Refresher, newAPI APIFactory, checkpoints storage.CheckpointRepository) (*Ingestor, error) {
	if cfg.MaxMessagesPerFile == 0 {
		cfg.MaxMessagesPerFile = 1000
	}
	if cfg.MaxMessagesPerFile < 0 {
		return nil, batch.ErrInvalidBatchSize
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.Incremental && checkpoints == nil {
		return nil, errors.New("incremental export requires a checkpoint repository")
	}
	return &Ingestor{
		cfg:         cfg,
		auth:        auth,
		newAPI:      newAPI,
		checkpoints: checkpoints,
		logger:      slog.Default().With("component", "slack-ingestor"),
	}, nil
}

// MessagesNamer names Slack batch files.
func MessagesNamer(index int) string {
	return fmt.Sprintf("slack_messages_%d.json", index)
}

func channelCheckpointKey(channelID string) string {
	return "slack:channel:" + channelID
}

// Ingest refreshes the access token, then exports all conversations.
// A channel that keeps failing is logged and skipped.
func (in *Ingestor) Ingest(ctx context.Context) (*Result, error) {
	if err := in.refresh(ctx); err != nil {
		return nil, err
	}

	conversations, err := in.listConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	in.logger.Info("fetched conversations", "count", len(conversations))

	writer, err := batch.NewWriter[core.SlackMessage](batch.Config{
		Dir:        in.cfg.OutputDir,
		MaxRecords: in.cfg.MaxMessagesPerFile,
		MaxTokens:  in.cfg.MaxTokens,
		Counter:    in.cfg.Counter,
		FirstIndex: 1,
		Append:     in.cfg.Incremental,
		Namer:      MessagesNamer,
	})
	if err != nil {
		return nil, err
	}

	progressWriter := in.cfg.Progress
	if progressWriter == nil {
		progressWriter = io.Discard
	}
	tracker := progress.NewTracker(progressWriter, -1, "Exporting messages")
	tracker.Start()
	defer tracker.Finish()

	manifest := batch.NewManifest("slack", in.cfg.MaxMessagesPerFile)
	result := &Result{}
	defer func() { result.Messages = writer.Total() }()
	for _, conv := range conversations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		tracker.Describe("#" + conv.Name)
		if err := in.exportChannel(ctx, conv, writer, result, tracker); err != nil {
			if errors.Is(err, ErrRefreshFailed) || ctx.Err() != nil {
				return result, err
			}
			in.logger.Error("error fetching messages, skipping channel", "channel_id", conv.ID, "channel", conv.Name, "err", err)
			result.FailedChannels = append(result.FailedChannels, conv.ID)
			continue
		}
		result.Channels++
	}

	if err := writer.Flush(); err != nil {
		in.logger.Error("failed to save messages", "err", err)
	}
	result.Files = writer.Files()
	result.Messages = writer.Total()

	if len(result.Files) > 0 {
		manifest.Add(result.Files...)
		if in.cfg.Incremental {
			if prev, err := batch.ReadManifest(in.cfg.OutputDir); err == nil {
				manifest.Merge(prev)
			}
		}
		if err := batch.WriteManifest(in.cfg.OutputDir, manifest); err != nil {
			in.logger.Warn("failed to write manifest", "err", err)
		}
	}

	in.logger.Info("slack export completed",
		"channels", result.Channels, "messages", result.Messages, "excluded", result.Excluded, "files", len(result.Files))
	return result, nil
}

func (in *Ingestor) refresh(ctx context.Context) error {
	token, err := in.auth.Refresh(ctx)
	if err != nil {
		if !errors.Is(err, ErrRefreshFailed) {
			err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
		return err
	}
	in.api = in.newAPI(token.AccessToken)
	return nil
}

// call runs op with the retry policy. An authentication failure triggers
// one token refresh and another round of attempts.
func (in *Ingestor) call(ctx context.Context, op func(api API) error) error {
	refreshed := false
	for {
		err := retry.Do(ctx, in.cfg.Retry, func() error {
			err := op(in.api)
			if errors.Is(err, ErrAuthExpired) {
				return retry.Permanent(err)
			}
			return err
		})
		if errors.Is(err, ErrAuthExpired) && !refreshed {
			in.logger.Info("access token rejected, refreshing", "err", err)
			refreshed = true
			if err := in.refresh(ctx); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

func (in *Ingestor) listConversations(ctx context.Context) ([]Conversation, error) {
	var all []Conversation
	cursor := ""
	for {
		var page []Conversation
		var next string
		err := in.call(ctx, func(api API) error {
			var err error
			page, next, err = api.Conversations(ctx, cursor)
			return err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

func (in *Ingestor) exportChannel(ctx context.Context, conv Conversation, writer *batch.Writer[core.SlackMessage], result *Result, tracker *progress.Tracker) error {
	logger := in.logger.With("channel_id", conv.ID, "channel", conv.Name)

	oldest := ""
	if in.cfg.Incremental {
		checkpoint, err := in.checkpoints.LoadCheckpoint(ctx, channelCheckpointKey(conv.ID))
		if err != nil {
			return err
		}
		if checkpoint != nil {
			oldest = checkpoint.Value
		}
	}

	newest := oldest
	cursor := ""
	count := 0
	for {
		var page HistoryPage
		err := in.call(ctx, func(api API) error {
			var err error
			page, err = api.History(ctx, conv.ID, cursor, oldest)
			return err
		})
		if err != nil {
			return err
		}

		for _, msg := range page.Messages {
			if newerTimestamp(msg.Timestamp, newest) {
				newest = msg.Timestamp
			}
			if in.cfg.User != "" && msg.User != in.cfg.User {
				result.Excluded++
				continue
			}
			record := in.buildMessage(ctx, conv, msg, logger)
			if err := writer.Add(record); err != nil {
				logger.Error("failed to save messages", "err", err)
			}
			count++
			tracker.Increment(1)
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	logger.Debug("exported channel", "messages", count, "buffered", writer.Pending())

	// The checkpoint moves only once this channel's messages are on disk.
	if in.cfg.Incremental && newest != oldest {
		checkpoint := &core.Checkpoint{Key: channelCheckpointKey(conv.ID), Value: newest}
		writer.AfterWritten(func() error {
			if err := in.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
				return fmt.Errorf("save checkpoint of %s: %w", conv.ID, err)
			}
			return nil
		})
	}
	return nil
}

// buildMessage converts a history entry into a SlackMessage. Image and
// plain text attachments are downloaded and embedded base64 encoded; when a
// message carries several, the last one of each kind wins.
func (in *Ingestor) buildMessage(ctx context.Context, conv Conversation, msg Message, logger *slog.Logger) core.SlackMessage {
	record := core.SlackMessage{
		ChannelID:   conv.ID,
		ChannelName: conv.Name,
		User:        msg.User,
		Text:        batch.SanitizeString(msg.Text),
		Timestamp:   msg.Timestamp,
	}

	for _, f := range msg.Files {
		isImage := strings.HasPrefix(f.Mimetype, "image/")
		isText := f.Mimetype == "text/plain"
		if !isImage && !isText {
			continue
		}

		data, err := in.download(ctx, f.URLPrivate)
		if err != nil {
			logger.Warn("failed to download file", "url", f.URLPrivate, "err", err)
			continue
		}
		payload := &core.FilePayload{Filename: f.Name, Filetype: f.Filetype, Data: data}
		if isImage {
			record.Image = payload
		} else {
			record.TextSnippet = payload
		}
	}
	return record
}

// download fetches an attachment in a single attempt; a failed download
// only drops the attachment.
func (in *Ingestor) download(ctx context.Context, url string) (string, error) {
	var buf bytes.Buffer
	if err := in.api.Download(ctx, url, &buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// newerTimestamp reports whether Slack timestamp a is after b. An empty b
// is older than everything.
func newerTimestamp(a, b string) bool {
	if b == "" {
		return a != ""
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return a > b
	}
	return fa > fb
}
