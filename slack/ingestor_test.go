package slack

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/retry"
	"github.com/poiesic/lmao/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeAPI serves scripted conversations and histories.
type fakeAPI struct {
	token         string
	conversations [][]Conversation
	history       map[string][]Message
	pageSize      int
	files         map[string]string

	// historyErr, when set, is consulted before every History call.
	historyErr func(token, channelID string) error

	historyCalls int
	oldestSeen   map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		history:    map[string][]Message{},
		files:      map[string]string{},
		pageSize:   100,
		oldestSeen: map[string]string{},
	}
}

func (f *fakeAPI) Conversations(ctx context.Context, cursor string) ([]Conversation, string, error) {
	page := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "page-%d", &page)
	}
	if page >= len(f.conversations) {
		return nil, "", nil
	}
	next := ""
	if page+1 < len(f.conversations) {
		next = fmt.Sprintf("page-%d", page+1)
	}
	return f.conversations[page], next, nil
}

func (f *fakeAPI) History(ctx context.Context, channelID, cursor, oldest string) (HistoryPage, error) {
	f.historyCalls++
	f.oldestSeen[channelID] = oldest
	if f.historyErr != nil {
		if err := f.historyErr(f.token, channelID); err != nil {
			return HistoryPage{}, err
		}
	}

	var messages []Message
	for _, m := range f.history[channelID] {
		if oldest == "" || newerTimestamp(m.Timestamp, oldest) {
			messages = append(messages, m)
		}
	}

	start := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &start)
	}
	end := min(start+f.pageSize, len(messages))
	page := HistoryPage{Messages: messages[start:end]}
	if end < len(messages) {
		page.NextCursor = fmt.Sprintf("%d", end)
	}
	return page, nil
}

func (f *fakeAPI) Download(ctx context.Context, url string, w io.Writer) error {
	content, ok := f.files[url]
	if !ok {
		return errors.New("404 not found")
	}
	_, err := io.WriteString(w, content)
	return err
}

// fakeRefresher hands out tokens "tok-1", "tok-2", ...
type fakeRefresher struct {
	calls int
	err   error
}

func (r *fakeRefresher) Refresh(ctx context.Context) (*oauth2.Token, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &oauth2.Token{AccessToken: fmt.Sprintf("tok-%d", r.calls)}, nil
}

func factoryFor(api *fakeAPI) APIFactory {
	return func(token string) API {
		api.token = token
		return api
	}
}

var fastRetry = retry.FixedPolicy(3, time.Millisecond)

func newTestIngestor(t *testing.T, cfg Config, api *fakeAPI, auth Refresher) *Ingestor {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fastRetry
	}
	in, err := NewIngestor(cfg, auth, factoryFor(api), nil)
	require.NoError(t, err)
	return in
}

func readMessages(t *testing.T, path string) []core.SlackMessage {
	t.Helper()
	var messages []core.SlackMessage
	require.NoError(t, batch.ReadJSON(path, &messages))
	return messages
}

func TestIngestWritesBatches(t *testing.T) {
	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}, {{ID: "C2", Name: "random"}}}
	api.history["C1"] = []Message{
		{User: "U1", Text: "third", Timestamp: "1700000003.000100"},
		{User: "U2", Text: "second <b>", Timestamp: "1700000002.000100", Files: []File{
			{Name: "cat.png", Filetype: "png", Mimetype: "image/png", URLPrivate: "https://files/cat.png"},
			{Name: "notes.txt", Filetype: "text", Mimetype: "text/plain", URLPrivate: "https://files/notes.txt"},
			{Name: "deck.pdf", Filetype: "pdf", Mimetype: "application/pdf", URLPrivate: "https://files/deck.pdf"},
		}},
		{User: "U1", Text: "first", Timestamp: "1700000001.000100"},
	}
	api.history["C2"] = []Message{{User: "U3", Text: "hello", Timestamp: "1700000004.000100"}}
	api.files["https://files/cat.png"] = "PNGDATA"
	api.files["https://files/notes.txt"] = "some notes"
	api.files["https://files/deck.pdf"] = "PDF"

	out := t.TempDir()
	auth := &fakeRefresher{}
	in := newTestIngestor(t, Config{OutputDir: out, MaxMessagesPerFile: 2}, api, auth)

	result, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Channels)
	assert.Equal(t, 4, result.Messages)
	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, "tok-1", api.token)
	require.Len(t, result.Files, 2)

	first := readMessages(t, filepath.Join(out, "slack_messages_1.json"))
	second := readMessages(t, filepath.Join(out, "slack_messages_2.json"))
	require.Len(t, first, 2)
	require.Len(t, second, 2)

	withFiles := first[1]
	assert.Equal(t, "C1", withFiles.ChannelID)
	assert.Equal(t, "general", withFiles.ChannelName)
	assert.Equal(t, "U2", withFiles.User)
	assert.Equal(t, "second <b>", withFiles.Text)
	require.NotNil(t, withFiles.Image)
	assert.Equal(t, "cat.png", withFiles.Image.Filename)
	assert.Equal(t, "png", withFiles.Image.Filetype)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("PNGDATA")), withFiles.Image.Data)
	require.NotNil(t, withFiles.TextSnippet)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("some notes")), withFiles.TextSnippet.Data)

	assert.Nil(t, first[0].Image)
	assert.Equal(t, "random", second[1].ChannelName)

	manifest, err := batch.ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, 4, manifest.Records())
}

func TestIngestUserFilter(t *testing.T) {
	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}}
	api.history["C1"] = []Message{
		{User: "U1", Text: "mine", Timestamp: "3.0"},
		{User: "U2", Text: "theirs", Timestamp: "2.0"},
		{User: "U1", Text: "also mine", Timestamp: "1.0"},
	}

	out := t.TempDir()
	in := newTestIngestor(t, Config{OutputDir: out, User: "U1"}, api, &fakeRefresher{})

	result, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Messages)
	assert.Equal(t, 1, result.Excluded)

	messages := readMessages(t, filepath.Join(out, "slack_messages_1.json"))
	require.Len(t, messages, 2)
	for _, m := range messages {
		assert.Equal(t, "U1", m.User)
	}
}

func TestIngestPaginatesHistory(t *testing.T) {
	api := newFakeAPI()
	api.pageSize = 2
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}}
	for i := 5; i >= 1; i-- {
		api.history["C1"] = append(api.history["C1"], Message{User: "U1", Text: fmt.Sprint(i), Timestamp: fmt.Sprintf("%d.0", i)})
	}

	out := t.TempDir()
	in := newTestIngestor(t, Config{OutputDir: out}, api, &fakeRefresher{})

	result, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Messages)
	assert.Equal(t, 3, api.historyCalls)
	assert.Len(t, readMessages(t, filepath.Join(out, "slack_messages_1.json")), 5)
}

func TestIngestRetriesTransientErrors(t *testing.T) {
	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}}
	api.history["C1"] = []Message{{User: "U1", Text: "hi", Timestamp: "1.0"}}

	failures := 2
	api.historyErr = func(token, channelID string) error {
		if failures > 0 {
			failures--
			return &retry.AfterError{Err: errors.New("ratelimited"), Delay: time.Millisecond}
		}
		return nil
	}

	in := newTestIngestor(t, Config{}, api, &fakeRefresher{})
	result, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Messages)
	assert.Equal(t, 3, api.historyCalls)
}

func TestIngestRefreshesOnAuthError(t *testing.T) {
	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}}
	api.history["C1"] = []Message{{User: "U1", Text: "hi", Timestamp: "1.0"}}
	api.historyErr = func(token, channelID string) error {
		if token == "tok-1" {
			return fmt.Errorf("%w: token_expired", ErrAuthExpired)
		}
		return nil
	}

	auth := &fakeRefresher{}
	in := newTestIngestor(t, Config{}, api, auth)

	result, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, auth.calls)
	assert.Equal(t, 1, result.Messages)
	assert.Equal(t, 2, api.historyCalls, "auth errors are not retried with the stale token")
}

func TestIngestSkipsChannelAfterRepeatedAuthErrors(t *testing.T) {
	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "private"}, {ID: "C2", Name: "general"}}}
	api.history["C2"] = []Message{{User: "U1", Text: "hi", Timestamp: "1.0"}}
	api.historyErr = func(token, channelID string) error {
		if channelID == "C1" {
			return fmt.Errorf("%w: invalid_auth", ErrAuthExpired)
		}
		return nil
	}

	in := newTestIngestor(t, Config{}, api, &fakeRefresher{})
	result, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, result.FailedChannels)
	assert.Equal(t, 1, result.Channels)
	assert.Equal(t, 1, result.Messages)
}

func TestIngestSkipsChannelAfterExhaustedRetries(t *testing.T) {
	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "broken"}}}
	api.historyErr = func(token, channelID string) error {
		return errors.New("internal_error")
	}

	in := newTestIngestor(t, Config{}, api, &fakeRefresher{})
	result, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, result.FailedChannels)
	assert.Equal(t, fastRetry.MaxAttempts, api.historyCalls)
	assert.Empty(t, result.Files)
}

func TestIngestRefreshFailure(t *testing.T) {
	api := newFakeAPI()
	in := newTestIngestor(t, Config{}, api, &fakeRefresher{err: errors.New("invalid_refresh_token")})

	_, err := in.Ingest(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
}

func TestIngestFailedDownloadOmitsPayload(t *testing.T) {
	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}}
	api.history["C1"] = []Message{{User: "U1", Text: "look", Timestamp: "1.0", Files: []File{
		{Name: "gone.png", Filetype: "png", Mimetype: "image/png", URLPrivate: "https://files/gone.png"},
	}}}

	out := t.TempDir()
	in := newTestIngestor(t, Config{OutputDir: out}, api, &fakeRefresher{})
	_, err := in.Ingest(context.Background())
	require.NoError(t, err)

	messages := readMessages(t, filepath.Join(out, "slack_messages_1.json"))
	require.Len(t, messages, 1)
	assert.Nil(t, messages[0].Image)
	assert.Equal(t, "look", messages[0].Text)
}

func TestIngestIncremental(t *testing.T) {
	ctx := context.Background()
	_, checkpoints, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}}
	api.history["C1"] = []Message{
		{User: "U1", Text: "b", Timestamp: "1700000002.000100"},
		{User: "U1", Text: "a", Timestamp: "1700000001.000100"},
	}

	out := t.TempDir()
	cfg := Config{OutputDir: out, Incremental: true, Retry: fastRetry}
	in, err := NewIngestor(cfg, &fakeRefresher{}, factoryFor(api), checkpoints)
	require.NoError(t, err)

	result, err := in.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Messages)
	assert.Equal(t, "", api.oldestSeen["C1"])

	api.history["C1"] = append([]Message{{User: "U1", Text: "c", Timestamp: "1700000003.000100"}}, api.history["C1"]...)

	result, err = in.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Messages)
	assert.Equal(t, "1700000002.000100", api.oldestSeen["C1"])

	assert.Len(t, readMessages(t, filepath.Join(out, "slack_messages_1.json")), 2)
	latest := readMessages(t, filepath.Join(out, "slack_messages_2.json"))
	require.Len(t, latest, 1)
	assert.Equal(t, "c", latest[0].Text)

	manifest, err := batch.ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, 3, manifest.Records())
}

func TestNewerTimestamp(t *testing.T) {
	assert.True(t, newerTimestamp("1.5", ""))
	assert.False(t, newerTimestamp("", ""))
	assert.True(t, newerTimestamp("1700000010.000001", "1700000009.999999"))
	assert.False(t, newerTimestamp("1700000001.000100", "1700000001.000100"))
	assert.True(t, newerTimestamp("10.0", "9.0"))
}

func TestMessagesNamer(t *testing.T) {
	assert.Equal(t, "slack_messages_1.json", MessagesNamer(1))
}

func TestIngestUnwritableOutputKeepsCheckpoint(t *testing.T) {
	ctx := context.Background()
	_, checkpoints, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	api := newFakeAPI()
	api.conversations = [][]Conversation{{{ID: "C1", Name: "general"}}}
	api.history["C1"] = []Message{{User: "U1", Text: "only", Timestamp: "1700000001.000100"}}

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	broken, err := NewIngestor(Config{OutputDir: filepath.Join(blocker, "out"), Incremental: true, Retry: fastRetry},
		&fakeRefresher{}, factoryFor(api), checkpoints)
	require.NoError(t, err)

	result, err := broken.Ingest(ctx)
	require.NoError(t, err, "write failures are logged, not fatal")
	assert.Equal(t, 0, result.Messages)
	assert.Empty(t, result.Files)

	checkpoint, err := checkpoints.LoadCheckpoint(ctx, channelCheckpointKey("C1"))
	require.NoError(t, err)
	assert.Nil(t, checkpoint, "checkpoint must not pass unwritten messages")

	out := t.TempDir()
	in, err := NewIngestor(Config{OutputDir: out, Incremental: true, Retry: fastRetry},
		&fakeRefresher{}, factoryFor(api), checkpoints)
	require.NoError(t, err)

	result, err = in.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Messages)
	messages := readMessages(t, filepath.Join(out, "slack_messages_1.json"))
	require.Len(t, messages, 1)
	assert.Equal(t, "only", messages[0].Text)

	checkpoint, err = checkpoints.LoadCheckpoint(ctx, channelCheckpointKey("C1"))
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, "1700000001.000100", checkpoint.Value)
}
