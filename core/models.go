package core

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// DigestBytes returns the hex encoded BLAKE2b-256 digest of data.
// Used to detect local files that changed after they were uploaded.
func DigestBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileDiff is the patch of a single file between a commit and its first parent.
type FileDiff struct {
	FilePath string `json:"file_path"`
	Diff     string `json:"diff"`
}

// CommitRecord is one commit of one branch as exported by the repository ingestor.
type CommitRecord struct {
	Repository  string     `json:"repository"`
	Branch      string     `json:"branch"`
	CommitHash  string     `json:"commit_hash"`
	Author      string     `json:"author"`
	AuthorEmail string     `json:"author_email"`
	Date        string     `json:"date"`
	Message     string     `json:"message"`
	Diffs       []FileDiff `json:"diffs"`
}

// FilePayload is a downloaded attachment, base64 encoded.
type FilePayload struct {
	Filename string `json:"filename"`
	Filetype string `json:"filetype"`
	Data     string `json:"data"`
}

// SlackMessage is a single channel message as exported by the Slack ingestor.
type SlackMessage struct {
	ChannelID   string       `json:"channel_id"`
	ChannelName string       `json:"channel_name"`
	User        string       `json:"user"`
	Text        string       `json:"text"`
	Timestamp   string       `json:"timestamp"`
	Image       *FilePayload `json:"image,omitempty"`
	TextSnippet *FilePayload `json:"text_snippet,omitempty"`
}

// SheetTable maps a worksheet name to its rows. A cell is nil, a string,
// a float64 or a bool.
type SheetTable map[string][][]any

// DocumentContent holds whatever could be extracted from an office document.
// Word and PowerPoint files fill Text and Images, Excel files fill Table.
type DocumentContent struct {
	Text   *string      `json:"text,omitempty"`
	Images []string     `json:"images,omitempty"`
	Table  []SheetTable `json:"table,omitempty"`
}

// OfficeDocument is a SharePoint drive item together with its extracted content.
type OfficeDocument struct {
	Name     string          `json:"name"`
	ID       string          `json:"id"`
	Content  DocumentContent `json:"content"`
	Metadata json.RawMessage `json:"metadata"`
}

// UploadEntry records a local file that was uploaded to the OpenAI Files API.
type UploadEntry struct {
	Path       string
	FileID     string
	Digest     string
	UploadedAt time.Time
}

// Checkpoint is a small piece of ingestion state persisted between runs,
// such as the newest exported commit of a branch or a rotated refresh token.
type Checkpoint struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
