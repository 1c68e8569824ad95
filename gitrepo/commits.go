package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/core"
)

// DateLayout formats commit dates as ISO 8601 local time without offset.
const DateLayout = "2006-01-02T15:04:05"

// CommitToRecord converts a commit into a CommitRecord. Diffs are taken
// against the first parent; a root commit has an empty diff list.
func CommitToRecord(ctx context.Context, repo, branch string, commit *object.Commit) (core.CommitRecord, error) {
	record := core.CommitRecord{
		Repository:  repo,
		Branch:      branch,
		CommitHash:  commit.Hash.String(),
		Author:      commit.Author.Name,
		AuthorEmail: commit.Author.Email,
		Date:        commit.Committer.When.Local().Format(DateLayout),
		Message:     batch.SanitizeString(strings.TrimSpace(commit.Message)),
		Diffs:       []core.FileDiff{},
	}

	if commit.NumParents() == 0 {
		return record, nil
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return record, fmt.Errorf("load parent of %s: %w", commit.Hash, err)
	}
	patch, err := parent.PatchContext(ctx, commit)
	if err != nil {
		return record, fmt.Errorf("diff %s: %w", commit.Hash, err)
	}

	for _, fp := range patch.FilePatches() {
		text, err := encodeFilePatch(fp)
		if err != nil {
			return record, fmt.Errorf("encode diff of %s: %w", commit.Hash, err)
		}
		record.Diffs = append(record.Diffs, core.FileDiff{
			FilePath: filePatchPath(fp),
			Diff:     batch.SanitizeString(text),
		})
	}
	return record, nil
}

// filePatchPath is the path after the change, or before it for deletions.
func filePatchPath(fp diff.FilePatch) string {
	from, to := fp.Files()
	if to != nil {
		return to.Path()
	}
	if from != nil {
		return from.Path()
	}
	return ""
}

// singleFilePatch adapts one file patch to diff.Patch for the unified encoder.
type singleFilePatch struct {
	fp diff.FilePatch
}

func (p singleFilePatch) FilePatches() []diff.FilePatch { return []diff.FilePatch{p.fp} }

func (p singleFilePatch) Message() string { return "" }

// encodeFilePatch renders the hunks of a file patch in unified format,
// without the "diff --git" and "---/+++" header lines.
func encodeFilePatch(fp diff.FilePatch) (string, error) {
	var buf bytes.Buffer
	if err := diff.NewUnifiedEncoder(&buf, diff.DefaultContextLines).Encode(singleFilePatch{fp: fp}); err != nil {
		return "", err
	}
	text := buf.String()
	if strings.HasPrefix(text, "@@") {
		return text, nil
	}
	if i := strings.Index(text, "\n@@"); i >= 0 {
		return text[i+1:], nil
	}
	// binary or mode-only change
	return "", nil
}
