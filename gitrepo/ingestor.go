// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/storage"
)

const remoteName = "origin"

// Config configures an Ingestor.
type Config struct {
	// Token authenticates HTTPS clones and fetches as user "oauth2".
	Token string

	// LocalBase holds the local clones, one directory per repository.
	LocalBase string

	// OutputBase receives one directory of batch files per repository.
	OutputBase string

	// BatchSize is the number of commits per batch file. Default: 100
	BatchSize int

	// Parallelism is the number of repositories processed at once. Default: 1
	Parallelism int

	// Incremental exports only commits newer than the last run.
	// Requires a checkpoint repository.
	Incremental bool

	// MaxTokens optionally caps the tokens per batch file.
	MaxTokens int
	Counter   batch.TokenCounter
}

// Result summarizes the export of one repository.
type Result struct {
	Repository string
	Branches   int
	Commits    int
	Files      []batch.FileInfo
	Err        error
}

// Ingestor exports the commit history of git repositories to JSON batches.
type Ingestor struct {
	cfg         Config
	checkpoints storage.CheckpointRepository
	logger      *slog.Logger
}

// NewIngestor creates an ingestor. checkpoints may be nil unless
// cfg.Incremental is set.
func NewIngestor(cfg Config, checkpoints storage.CheckpointRepository) (*Ingestor, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchSize < 0 {
		return nil, batch.ErrInvalidBatchSize
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.Incremental && checkpoints == nil {
		return nil, errors.New("incremental export requires a checkpoint repository")
	}
	return &Ingestor{
		cfg:         cfg,
		checkpoints: checkpoints,
		logger:      slog.Default().With("component", "git-ingestor"),
	}, nil
}

func (i *Ingestor) auth() transport.AuthMethod {
	if i.cfg.Token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "oauth2", Password: i.cfg.Token}
}

// ProcessRepositories exports every repository. A failing repository is
// logged and does not stop the others. Results are in input order.
func (i *Ingestor) ProcessRepositories(ctx context.Context, urls []string) ([]Result, error) {
	results := make([]Result, len(urls))

	pool, err := ants.NewPool(i.cfg.Parallelism)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for n, url := range urls {
		wg.Add(1)
		index, repoURL := n, url
		err := pool.Submit(func() {
			defer wg.Done()
			result, err := i.ProcessRepository(ctx, repoURL)
			if err != nil {
				i.logger.Error("failed to process repository", "url", repoURL, "err", err)
				result.Err = err
			}
			results[index] = result
		})
		if err != nil {
			wg.Done()
			results[index] = Result{Repository: repoURL, Err: err}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// ProcessRepository clones or updates one repository and exports the
// commits of all its branches.
func (i *Ingestor) ProcessRepository(ctx context.Context, url string) (Result, error) {
	name, err := RepoName(url)
	if err != nil {
		return Result{Repository: url}, err
	}
	result := Result{Repository: name}
	logger := i.logger.With("repository", name)

	localPath := filepath.Join(i.cfg.LocalBase, name)
	outputPath := filepath.Join(i.cfg.OutputBase, name)
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return result, fmt.Errorf("create output directory: %w", err)
	}

	repo, err := i.openOrClone(ctx, url, localPath)
	if err != nil {
		return result, err
	}

	branches, err := listBranches(repo)
	if err != nil {
		return result, err
	}
	if len(branches) == 0 {
		return result, ErrNoBranches
	}

	manifest := batch.NewManifest("git:"+name, i.cfg.BatchSize)
	for _, br := range branches {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		files, commits, err := i.exportBranch(ctx, repo, name, outputPath, br)
		manifest.Add(files...)
		result.Files = append(result.Files, files...)
		result.Commits += commits
		if err != nil {
			return result, fmt.Errorf("branch %s: %w", br.name, err)
		}
		result.Branches++
	}

	if i.cfg.Incremental {
		if prev, err := batch.ReadManifest(outputPath); err == nil {
			manifest.Merge(prev)
		}
	}
	if err := batch.WriteManifest(outputPath, manifest); err != nil {
		logger.Warn("failed to write manifest", "err", err)
	}

	logger.Info("data export completed", "branches", result.Branches, "commits", result.Commits, "files", len(result.Files))
	return result, nil
}

func (i *Ingestor) openOrClone(ctx context.Context, url, localPath string) (*git.Repository, error) {
	if _, err := os.Stat(localPath); errors.Is(err, os.ErrNotExist) {
		i.logger.Info("cloning repository", "url", url, "path", localPath)
		repo, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:  url,
			Auth: i.auth(),
		})
		if err != nil {
			return nil, fmt.Errorf("clone %s: %w", url, err)
		}
		return repo, nil
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       i.auth(),
		Force:      true,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
	case errors.Is(err, git.ErrRemoteNotFound):
		i.logger.Warn("repository has no origin remote, exporting local branches", "path", localPath)
	default:
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return repo, nil
}

type branchRef struct {
	name string
	hash plumbing.Hash
}

// listBranches returns the remote-tracking branches of origin, or the local
// heads when there are none, sorted by name.
func listBranches(repo *git.Repository) ([]branchRef, error) {
	refs, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}

	remote := map[string]plumbing.Hash{}
	local := map[string]plumbing.Hash{}
	prefix := remoteName + "/"
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		switch {
		case ref.Name().IsRemote():
			short := ref.Name().Short()
			if strings.HasPrefix(short, prefix) && short != prefix+"HEAD" {
				remote[strings.TrimPrefix(short, prefix)] = ref.Hash()
			}
		case ref.Name().IsBranch():
			local[ref.Name().Short()] = ref.Hash()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chosen := remote
	if len(chosen) == 0 {
		chosen = local
	}
	branches := make([]branchRef, 0, len(chosen))
	for name, hash := range chosen {
		branches = append(branches, branchRef{name: name, hash: hash})
	}
	sort.Slice(branches, func(a, b int) bool { return branches[a].name < branches[b].name })
	return branches, nil
}

// exportBranch walks a branch newest first and writes its commits in batches.
func (i *Ingestor) exportBranch(ctx context.Context, repo *git.Repository, name, outputPath string, br branchRef) ([]batch.FileInfo, int, error) {
	logger := i.logger.With("repository", name, "branch", br.name)

	var stopAt string
	if i.cfg.Incremental {
		checkpoint, err := i.checkpoints.LoadCheckpoint(ctx, checkpointKey(name, br.name))
		if err != nil {
			return nil, 0, err
		}
		if checkpoint != nil {
			stopAt = checkpoint.Value
		}
		if stopAt == br.hash.String() {
			logger.Info("branch unchanged since last run")
			return nil, 0, nil
		}
	}

	writer, err := batch.NewWriter[core.CommitRecord](batch.Config{
		Dir:        outputPath,
		MaxRecords: i.cfg.BatchSize,
		MaxTokens:  i.cfg.MaxTokens,
		Counter:    i.cfg.Counter,
		FirstIndex: 0,
		Append:     i.cfg.Incremental,
		Namer:      BatchNamer(br.name),
	})
	if err != nil {
		return nil, 0, err
	}

	iter, err := repo.Log(&git.LogOptions{From: br.hash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, 0, fmt.Errorf("log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stopAt != "" && commit.Hash.String() == stopAt {
			return errStopWalk
		}
		record, err := CommitToRecord(ctx, name, br.name, commit)
		if err != nil {
			logger.Warn("failed to diff commit, exporting without diffs", "commit", commit.Hash.String(), "err", err)
			record.Diffs = []core.FileDiff{}
		}
		if err := writer.Add(record); err != nil {
			logger.Error("failed to export batch", "err", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return writer.Files(), writer.Total(), err
	}
	if err := writer.Flush(); err != nil {
		logger.Error("failed to export batch", "err", err)
	}

	// Runs only when every walked commit reached a batch file.
	if i.cfg.Incremental {
		checkpoint := &core.Checkpoint{Key: checkpointKey(name, br.name), Value: br.hash.String()}
		writer.AfterWritten(func() error {
			return i.checkpoints.SaveCheckpoint(ctx, checkpoint)
		})
		if writer.Err() != nil {
			logger.Warn("checkpoint not advanced, commits will be exported again next run", "err", writer.Err())
		}
	}
	return writer.Files(), writer.Total(), nil
}
