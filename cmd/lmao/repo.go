package main

import (
	"fmt"

	"github.com/poiesic/lmao/gitrepo"
	"github.com/urfave/cli/v2"
)

func repoCommand() *cli.Command {
	return &cli.Command{
		Name:      "repo",
		Usage:     "Export the commit history of git repositories",
		ArgsUsage: "[repository URL...]",
		Action:    repoAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "Access token for HTTPS remotes",
			},
			&cli.StringFlag{
				Name:  "local-repo-base-path",
				Usage: "Directory holding the local clones",
			},
			&cli.StringFlag{
				Name:  "output-base-path",
				Usage: "Directory receiving one output directory per repository",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Commits per batch file",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "parallelism",
				Usage: "Repositories processed concurrently",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "incremental",
				Usage: "Export only commits newer than the previous run",
			},
		},
	}
}

func repoAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	g := &cfg.GitLab
	overrideString(c, "token", &g.Token)
	overrideString(c, "local-repo-base-path", &g.LocalRepoBasePath)
	overrideString(c, "output-base-path", &g.OutputBasePath)
	overrideInt(c, "batch-size", &g.BatchSize)
	overrideInt(c, "parallelism", &g.Parallelism)
	overrideBool(c, "incremental", &g.Incremental)
	if c.Args().Present() {
		g.RepoURLs = c.Args().Slice()
	}
	if err := cfg.ValidateGitLab(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ingestor, err := gitrepo.NewIngestor(gitrepo.Config{
		Token:       g.Token,
		LocalBase:   g.LocalRepoBasePath,
		OutputBase:  g.OutputBasePath,
		BatchSize:   g.BatchSize,
		Parallelism: g.Parallelism,
		Incremental: g.Incremental,
		MaxTokens:   cfg.Output.MaxTokens,
		Counter:     tokenCounter(cfg),
	}, store.CheckpointRepository())
	if err != nil {
		return fmt.Errorf("failed to create repository ingestor: %w", err)
	}

	w := c.App.Writer
	printHeading(w, "Exporting %d repositories to %s", len(g.RepoURLs), g.OutputBasePath)
	results, err := ingestor.ProcessRepositories(c.Context, g.RepoURLs)
	for _, r := range results {
		if r.Err != nil {
			printFailure(w, "%s: %v", r.Repository, r.Err)
			continue
		}
		printSuccess(w, "%s: %d commits on %d branches in %d files", r.Repository, r.Commits, r.Branches, len(r.Files))
	}
	return err
}
