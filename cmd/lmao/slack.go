package main

import (
	"fmt"

	"github.com/poiesic/lmao/slack"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

func slackCommand() *cli.Command {
	return &cli.Command{
		Name:   "slack",
		Usage:  "Export Slack channel messages",
		Action: slackAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "Slack app client ID",
				EnvVars: []string{"SLACK_CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "Slack app client secret",
				EnvVars: []string{"SLACK_CLIENT_SECRET"},
			},
			&cli.StringFlag{
				Name:    "refresh-token",
				Usage:   "Slack refresh token",
				EnvVars: []string{"SLACK_REFRESH_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory receiving the message batches",
			},
			&cli.IntFlag{
				Name:  "max-messages-per-file",
				Usage: "Messages per batch file",
				Value: 1000,
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Keep only messages authored by this user ID",
			},
			&cli.BoolFlag{
				Name:  "incremental",
				Usage: "Export only messages newer than the previous run",
			},
		},
	}
}

func slackAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s := &cfg.Slack
	overrideString(c, "client-id", &s.ClientID)
	overrideString(c, "client-secret", &s.ClientSecret)
	overrideString(c, "refresh-token", &s.RefreshToken)
	overrideString(c, "output-dir", &s.OutputDir)
	overrideInt(c, "max-messages-per-file", &s.MaxMessagesPerFile)
	overrideString(c, "user", &s.User)
	overrideBool(c, "incremental", &s.Incremental)
	if err := cfg.ValidateSlack(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	auth, err := slack.NewAuthenticator(slack.Credentials{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RefreshToken: s.RefreshToken,
	}, slack.WithTokenStore(store.CheckpointRepository()))
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(s.RequestsPerSecond), 1)
	ingestor, err := slack.NewIngestor(slack.Config{
		OutputDir:          s.OutputDir,
		MaxMessagesPerFile: s.MaxMessagesPerFile,
		User:               s.User,
		Incremental:        s.Incremental,
		MaxTokens:          cfg.Output.MaxTokens,
		Counter:            tokenCounter(cfg),
		Progress:           c.App.ErrWriter,
	}, auth, slack.NewAPIFactory(limiter), store.CheckpointRepository())
	if err != nil {
		return fmt.Errorf("failed to create slack ingestor: %w", err)
	}

	w := c.App.Writer
	printHeading(w, "Exporting Slack messages to %s", s.OutputDir)
	result, err := ingestor.Ingest(c.Context)
	if err != nil {
		return fmt.Errorf("slack export failed: %w", err)
	}

	printSuccess(w, "%d messages from %d channels in %d files", result.Messages, result.Channels, len(result.Files))
	if result.Excluded > 0 {
		printField(w, "excluded", result.Excluded)
	}
	for _, id := range result.FailedChannels {
		printWarning(w, "channel %s skipped", id)
	}
	return nil
}
