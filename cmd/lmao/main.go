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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/lmao"
	"github.com/poiesic/lmao/ai/openai"
	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/config"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lmao",
		Usage: "Export Git history, Slack, and SharePoint content to batched JSON and publish it to an OpenAI assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"LMAO_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LMAO_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Directory of the local state store (upload cache, checkpoints)",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load environment variables from these files",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Before: before,
		Commands: []*cli.Command{
			repoCommand(),
			slackCommand(),
			officeCommand(),
			assistantCommand(),
			verifyCommand(),
		},
	}
}

func before(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	return config.LoadEnvFiles(c.StringSlice("env-file")...)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads the configuration named by --config and applies the
// global --state flag.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("state") {
		cfg.State.Dir = c.String("state")
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*lmao.Store, error) {
	store, err := lmao.OpenStore(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// tokenCounter returns nil unless a token cap is configured.
func tokenCounter(cfg *config.Config) batch.TokenCounter {
	if cfg.Output.MaxTokens <= 0 {
		return nil
	}
	return openai.NewTokenCounter(cfg.Output.TokenModel)
}

func overrideString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func overrideInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func overrideBool(c *cli.Context, name string, dst *bool) {
	if c.IsSet(name) {
		*dst = c.Bool(name)
	}
}
