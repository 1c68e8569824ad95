package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func init() {
	color.NoColor = true
}

// runApp runs the CLI with args and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	envFile := filepath.Join(t.TempDir(), "absent.env")
	err := app.Run(append([]string{"lmao", "--env-file", envFile}, args...))
	return out.String(), err
}

func findFlag[T cli.Flag](t *testing.T, flags []cli.Flag, name string) T {
	t.Helper()
	for _, flag := range flags {
		if f, ok := flag.(T); ok && flag.Names()[0] == name {
			return f
		}
	}
	t.Fatalf("flag %q not found", name)
	var zero T
	return zero
}

func command(t *testing.T, name string) *cli.Command {
	t.Helper()
	cmd := newApp().Command(name)
	require.NotNil(t, cmd, "command %s", name)
	return cmd
}

func TestCommands(t *testing.T) {
	for _, name := range []string{"repo", "slack", "office", "assistant", "verify"} {
		t.Run(name, func(t *testing.T) {
			cmd := command(t, name)
			assert.NotEmpty(t, cmd.Usage)
			assert.NotNil(t, cmd.Action)
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	app := newApp()

	logLevel := findFlag[*cli.StringFlag](t, app.Flags, "log-level")
	assert.Equal(t, "info", logLevel.Value)
	assert.Equal(t, []string{"LMAO_LOG_LEVEL"}, logLevel.EnvVars)

	cfg := findFlag[*cli.StringFlag](t, app.Flags, "config")
	assert.Empty(t, cfg.Value)
	assert.Equal(t, []string{"c"}, cfg.Aliases)

	state := findFlag[*cli.StringFlag](t, app.Flags, "state")
	assert.Empty(t, state.Value)
}

func TestCommandDefaults(t *testing.T) {
	t.Run("repo batch-size defaults to 100", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](t, command(t, "repo").Flags, "batch-size")
		assert.Equal(t, 100, f.Value)
	})

	t.Run("slack max-messages-per-file defaults to 1000", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](t, command(t, "slack").Flags, "max-messages-per-file")
		assert.Equal(t, 1000, f.Value)
	})

	t.Run("slack credentials read the environment", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, command(t, "slack").Flags, "refresh-token")
		assert.Equal(t, []string{"SLACK_REFRESH_TOKEN"}, f.EnvVars)
	})

	t.Run("office batch-size defaults to 10", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](t, command(t, "office").Flags, "batch-size")
		assert.Equal(t, 10, f.Value)
	})

	t.Run("assistant vector store name", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, command(t, "assistant").Flags, "vector-store-name")
		assert.Equal(t, "lmao_vector_store", f.Value)
	})
}

func TestConfigurationErrors(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "LMAO_OPENAI_API_KEY", "LMAO_GITLAB_REPO_URLS",
		"SLACK_CLIENT_ID", "SLACK_CLIENT_SECRET", "SLACK_REFRESH_TOKEN",
		"LMAO_SLACK_CLIENT_ID", "LMAO_SLACK_CLIENT_SECRET", "LMAO_SLACK_REFRESH_TOKEN",
		"LMAO_SHAREPOINT_CLIENT_ID", "LMAO_SHAREPOINT_CLIENT_SECRET", "LMAO_SHAREPOINT_TENANT_ID",
	} {
		t.Setenv(key, "")
	}
	state := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"repo without urls", []string{"repo", "--local-repo-base-path", "/r", "--output-base-path", "/o"}, "repository URL"},
		{"repo bad parallelism", []string{"repo", "--local-repo-base-path", "/r", "--output-base-path", "/o", "--parallelism", "0", "https://x/y.git"}, "parallelism"},
		{"slack without credentials", []string{"slack", "--output-dir", "/o"}, "client_id"},
		{"office without user", []string{"office", "--client-id", "a", "--client-secret", "b", "--tenant-id", "c", "--site-id", "d"}, "user_email"},
		{"assistant without key", []string{"assistant", "--base-path", "/o", "--assistant-name", "Ada"}, "api_key"},
		{"verify without dir", []string{"verify"}, "exactly one directory"},
		{"missing config file", []string{"--config", "/nonexistent/lmao.toml", "repo"}, "failed to read config file"},
		{"bad log level", []string{"--log-level", "loud", "verify", "."}, "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--state", state}, tt.args...)
			_, err := runApp(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	w, err := batch.NewWriter[core.CommitRecord](batch.Config{
		Dir:        dir,
		MaxRecords: 2,
		Namer:      batch.IndexedNamer("main_batch_"),
	})
	require.NoError(t, err)
	for _, hash := range []string{"a", "b", "c"} {
		require.NoError(t, w.Add(core.CommitRecord{Repository: "widgets", Branch: "main", CommitHash: hash, Diffs: []core.FileDiff{}}))
	}
	require.NoError(t, w.Flush())
	m := batch.NewManifest("git:widgets", 2)
	m.Add(w.Files()...)
	require.NoError(t, batch.WriteManifest(dir, m))

	t.Run("text report", func(t *testing.T) {
		out, err := runApp(t, "verify", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "no problems found")
		assert.Contains(t, out, "records:")
	})

	t.Run("json report", func(t *testing.T) {
		out, err := runApp(t, "verify", "--json", dir)
		require.NoError(t, err)
		var report verify.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, 3, report.Records)
		assert.Len(t, report.Files, 2)
	})

	t.Run("strict fails on problems", func(t *testing.T) {
		out, err := runApp(t, "verify", "--max-records", "1", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "oversized")

		_, err = runApp(t, "verify", "--strict", "--max-records", "1", dir)
		require.Error(t, err)
		var exitErr cli.ExitCoder
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.ExitCode())
	})
}

func TestLoadConfig_StateFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lmao.toml")
	require.NoError(t, os.WriteFile(path, []byte("[state]\ndir = \"/from/file\"\n"), 0644))

	var stateDir string
	app := newApp()
	app.Writer = io.Discard
	app.Commands = []*cli.Command{{
		Name: "probe",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			stateDir = cfg.State.Dir
			return nil
		},
	}}

	require.NoError(t, app.Run([]string{"lmao", "--config", path, "probe"}))
	assert.Equal(t, "/from/file", stateDir)

	require.NoError(t, app.Run([]string{"lmao", "--config", path, "--state", "/from/flag", "probe"}))
	assert.Equal(t, "/from/flag", stateDir)
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	tests := []struct {
		input   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"WaRn", false},
		{"error", false},
		{"verbose", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			app := &cli.App{
				Name: "test",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "log-level"},
				},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}
			err := app.Run([]string{"test", "--log-level", tt.input})
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid log level")
				return
			}
			assert.NoError(t, err)
		})
	}
}
