package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the complete configuration of every ingestor.
// Priority: CLI flags > environment variables > config file > defaults.
type Config struct {
	State      StateConfig      `toml:"state"`
	Output     OutputConfig     `toml:"output"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	GitLab     GitLabConfig     `toml:"gitlab"`
	Slack      SlackConfig      `toml:"slack"`
	SharePoint SharePointConfig `toml:"sharepoint"`
}

// StateConfig locates the local state store.
type StateConfig struct {
	Dir string `toml:"dir"`
}

// OutputConfig holds settings shared by all batch writers.
type OutputConfig struct {
	// MaxTokens caps the tokens per batch file. Zero disables the cap.
	MaxTokens int `toml:"max_tokens"`
	// TokenModel is the model whose tokenizer counts tokens.
	TokenModel string `toml:"token_model"`
}

// OpenAIConfig configures the assistant publisher.
type OpenAIConfig struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	AssistantName   string `toml:"assistant_name"`
	VectorStoreName string `toml:"vector_store_name"`
	BasePath        string `toml:"base_path"`
	MaxRetries      int    `toml:"max_retries"`
	Concurrency     int    `toml:"concurrency"`
}

// GitLabConfig configures the repository ingestor.
type GitLabConfig struct {
	Token             string   `toml:"token"`
	LocalRepoBasePath string   `toml:"local_repo_base_path"`
	OutputBasePath    string   `toml:"output_base_path"`
	RepoURLs          []string `toml:"repo_urls"`
	BatchSize         int      `toml:"batch_size"`
	Parallelism       int      `toml:"parallelism"`
	Incremental       bool     `toml:"incremental"`
}

// SlackConfig configures the Slack ingestor.
type SlackConfig struct {
	ClientID           string  `toml:"client_id"`
	ClientSecret       string  `toml:"client_secret"`
	RefreshToken       string  `toml:"refresh_token"`
	OutputDir          string  `toml:"output_dir"`
	MaxMessagesPerFile int     `toml:"max_messages_per_file"`
	User               string  `toml:"user"`
	Incremental        bool    `toml:"incremental"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
}

// SharePointConfig configures the office document ingestor.
type SharePointConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TenantID     string `toml:"tenant_id"`
	SiteID       string `toml:"site_id"`
	UserEmail    string `toml:"user_email"`
	DownloadDir  string `toml:"download_dir"`
	BatchSize    int    `toml:"batch_size"`
	Recursive    bool   `toml:"recursive"`
}

// NewDefaultConfig returns the defaults of the original ingestion scripts.
func NewDefaultConfig() *Config {
	return &Config{
		State: StateConfig{Dir: ".lmao"},
		Output: OutputConfig{
			TokenModel: "gpt-4o",
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o",
			MaxRetries:  2,
			Concurrency: 4,
		},
		GitLab: GitLabConfig{
			BatchSize:   100,
			Parallelism: 1,
		},
		Slack: SlackConfig{
			MaxMessagesPerFile: 1000,
			RequestsPerSecond:  1,
		},
		SharePoint: SharePointConfig{
			BatchSize: 10,
		},
	}
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// Load builds the configuration: defaults, then the TOML file at path
// (skipped when empty), then environment overrides.
func Load(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Credentials are usually supplied this way, often from a .env file.
func applyEnvOverrides(config *Config) {
	setString(&config.State.Dir, "LMAO_STATE_DIR")

	setString(&config.OpenAI.APIKey, "OPENAI_API_KEY", "LMAO_OPENAI_API_KEY")
	setString(&config.OpenAI.BaseURL, "LMAO_OPENAI_BASE_URL")
	setString(&config.OpenAI.Model, "LMAO_OPENAI_MODEL")

	setString(&config.GitLab.Token, "GITLAB_TOKEN", "LMAO_GITLAB_TOKEN")
	if urls := os.Getenv("LMAO_GITLAB_REPO_URLS"); urls != "" {
		config.GitLab.RepoURLs = strings.Fields(strings.ReplaceAll(urls, ",", " "))
	}

	setString(&config.Slack.ClientID, "LMAO_SLACK_CLIENT_ID")
	setString(&config.Slack.ClientSecret, "LMAO_SLACK_CLIENT_SECRET")
	setString(&config.Slack.RefreshToken, "LMAO_SLACK_REFRESH_TOKEN")
	setInt(&config.Slack.MaxMessagesPerFile, "LMAO_SLACK_MAX_MESSAGES_PER_FILE")

	setString(&config.SharePoint.ClientID, "LMAO_SHAREPOINT_CLIENT_ID")
	setString(&config.SharePoint.ClientSecret, "LMAO_SHAREPOINT_CLIENT_SECRET")
	setString(&config.SharePoint.TenantID, "LMAO_SHAREPOINT_TENANT_ID")
	setString(&config.SharePoint.SiteID, "LMAO_SHAREPOINT_SITE_ID")
	setInt(&config.SharePoint.BatchSize, "LMAO_SHAREPOINT_BATCH_SIZE")
}

// setString assigns each non-empty variable in turn, so the last set name wins.
func setString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func setInt(dst *int, name string) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
