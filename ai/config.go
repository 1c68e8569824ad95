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

package ai

import (
	"errors"
	"strings"
	"time"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds configuration for the OpenAI files, vector store and assistant APIs.
type Config struct {
	// APIKey authenticates every request.
	APIKey string

	// BaseURL is the API root including the version segment.
	// Example: "https://api.openai.com/v1"
	BaseURL string

	// Model is the model assistants are created with.
	// Default: "gpt-4o"
	Model string

	// VectorStoreName names vector stores created by the publisher.
	VectorStoreName string

	// PollInterval is how often a pending vector store file batch is polled.
	// Default: 1s
	PollInterval time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL sets the API root URL.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the assistant model.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithVectorStoreName sets the name given to new vector stores.
func WithVectorStoreName(name string) ConfigOption {
	return func(c *Config) {
		c.VectorStoreName = name
	}
}

// WithPollInterval sets the file batch polling interval.
func WithPollInterval(interval time.Duration) ConfigOption {
	return func(c *Config) {
		c.PollInterval = interval
	}
}

// DefaultConfig returns a Config pointed at the public OpenAI API.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		Model:           "gpt-4o",
		VectorStoreName: "lmao_vector_store",
		PollInterval:    time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    WithVectorStoreName("FiredNoah_Vector_Store"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims trailing slashes from BaseURL and fills an empty one
// with the public endpoint.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.APIKey == "" {
		return errors.New("ai config: APIKey is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.VectorStoreName == "" {
		return errors.New("ai config: VectorStoreName is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("ai config: PollInterval must be positive")
	}
	return nil
}
