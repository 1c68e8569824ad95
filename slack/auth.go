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

package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/storage"
	"golang.org/x/oauth2"
)

// DefaultTokenURL is Slack's OAuth v2 token endpoint.
const DefaultTokenURL = "https://slack.com/api/oauth.v2.access"

// RefreshTokenKey is the checkpoint key of the rotated refresh token.
const RefreshTokenKey = "slack:refresh-token"

// Credentials identify the Slack app and the installation being exported.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Validate checks that every credential is present.
func (c Credentials) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Refresher obtains a fresh access token.
type Refresher interface {
	Refresh(ctx context.Context) (*oauth2.Token, error)
}

// Authenticator runs the OAuth2 refresh-token grant against Slack.
// Slack rotates refresh tokens; the newest one is kept in memory and, when
// a checkpoint repository is configured, persisted for the next run.
type Authenticator struct {
	creds      Credentials
	tokenURL   string
	httpClient *http.Client
	store      storage.CheckpointRepository
	mu         sync.Mutex
	logger     *slog.Logger
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(url string) AuthOption {
	return func(a *Authenticator) {
		a.tokenURL = url
	}
}

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(client *http.Client) AuthOption {
	return func(a *Authenticator) {
		a.httpClient = client
	}
}

// WithTokenStore persists rotated refresh tokens in store.
func WithTokenStore(store storage.CheckpointRepository) AuthOption {
	return func(a *Authenticator) {
		a.store = store
	}
}

// NewAuthenticator creates an authenticator for creds.
func NewAuthenticator(creds Credentials, opts ...AuthOption) (*Authenticator, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	a := &Authenticator{
		creds:    creds,
		tokenURL: DefaultTokenURL,
		logger:   slog.Default().With("component", "slack-auth"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Refresh exchanges the current refresh token for a new access token.
// A refresh token persisted by an earlier run takes precedence over the
// configured one, which Slack has invalidated by then.
func (a *Authenticator) Refresh(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	refreshToken, err := a.currentRefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	config := &oauth2.Config{
		ClientID:     a.creds.ClientID,
		ClientSecret: a.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}

	token, err := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		a.logger.Error("failed to refresh token", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		a.creds.RefreshToken = token.RefreshToken
		if a.store != nil {
			err := a.store.SaveCheckpoint(ctx, &core.Checkpoint{Key: RefreshTokenKey, Value: token.RefreshToken})
			if err != nil {
				return nil, fmt.Errorf("persist rotated refresh token: %w", err)
			}
		}
		a.logger.Info("refresh token rotated")
	}
	a.logger.Debug("access token refreshed", "expiry", token.Expiry)
	return token, nil
}

func (a *Authenticator) currentRefreshToken(ctx context.Context) (string, error) {
	if a.store == nil {
		return a.creds.RefreshToken, nil
	}
	stored, err := a.store.LoadCheckpoint(ctx, RefreshTokenKey)
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	if stored != nil && stored.Value != "" {
		return stored.Value, nil
	}
	return a.creds.RefreshToken, nil
}
