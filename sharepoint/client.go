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

package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/lmao/retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultAuthorityURL is the Azure AD login host.
	DefaultAuthorityURL = "https://login.microsoftonline.com"

	// GraphScope requests the application permissions granted to the app.
	GraphScope = "https://graph.microsoft.com/.default"

	defaultRequestsPerSecond = 10
)

// Credentials identify an Azure AD application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// TokenURL returns the tenant's OAuth2 v2.0 token endpoint.
func (c Credentials) TokenURL() string {
	return DefaultAuthorityURL + "/" + url.PathEscape(c.TenantID) + "/oauth2/v2.0/token"
}

// Client reads a SharePoint site's default document library through
// Microsoft Graph.
type Client struct {
	baseURL    string
	siteID     string
	tokenURL   string
	base       *http.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the Graph endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithTokenURL overrides the token endpoint derived from the tenant.
func WithTokenURL(tokenURL string) ClientOption {
	return func(c *Client) {
		c.tokenURL = tokenURL
	}
}

// WithHTTPClient sets the transport used for token and Graph requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.base = client
	}
}

// WithRateLimit sets the maximum number of Graph requests per second.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a Graph client authenticating with the client
// credentials grant. Tokens are fetched lazily and renewed on expiry.
func NewClient(creds Credentials, siteID string, opts ...ClientOption) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.TenantID == "" || siteID == "" {
		return nil, ErrMissingCredentials
	}

	c := &Client{
		baseURL:  DefaultBaseURL,
		siteID:   siteID,
		tokenURL: creds.TokenURL(),
		base:     &http.Client{Timeout: 60 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		logger:   slog.Default().With("component", "sharepoint-client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.tokenURL,
		Scopes:       []string{GraphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	c.httpClient = cc.Client(ctx)
	c.httpClient.Timeout = c.base.Timeout
	return c, nil
}

// ListDocuments returns the files in the root of the site's drive. With
// recursive set, files in nested folders are included as well. Folders
// themselves are never returned.
func (c *Client) ListDocuments(ctx context.Context, recursive bool) ([]DriveItem, error) {
	return c.listFolder(ctx, c.sitePath("/drive/root/children"), recursive)
}

func (c *Client) listFolder(ctx context.Context, endpoint string, recursive bool) ([]DriveItem, error) {
	var items []DriveItem
	err := c.paginate(ctx, endpoint, func(raw json.RawMessage) error {
		var item DriveItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("decode drive item: %w", err)
		}
		item.Raw = raw

		if !item.IsFolder() {
			items = append(items, item)
			return nil
		}
		if !recursive {
			return nil
		}
		children, err := c.listFolder(ctx, c.sitePath("/drive/items/"+url.PathEscape(item.ID)+"/children"), true)
		if err != nil {
			return err
		}
		items = append(items, children...)
		return nil
	})
	return items, err
}

// ListVersions returns the stored versions of a drive item.
func (c *Client) ListVersions(ctx context.Context, itemID string) ([]DriveItemVersion, error) {
	var versions []DriveItemVersion
	err := c.paginate(ctx, c.sitePath("/drive/items/"+url.PathEscape(itemID)+"/versions"), func(raw json.RawMessage) error {
		var v DriveItemVersion
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode version: %w", err)
		}
		versions = append(versions, v)
		return nil
	})
	return versions, err
}

// Download streams the content of a drive item into w.
func (c *Client) Download(ctx context.Context, itemID string, w io.Writer) error {
	resp, err := c.get(ctx, c.sitePath("/drive/items/"+url.PathEscape(itemID)+"/content"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download %s: %w", itemID, err)
	}
	return nil
}

func (c *Client) sitePath(suffix string) string {
	return "/sites/" + url.PathEscape(c.siteID) + suffix
}

// paginate calls fn for each value of a collection, following
// @odata.nextLink until the last page.
func (c *Client) paginate(ctx context.Context, endpoint string, fn func(json.RawMessage) error) error {
	for endpoint != "" {
		resp, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		var p page
		err = json.NewDecoder(resp.Body).Decode(&p)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response from %s: %w", endpoint, err)
		}

		for _, raw := range p.Value {
			if err := fn(raw); err != nil {
				return err
			}
		}
		endpoint = p.NextLink
	}
	return nil
}

// get performs a rate limited GET. endpoint is either a path below the
// base URL or an absolute next link. The caller closes the body of a
// successful response.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		reqURL = c.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.logger.Debug("graph request", "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   endpoint,
		}
		if delay, ok := retryAfter(resp); ok {
			return nil, &retry.AfterError{Err: apiErr, Delay: delay}
		}
		return nil, apiErr
	}
	return resp, nil
}

// retryAfter reads the throttling delay of a 429 or 503 response.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
