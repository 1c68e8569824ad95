package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/lmao/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{ClientID: "app", ClientSecret: "secret", TenantID: "tenant"}

type graphServer struct {
	*httptest.Server
	tokenRequests atomic.Int32
}

func newGraphServer(t *testing.T, routes map[string]http.HandlerFunc) *graphServer {
	t.Helper()
	gs := &graphServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		gs.tokenRequests.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app", r.PostForm.Get("client_id"))
		assert.Equal(t, GraphScope, r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"graph-token","token_type":"Bearer","expires_in":3600}`))
	})
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
			handler(w, r)
		})
	}
	gs.Server = httptest.NewServer(mux)
	t.Cleanup(gs.Close)
	return gs
}

func (gs *graphServer) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(testCreds, "site-1",
		WithBaseURL(gs.URL+"/v1.0"),
		WithTokenURL(gs.URL+"/token"),
		WithHTTPClient(gs.Client()),
		WithRateLimit(1000),
	)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		creds  Credentials
		siteID string
	}{
		{"no client id", Credentials{ClientSecret: "s", TenantID: "t"}, "site"},
		{"no secret", Credentials{ClientID: "c", TenantID: "t"}, "site"},
		{"no tenant", Credentials{ClientID: "c", ClientSecret: "s"}, "site"},
		{"no site", testCreds, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.creds, tt.siteID)
			assert.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestCredentials_TokenURL(t *testing.T) {
	assert.Equal(t, "https://login.microsoftonline.com/tenant/oauth2/v2.0/token", testCreds.TokenURL())
}

func TestListDocuments_PaginatesAndSkipsFolders(t *testing.T) {
	var gs *graphServer
	gs = newGraphServer(t, map[string]http.HandlerFunc{
		"GET /v1.0/sites/site-1/drive/root/children": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "2" {
				writeJSON(t, w, map[string]any{"value": []any{
					map[string]any{"id": "3", "name": "c.xlsx", "file": map[string]any{"mimeType": "x"}},
				}})
				return
			}
			writeJSON(t, w, map[string]any{
				"value": []any{
					map[string]any{"id": "1", "name": "a.docx", "file": map[string]any{}, "extra": "kept"},
					map[string]any{"id": "2", "name": "Reports", "folder": map[string]any{"childCount": 1}},
				},
				"@odata.nextLink": gs.URL + "/v1.0/sites/site-1/drive/root/children?page=2",
			})
		},
	})

	items, err := gs.client(t).ListDocuments(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.docx", items[0].Name)
	assert.Equal(t, "c.xlsx", items[1].Name)
	assert.Contains(t, string(items[0].Raw), `"extra":"kept"`)
	assert.Equal(t, int32(1), gs.tokenRequests.Load())
}

func TestListDocuments_Recursive(t *testing.T) {
	gs := newGraphServer(t, map[string]http.HandlerFunc{
		"GET /v1.0/sites/site-1/drive/root/children": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"value": []any{
				map[string]any{"id": "f1", "name": "Reports", "folder": map[string]any{"childCount": 2}},
				map[string]any{"id": "1", "name": "top.docx", "file": map[string]any{}},
			}})
		},
		"GET /v1.0/sites/site-1/drive/items/f1/children": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"value": []any{
				map[string]any{"id": "2", "name": "nested.pptx", "file": map[string]any{}},
				map[string]any{"id": "f2", "name": "Empty", "folder": map[string]any{}},
			}})
		},
		"GET /v1.0/sites/site-1/drive/items/f2/children": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"value": []any{}})
		},
	})

	items, err := gs.client(t).ListDocuments(context.Background(), true)
	require.NoError(t, err)
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	assert.Equal(t, []string{"nested.pptx", "top.docx"}, names)
}

func TestListVersions(t *testing.T) {
	gs := newGraphServer(t, map[string]http.HandlerFunc{
		"GET /v1.0/sites/site-1/drive/items/item-1/versions": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"value": []any{
				map[string]any{"id": "2.0", "lastModifiedBy": map[string]any{"user": map[string]any{"email": "ada@example.com"}}},
				map[string]any{"id": "1.0"},
			}})
		},
	})

	versions, err := gs.client(t).ListVersions(context.Background(), "item-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "ada@example.com", versions[0].ModifiedBy())
	assert.Empty(t, versions[1].ModifiedBy())
}

func TestDownload(t *testing.T) {
	gs := newGraphServer(t, map[string]http.HandlerFunc{
		"GET /v1.0/sites/site-1/drive/items/item-1/content": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("document bytes"))
		},
	})

	var buf bytes.Buffer
	require.NoError(t, gs.client(t).Download(context.Background(), "item-1", &buf))
	assert.Equal(t, "document bytes", buf.String())
}

func TestAPIError(t *testing.T) {
	gs := newGraphServer(t, map[string]http.HandlerFunc{
		"GET /v1.0/sites/site-1/drive/items/missing/versions": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"code":"itemNotFound"}}`, http.StatusNotFound)
		},
		"GET /v1.0/sites/site-1/drive/items/busy/versions": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		},
	})
	c := gs.client(t)

	_, err := c.ListVersions(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "itemNotFound")
	assert.Equal(t, "/sites/site-1/drive/items/missing/versions", apiErr.Endpoint)
	assert.Contains(t, err.Error(), "status: 404")

	_, err = c.ListVersions(context.Background(), "busy")
	var after *retry.AfterError
	require.ErrorAs(t, err, &after)
	assert.Equal(t, "2s", after.Delay.String())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}
