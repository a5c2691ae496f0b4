// Package api is the HTTP client for the admin API boundary: filtered
// document queries, version listings, and preference lookups. The
// package consumes the API's data contracts; it does not define them.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// FetchError reports a non-2xx response from the admin API.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("api: %s returned status %d", e.URL, e.Status)
}

// Paginated is the version-list envelope returned by the versions
// endpoints.
type Paginated struct {
	Docs       []map[string]any `json:"docs"`
	TotalDocs  int              `json:"totalDocs"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
	Limit      int              `json:"limit"`
}

// Client talks to one admin API base URL.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates a client for the given API base, e.g.
// "https://site.example/api". A nil httpClient gets a default with a
// request timeout.
func NewClient(base string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: httpClient,
		log:  log,
	}
}

// get issues one GET and returns the body. Non-2xx responses become a
// *FetchError; the caller decides whether that is fatal.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("url", u).Msg("api fetch")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: u, Status: resp.StatusCode}
	}
	return body, nil
}

func withDepthZero(where Where) url.Values {
	vals := url.Values{}
	vals.Set("depth", "0")
	if where != nil {
		where.Encode(vals)
	}
	return vals
}

// FindDocs queries a collection and returns the matched documents.
func (c *Client) FindDocs(ctx context.Context, slug string, where Where) ([]map[string]any, error) {
	body, err := c.get(ctx, slug, withDepthZero(where))
	if err != nil {
		return nil, err
	}
	docs := gjson.GetBytes(body, "docs")
	if !docs.Exists() {
		return nil, fmt.Errorf("api: collection %s response has no docs", slug)
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(docs.Raw), &out); err != nil {
		return nil, fmt.Errorf("api: decode %s docs: %w", slug, err)
	}
	return out, nil
}

// FindGlobal queries a global and returns its document.
func (c *Client) FindGlobal(ctx context.Context, slug string, where Where) (map[string]any, error) {
	body, err := c.get(ctx, "globals/"+slug, withDepthZero(where))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("api: decode global %s: %w", slug, err)
	}
	return out, nil
}

// FindVersions queries the versions endpoint of a collection
// ("posts/versions") or a global ("globals/settings/versions") and
// returns the paginated list.
func (c *Client) FindVersions(ctx context.Context, entity string, where Where) (*Paginated, error) {
	body, err := c.get(ctx, entity+"/versions", withDepthZero(where))
	if err != nil {
		return nil, err
	}
	var out Paginated
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("api: decode %s versions: %w", entity, err)
	}
	return &out, nil
}

// GetPreference fetches one stored preference value by key.
func (c *Client) GetPreference(ctx context.Context, key string) (json.RawMessage, error) {
	body, err := c.get(ctx, "_preferences/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}
	value := gjson.GetBytes(body, "value")
	if !value.Exists() {
		return nil, fmt.Errorf("api: preference %s response has no value", key)
	}
	return json.RawMessage(value.Raw), nil
}
