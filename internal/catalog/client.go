// Package catalog fetches the remote model list. It is pure data
// retrieval: records are decoded, the prompt-template slot markers are
// normalized, and nothing is cached or persisted.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"localllm/pkg/types"
)

// DefaultURL is the conventional JSON catalog endpoint.
const DefaultURL = "https://gpt4all.io/models/models3.json"

// Client retrieves model metadata records over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a Client for the given catalog URL. An empty url selects
// DefaultURL.
func New(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// List fetches and decodes the full catalog. A non-200 status is a hard
// error with no retry.
func (c *Client) List(ctx context.Context) ([]types.ModelConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.ErrRemote(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, types.ErrRemoteStatus(resp.Status)
	}
	var models []types.ModelConfig
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return models, nil
}

// Lookup fetches the catalog and returns the record whose filename matches.
// The record's prompt template has its engine slot markers rewritten to the
// positional {0}/{1} form; a record without a template gets the Alpaca-style
// default. The second return is false on a catalog miss.
func (c *Client) Lookup(ctx context.Context, filename string) (types.ModelConfig, bool, error) {
	models, err := c.List(ctx)
	if err != nil {
		return types.ModelConfig{}, false, err
	}
	for _, m := range models {
		if m.Filename == filename {
			tmpl := m.PromptTemplate
			if tmpl == "" {
				tmpl = DefaultPromptTemplate
			}
			m.PromptTemplate = NormalizeTemplate(tmpl)
			return m, true, nil
		}
	}
	return types.ModelConfig{}, false, nil
}

// DefaultPromptTemplate is used for sideloaded models with no catalog entry.
const DefaultPromptTemplate = "### Human:\n{0}\n\n### Assistant:\n"

// NormalizeTemplate rewrites the engine's %1/%2 slot markers (first
// occurrence each) to the positional {0}/{1} form used by sessions.
func NormalizeTemplate(tmpl string) string {
	tmpl = strings.Replace(tmpl, "%1", "{0}", 1)
	return strings.Replace(tmpl, "%2", "{1}", 1)
}
