// Package search implements a client for the Tavily web search API. The
// provider exposes a single JSON-over-HTTP search endpoint; requests carry
// the query plus result-count, topic and raw-content options and responses
// return scored result records. Provider errors (network, auth, rate
// limiting) propagate to the caller; the client performs no retries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the public Tavily API endpoint.
const DefaultBaseURL = "https://api.tavily.com"

// Topic filters search results to a provider-defined category.
type Topic string

// Supported topic filters.
const (
	TopicGeneral Topic = "general"
	TopicNews    Topic = "news"
	TopicFinance Topic = "finance"
)

// Valid reports whether the topic is one of the supported values.
func (t Topic) Valid() bool {
	switch t {
	case TopicGeneral, TopicNews, TopicFinance:
		return true
	default:
		return false
	}
}

// Request describes a single search call.
type Request struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results,omitempty"`
	Topic             Topic  `json:"topic,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
}

// Result is one retrieved item. Ephemeral: produced per search call,
// serialized to text by the tool layer, not retained.
type Result struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// Response is the provider's answer to a search request.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Options configure the search client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls the Tavily search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a search client authenticating with apiKey.
func NewClient(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
	}
}

// Search executes one search call. Results are returned in provider order.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("search: query must not be empty")
	}
	if req.Topic != "" && !req.Topic.Valid() {
		return nil, fmt.Errorf("search: invalid topic %q", req.Topic)
	}

	body, err := json.Marshal(struct {
		APIKey string `json:"api_key"`
		Request
	}{APIKey: c.apiKey, Request: req})
	if err != nil {
		return nil, fmt.Errorf("search: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("search: provider returned %s: %s", httpResp.Status, bytes.TrimSpace(snippet))
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	return &resp, nil
}
