package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient("tvly-test", func(o *Options) {
		o.BaseURL = server.URL
		o.HTTPClient = server.Client()
	})
}

func TestSearchRequestShape(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(Response{Query: "golang"})
	})

	_, err := client.Search(context.Background(), Request{
		Query:             "golang",
		MaxResults:        5,
		Topic:             TopicNews,
		IncludeRawContent: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "tvly-test", captured["api_key"])
	assert.Equal(t, "golang", captured["query"])
	assert.Equal(t, float64(5), captured["max_results"])
	assert.Equal(t, "news", captured["topic"])
	assert.Equal(t, true, captured["include_raw_content"])
}

func TestSearchDecodesResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{
			Query: "golang",
			Results: []Result{
				{Title: "Go", URL: "https://go.dev", Content: "The Go programming language", Score: 0.97},
				{Title: "Go blog", URL: "https://go.dev/blog", Content: "News from the Go team", Score: 0.91},
			},
		})
	})

	resp, err := client.Search(context.Background(), Request{Query: "golang"})

	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Go", resp.Results[0].Title)
	assert.Equal(t, "https://go.dev/blog", resp.Results[1].URL)
}

func TestSearchEmptyQuery(t *testing.T) {
	client := NewClient("tvly-test")

	_, err := client.Search(context.Background(), Request{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "query must not be empty")
}

func TestSearchInvalidTopic(t *testing.T) {
	client := NewClient("tvly-test")

	_, err := client.Search(context.Background(), Request{Query: "golang", Topic: Topic("sports")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid topic")
}

func TestSearchProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := client.Search(context.Background(), Request{Query: "golang"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSearchContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, Request{Query: "golang"})

	require.Error(t, err)
}

func TestTopicValid(t *testing.T) {
	assert.True(t, TopicGeneral.Valid())
	assert.True(t, TopicNews.Valid())
	assert.True(t, TopicFinance.Valid())
	assert.False(t, Topic("sports").Valid())
	assert.False(t, Topic("").Valid())
}
