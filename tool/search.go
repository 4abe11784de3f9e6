package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/deepresearch/core"
	"github.com/hupe1980/deepresearch/search"
)

const (
	// maxContentChars caps per-result content so local models with small
	// context windows are not flooded.
	maxContentChars = 2000
	// truncationMarker is appended when content is capped.
	truncationMarker = "... (truncated)"
	// resultSeparator joins the rendered result blocks.
	resultSeparator = "\n\n---\n\n"
	// noResultsSentinel is returned instead of an empty string when the
	// provider finds nothing.
	noResultsSentinel = "No results found."
)

// searchArgs describes the internet_search parameters exposed to the model.
type searchArgs struct {
	Query             string `json:"query" description:"Search query to execute"`
	MaxResults        *int   `json:"max_results,omitempty" description:"Maximum number of results (default: 5)"`
	Topic             string `json:"topic,omitempty" description:"Topic filter" enum:"general,news,finance"`
	IncludeRawContent *bool  `json:"include_raw_content,omitempty" description:"Whether to include raw page content"`
}

// NewInternetSearchTool exposes web search to the model. Each result is
// rendered as a bold title line, a URL line and a content line; blocks keep
// provider order and are joined by a fixed separator. Content longer than
// 2000 characters is cut at exactly 2000 characters with a truncation
// marker. Provider errors propagate uncaught; the tool performs no retry.
func NewInternetSearchTool(client *search.Client) *FunctionTool {
	return NewFunctionToolFromStruct(
		"internet_search",
		"Search the web for information. Returns formatted results with titles, URLs, and content.",
		searchArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			req := search.Request{
				Query:      args["query"].(string),
				MaxResults: 5,
				Topic:      search.TopicGeneral,
			}
			switch v := args["max_results"].(type) {
			case float64:
				req.MaxResults = int(v)
			case int:
				req.MaxResults = v
			}
			if v, ok := args["topic"].(string); ok && v != "" {
				req.Topic = search.Topic(v)
			}
			if v, ok := args["include_raw_content"].(bool); ok {
				req.IncludeRawContent = v
			}

			resp, err := client.Search(tc.Context(), req)
			if err != nil {
				return nil, err
			}

			tc.Logger().Info("tool.search.results", "query", req.Query, "count", len(resp.Results))

			return FormatSearchResults(resp.Results), nil
		},
	)
}

// FormatSearchResults renders provider results into the newline-delimited
// text block handed back to the model.
func FormatSearchResults(results []search.Result) string {
	if len(results) == 0 {
		return noResultsSentinel
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		content := r.Content
		if runes := []rune(content); len(runes) > maxContentChars {
			content = string(runes[:maxContentChars]) + truncationMarker
		}
		blocks = append(blocks, fmt.Sprintf("**%s**\nURL: %s\n%s", r.Title, r.URL, content))
	}

	return strings.Join(blocks, resultSeparator)
}
