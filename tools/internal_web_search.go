package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/workflowai/gateway/core"
)

const braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

type webSearchInput struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

type webSearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// NewWebSearchTool builds the "@web-search" internal tool backed by Brave's
// search API, grounded on the vanducng-goclaw web_search capability (same
// endpoint and result shape, adapted from a multi-provider fan-out to a
// single HTTP-backed core.HostedToolPrefix-named Func).
func NewWebSearchTool(apiKey string, client *http.Client) *Tool {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Tool{
		Name: "@web-search",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
				"count": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10},
			},
			"required": []string{"query"},
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"results": map[string]interface{}{"type": "array"},
			},
		},
		Timeout: 20 * time.Second,
		Run: func(ctx context.Context, raw json.RawMessage) (interface{}, *core.ToolError) {
			var in webSearchInput
			if err := json.Unmarshal(raw, &in); err != nil || in.Query == "" {
				return nil, &core.ToolError{Code: "INVALID_INPUT", Message: "query is required", Category: core.CategoryInputError}
			}
			if apiKey == "" {
				return nil, &core.ToolError{Code: "NOT_CONFIGURED", Message: "web search is not configured", Category: core.CategoryServiceError}
			}
			count := in.Count
			if count < 1 || count > 10 {
				count = 5
			}

			u := fmt.Sprintf("%s?q=%s&count=%d", braveSearchEndpoint, url.QueryEscape(in.Query), count)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return nil, &core.ToolError{Code: "REQUEST_ERROR", Message: err.Error(), Category: core.CategoryServiceError}
			}
			req.Header.Set("X-Subscription-Token", apiKey)
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, &core.ToolError{Code: "SEARCH_FAILED", Message: err.Error(), Category: core.CategoryServiceError, Retryable: true}
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, &core.ToolError{Code: "RATE_LIMIT", Message: "brave search rate limited", Category: core.CategoryRateLimit, Retryable: true}
			}
			if resp.StatusCode != http.StatusOK {
				return nil, &core.ToolError{Code: "SEARCH_FAILED", Message: fmt.Sprintf("brave search returned %d", resp.StatusCode), Category: core.CategoryServiceError}
			}

			var br braveResponse
			if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
				return nil, &core.ToolError{Code: "PARSE_ERROR", Message: err.Error(), Category: core.CategoryServiceError}
			}

			results := make([]webSearchResult, 0, len(br.Web.Results))
			for _, r := range br.Web.Results {
				results = append(results, webSearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
			}
			return map[string]interface{}{"query": in.Query, "results": results}, nil
		},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "…"
}
