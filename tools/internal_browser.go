package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/workflowai/gateway/core"
)

const maxBrowserPageBytes = 512 * 1024
const maxBrowserTextChars = 20_000

var (
	tagStripRE    = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	anyTagRE      = regexp.MustCompile(`<[^>]+>`)
	collapseWSRE  = regexp.MustCompile(`[ \t]+`)
	collapseBlank = regexp.MustCompile(`\n{3,}`)
)

type browserInput struct {
	URL string `json:"url"`
}

// NewBrowserTool builds the "@browser" internal tool: a text-mode page
// fetcher that strips markup down to readable content, letting a model "read
// a page" without a headless-browser dependency.
func NewBrowserTool(client *http.Client) *Tool {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Tool{
		Name: "@browser",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"url": map[string]interface{}{"type": "string", "format": "uri"}},
			"required":   []string{"url"},
		},
		OutputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
		},
		Timeout: 20 * time.Second,
		Run: func(ctx context.Context, raw json.RawMessage) (interface{}, *core.ToolError) {
			var in browserInput
			if err := json.Unmarshal(raw, &in); err != nil || in.URL == "" {
				return nil, &core.ToolError{Code: "INVALID_INPUT", Message: "url is required", Category: core.CategoryInputError}
			}
			if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
				return nil, &core.ToolError{Code: "INVALID_INPUT", Message: "url must be http(s)", Category: core.CategoryInputError}
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
			if err != nil {
				return nil, &core.ToolError{Code: "REQUEST_ERROR", Message: err.Error(), Category: core.CategoryInputError}
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; gateway-browser-tool/1.0)")

			resp, err := client.Do(req)
			if err != nil {
				return nil, &core.ToolError{Code: "FETCH_FAILED", Message: err.Error(), Category: core.CategoryServiceError, Retryable: true}
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return nil, &core.ToolError{Code: "NOT_FOUND", Message: "page not found", Category: core.CategoryNotFound}
			}
			if resp.StatusCode != http.StatusOK {
				return nil, &core.ToolError{Code: "FETCH_FAILED", Message: fmt.Sprintf("page returned %d", resp.StatusCode), Category: core.CategoryServiceError}
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBrowserPageBytes))
			if err != nil {
				return nil, &core.ToolError{Code: "READ_ERROR", Message: err.Error(), Category: core.CategoryServiceError}
			}

			text := toReadableText(string(body))
			return map[string]interface{}{"url": in.URL, "text": truncate(text, maxBrowserTextChars)}, nil
		},
	}
}

func toReadableText(html string) string {
	html = tagStripRE.ReplaceAllString(html, "")
	html = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n\n", "</div>", "\n").Replace(html)
	text := anyTagRE.ReplaceAllString(html, "")
	text = collapseWSRE.ReplaceAllString(text, " ")
	text = collapseBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
