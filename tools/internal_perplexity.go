package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/workflowai/gateway/core"
)

const perplexityEndpoint = "https://api.perplexity.ai/chat/completions"

type perplexityInput struct {
	Query string `json:"query"`
}

type perplexityWireRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type perplexityWireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// NewPerplexityTool builds the "@perplexity" internal tool: a thin proxy
// over Perplexity's OpenAI-compatible search-grounded chat endpoint, for
// answers that need live web citations rather than raw search results.
func NewPerplexityTool(apiKey, model string, client *http.Client) *Tool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if model == "" {
		model = "sonar"
	}
	return &Tool{
		Name: "@perplexity",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			"required":   []string{"query"},
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"answer":    map[string]interface{}{"type": "string"},
				"citations": map[string]interface{}{"type": "array"},
			},
		},
		Timeout: 30 * time.Second,
		Run: func(ctx context.Context, raw json.RawMessage) (interface{}, *core.ToolError) {
			var in perplexityInput
			if err := json.Unmarshal(raw, &in); err != nil || in.Query == "" {
				return nil, &core.ToolError{Code: "INVALID_INPUT", Message: "query is required", Category: core.CategoryInputError}
			}
			if apiKey == "" {
				return nil, &core.ToolError{Code: "NOT_CONFIGURED", Message: "perplexity is not configured", Category: core.CategoryServiceError}
			}

			wireReq := perplexityWireRequest{Model: model}
			wireReq.Messages = append(wireReq.Messages, struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			}{Role: "user", Content: in.Query})

			body, err := json.Marshal(wireReq)
			if err != nil {
				return nil, &core.ToolError{Code: "MARSHAL_ERROR", Message: err.Error(), Category: core.CategoryServiceError}
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, perplexityEndpoint, bytes.NewReader(body))
			if err != nil {
				return nil, &core.ToolError{Code: "REQUEST_ERROR", Message: err.Error(), Category: core.CategoryServiceError}
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Authorization", "Bearer "+apiKey)

			resp, err := client.Do(httpReq)
			if err != nil {
				return nil, &core.ToolError{Code: "REQUEST_FAILED", Message: err.Error(), Category: core.CategoryServiceError, Retryable: true}
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, &core.ToolError{Code: "RATE_LIMIT", Message: "perplexity rate limited", Category: core.CategoryRateLimit, Retryable: true}
			}
			if resp.StatusCode != http.StatusOK {
				return nil, &core.ToolError{Code: "REQUEST_FAILED", Message: fmt.Sprintf("perplexity returned %d", resp.StatusCode), Category: core.CategoryServiceError}
			}

			var pr perplexityWireResponse
			if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
				return nil, &core.ToolError{Code: "PARSE_ERROR", Message: err.Error(), Category: core.CategoryServiceError}
			}
			answer := ""
			if len(pr.Choices) > 0 {
				answer = pr.Choices[0].Message.Content
			}
			return map[string]interface{}{"answer": answer, "citations": pr.Citations}, nil
		},
	}
}
