package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AnthropicAdapter sends completions through the Anthropic Messages API.
type AnthropicAdapter struct {
	ProviderName string
	BaseURL      string // e.g. "https://api.anthropic.com/v1"
	APIKey       string
	APIVersion   string // e.g. "2023-06-01"
	HTTPClient   *http.Client
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Name returns the provider id this adapter answers for.
func (a *AnthropicAdapter) Name() string { return a.ProviderName }

// IsAvailable reports whether an API key is configured.
func (a *AnthropicAdapter) IsAvailable(ctx context.Context) bool {
	return a.APIKey != ""
}

// Complete sends req as a single-user-message Anthropic Messages call.
func (a *AnthropicAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	payload := anthropicMessagesRequest{
		Model:     req.ModelID,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}

	apiVersion := a.APIVersion
	if apiVersion == "" {
		apiVersion = "2023-06-01"
	}

	start := time.Now()
	body, err := DoRequest(ctx, client, a.BaseURL+"/messages", payload, map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": apiVersion,
	})
	if err != nil {
		return CompletionResult{}, err
	}

	var resp anthropicMessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return CompletionResult{}, fmt.Errorf("anthropic: malformed response: %w", err)
	}
	if len(resp.Content) == 0 {
		return CompletionResult{}, fmt.Errorf("anthropic: empty content in response")
	}

	return CompletionResult{
		Content:      resp.Content[0].Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}
