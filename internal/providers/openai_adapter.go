package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIAdapter sends completions through an OpenAI-compatible chat
// completions endpoint. It demonstrates how a real Sender plugs into the
// Executor alongside MockAdapter; any OpenAI-compatible host (OpenAI itself,
// a local vLLM/Ollama gateway) can be targeted by changing BaseURL.
type OpenAIAdapter struct {
	ProviderName string
	BaseURL      string // e.g. "https://api.openai.com/v1"
	APIKey       string
	HTTPClient   *http.Client
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Name returns the provider id this adapter answers for.
func (a *OpenAIAdapter) Name() string { return a.ProviderName }

// IsAvailable reports whether an API key is configured. It does not probe
// the network; the circuit breaker handles live availability tracking.
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	return a.APIKey != ""
}

// Complete sends req as a single-user-message chat completion.
func (a *OpenAIAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	payload := openAIChatRequest{
		Model:       req.ModelID,
		Messages:    []openAIChatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	start := time.Now()
	body, err := DoRequest(ctx, client, a.BaseURL+"/chat/completions", payload, map[string]string{
		"Authorization": "Bearer " + a.APIKey,
	})
	if err != nil {
		return CompletionResult{}, err
	}

	var resp openAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return CompletionResult{}, fmt.Errorf("openai: malformed response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("openai: empty choices in response")
	}

	return CompletionResult{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}
