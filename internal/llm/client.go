// Package llm holds the language-model backends used by the pipeline: an
// OpenAI-compatible chat client and Gemini generation and embedding clients.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// SystemPrompt frames every naming request.
const SystemPrompt = "You are a news desk editor. Reply with the label only."

// OpenAI calls an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

// Generate sends prompt as the user message and returns the first choice.
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, SystemPrompt, prompt)
}

// Chat sends a system and user message pair.
func (c *OpenAI) Chat(ctx context.Context, system, user string) (string, error) {
	if c.Model == "" {
		return "", fmt.Errorf("llm: model required")
	}
	resp, err := c.client().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAI) client() *openai.Client {
	cfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(c.BaseURL, "/")
	}
	cfg.HTTPClient = c.httpClient()
	return openai.NewClientWithConfig(cfg)
}

func (c *OpenAI) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
