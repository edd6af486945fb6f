// Package llm provides clients for chat-completion models that answer in JSON.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/pkg/retry"
)

// Client sends one chat exchange and returns the assistant's raw content.
type Client interface {
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

// NewClient picks the provider named in cfg.Provider.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams overrides sampling settings; nil fields use provider defaults.
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ParamsFromConfig turns non-zero config values into GenerationParams.
func ParamsFromConfig(cfg config.LLMGenerationConfig) *GenerationParams {
	var gp GenerationParams
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		gp.Temperature = &t
	}
	if cfg.TopP != 0 {
		p := cfg.TopP
		gp.TopP = &p
	}
	if cfg.MaxTokens != 0 {
		m := cfg.MaxTokens
		gp.MaxTokens = &m
	}
	return &gp
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewOpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
func NewOpenAIClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    *float64        `json:"temperature,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *openAICompatibleClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	reqBody := chatRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if gen == nil {
		gen = ParamsFromConfig(c.cfg.Generation)
	}
	reqBody.Temperature = gen.Temperature
	reqBody.TopP = gen.TopP
	reqBody.MaxTokens = gen.MaxTokens

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal chat request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create chat request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("chat api returned %s: %s", resp.Status, bytes.TrimSpace(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return "", retry.Permanent(err)
		}
		return "", err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
