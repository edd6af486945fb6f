package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"advisor-gpt-go/internal/config"
)

type geminiClient struct {
	client *genai.Client
	cfg    config.LLMConfig
}

// NewGeminiClient answers through a Google Generative AI model in JSON mode.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &geminiClient{client: client, cfg: cfg}, nil
}

// Complete folds system messages into the system instruction and sends the
// remaining messages as a single user turn.
func (c *geminiClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	model := c.client.GenerativeModel(c.cfg.Model)
	model.ResponseMIMEType = "application/json"
	if gen == nil {
		gen = ParamsFromConfig(c.cfg.Generation)
	}
	if gen.Temperature != nil {
		model.SetTemperature(float32(*gen.Temperature))
	}
	if gen.TopP != nil {
		model.SetTopP(float32(*gen.TopP))
	}
	if gen.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*gen.MaxTokens))
	}

	var system, user []string
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
		} else {
			user = append(user, m.Content)
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = genai.NewUserContent(genai.Text(strings.Join(system, "\n\n")))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(strings.Join(user, "\n\n")))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}
