package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"advisor-gpt-go/internal/config"
)

type geminiClient struct {
	model *genai.EmbeddingModel
}

// NewGeminiClient embeds text with a Google Generative AI embedding model.
func NewGeminiClient(ctx context.Context, cfg config.EmbeddingConfig) (Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	return &geminiClient{model: client.EmbeddingModel(model)}, nil
}

func (c *geminiClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := c.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned an empty embedding")
	}
	return res.Embedding.Values, nil
}

func (c *geminiClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := c.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := c.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
