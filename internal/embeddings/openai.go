// Package embeddings provides the embedding collaborators used for retrieval.
package embeddings

import (
	"context"
	"fmt"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/retry"
)

// DefaultOpenAIModel is used when no embedding model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAI embeds texts with an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	policy retry.Policy
	logger *zap.Logger
}

// NewOpenAI creates an OpenAI embedder. baseURL may point at any
// OpenAI-compatible API.
func NewOpenAI(apiKey, model, baseURL string, logger *zap.Logger) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		policy: retry.DefaultPolicy(),
		logger: logger,
	}
}

// Model returns the embedding model name.
func (e *OpenAI) Model() string {
	return e.model
}

// Embed implements vectorstore.Embedder.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return retry.Do(ctx, e.policy, func(ctx context.Context) ([][]float32, error) {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			status, retryAfter := retry.StatusFromError(err)
			return nil, retry.Wrap("openai", err, status, retryAfter)
		}

		out := make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(out) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			out[d.Index] = d.Embedding
		}
		for i, v := range out {
			if v == nil {
				return nil, fmt.Errorf("no embedding returned for input %d", i)
			}
		}
		return out, nil
	}, nil, func(attempt int, delay time.Duration, err error) {
		e.logger.Warn("retrying embedding request",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
}
