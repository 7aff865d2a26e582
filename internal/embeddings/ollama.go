package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	// DefaultOllamaURL is the local Ollama server.
	DefaultOllamaURL = "http://localhost:11434"
	// DefaultOllamaModel is used when no embedding model is configured.
	DefaultOllamaModel = "nomic-embed-text"
)

// Ollama embeds texts with a local Ollama server.
type Ollama struct {
	embedder embeddings.Embedder
	model    string
}

// NewOllama creates an Ollama embedder.
func NewOllama(serverURL, model string) (*Ollama, error) {
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama embedder: %w", err)
	}
	return &Ollama{embedder: embedder, model: model}, nil
}

// Model returns the embedding model name.
func (e *Ollama) Model() string {
	return e.model
}

// Embed implements vectorstore.Embedder.
func (e *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with ollama: %w", err)
	}
	return vectors, nil
}
