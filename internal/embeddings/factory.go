package embeddings

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/vectorstore"
)

// Options selects and configures an embedding provider.
type Options struct {
	Provider  string // "openai", "ollama", or "" / "none" for no embedder
	Model     string
	APIKey    string
	BaseURL   string
	CachePath string // sqlite cache location; empty disables caching
	Logger    *zap.Logger
}

// New builds the configured embedder, wrapped in a persistent cache when
// CachePath is set. A nil embedder with a nil error means retrieval is
// disabled. The returned close function is never nil.
func New(ctx context.Context, opts Options) (vectorstore.Embedder, func() error, error) {
	noop := func() error { return nil }
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var (
		embedder vectorstore.Embedder
		model    string
	)
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "none":
		return nil, noop, nil
	case "openai":
		if opts.APIKey == "" {
			return nil, noop, fmt.Errorf("OPENAI_API_KEY not set")
		}
		e := NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL, opts.Logger)
		embedder, model = e, "openai/"+e.Model()
	case "ollama":
		e, err := NewOllama(opts.BaseURL, opts.Model)
		if err != nil {
			return nil, noop, err
		}
		embedder, model = e, "ollama/"+e.Model()
	default:
		return nil, noop, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama, none)", opts.Provider)
	}

	if opts.CachePath == "" {
		return embedder, noop, nil
	}
	cache, err := OpenCache(ctx, opts.CachePath, model, embedder, opts.Logger)
	if err != nil {
		opts.Logger.Warn("embedding cache unavailable, continuing without it", zap.Error(err))
		return embedder, noop, nil
	}
	return cache, cache.Close, nil
}
