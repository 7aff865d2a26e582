// Package vectorstore holds per-request chunk embeddings and ranks them
// against a query by cosine similarity.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChamsBouzaiene/quill/internal/chunker"
	"github.com/ChamsBouzaiene/quill/internal/links"
)

// ErrCancelled is returned when the caller's context ends while the store is
// being built or queried. It is distinct from an empty result.
var ErrCancelled = errors.New("vector store operation cancelled")

// Embedder turns texts into vectors, one per input, in input order.
// Implementations must abort when ctx is done.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config controls batching and the context budget.
type Config struct {
	// BatchSize is the number of chunks per embedding call. Default: 16
	BatchSize int
	// Concurrency caps the number of embedding calls in flight. Default: 4
	Concurrency int
	// MaxContextChars bounds the rendered context length in bytes. Default: 6000
	MaxContextChars int
	Logger          *zap.Logger
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:       16,
		Concurrency:     4,
		MaxContextChars: 6000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = d.MaxContextChars
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Batches returns how many embedding calls Build makes for n chunks.
func (c Config) Batches(n int) int {
	c = c.withDefaults()
	if n <= 0 {
		return 0
	}
	return (n + c.BatchSize - 1) / c.BatchSize
}

type entry struct {
	chunk  chunker.Chunk
	vector []float32
}

// Store is an in-memory index built for a single request. It is not safe for
// concurrent use and is never persisted.
type Store struct {
	cfg      Config
	embedder Embedder
	entries  []entry
}

// Result is one ranked chunk.
type Result struct {
	Chunk chunker.Chunk
	Score float64
}

// Build embeds every chunk and returns the populated store. Batches may run
// concurrently up to cfg.Concurrency; onBatch, if set, is called once per
// completed batch and never concurrently. An empty chunk set makes no
// embedding calls.
func Build(ctx context.Context, chunks []chunker.Chunk, embedder Embedder, cfg Config, onBatch func()) (*Store, error) {
	cfg = cfg.withDefaults()
	s := &Store{cfg: cfg, embedder: embedder}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	if len(chunks) == 0 {
		return s, nil
	}
	if embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	vectors := make([][]float32, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for start := 0; start < len(chunks); start += cfg.BatchSize {
		if gctx.Err() != nil {
			break
		}
		start := start // per-iteration copy (go 1.21 loop semantics)
		end := min(start+cfg.BatchSize, len(chunks))

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}

			vecs, err := embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
			}
			copy(vectors[start:end], vecs)

			cfg.Logger.Debug("embedded batch", zap.Int("start", start), zap.Int("size", len(texts)))
			if onBatch != nil {
				mu.Lock()
				onBatch()
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	s.entries = make([]entry, len(chunks))
	for i, c := range chunks {
		s.entries[i] = entry{chunk: c, vector: vectors[i]}
	}
	return s, nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	return len(s.entries)
}

// Search ranks every chunk against text, highest similarity first. Equal
// scores keep insertion order. An empty store returns nil without embedding.
func (s *Store) Search(ctx context.Context, text string) ([]Result, error) {
	if len(s.entries) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vecs))
	}
	query := vecs[0]

	results := make([]Result, len(s.entries))
	for i, e := range s.entries {
		results[i] = Result{Chunk: e.chunk, Score: cosineSimilarity(query, e.vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Query ranks the store against text and renders the best chunks into one
// context string within MaxContextChars. Lowest-ranked chunks are dropped
// first; a top chunk that alone exceeds the budget is truncated.
func (s *Store) Query(ctx context.Context, text string) (string, error) {
	results, err := s.Search(ctx, text)
	if err != nil {
		return "", err
	}
	return Render(results, s.cfg.MaxContextChars), nil
}

const chunkSeparator = "\n\n"

// Render joins ranked results as "[[name]]\ntext" blocks separated by a blank
// line, keeping the longest prefix of the ranking that fits in budget.
func Render(results []Result, budget int) string {
	var sb strings.Builder
	for i, r := range results {
		block := "[[" + links.DisplayName(r.Chunk.SourceDocID) + "]]\n" + r.Chunk.Text
		need := len(block)
		if i > 0 {
			need += len(chunkSeparator)
		}
		if sb.Len()+need > budget {
			if i == 0 {
				return truncate(block, budget)
			}
			break
		}
		if i > 0 {
			sb.WriteString(chunkSeparator)
		}
		sb.WriteString(block)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
