// Package retrieval drives link extraction, chunking, embedding and ranking
// for one user action and turns the result into prompt context.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/chunker"
	"github.com/ChamsBouzaiene/quill/internal/links"
	"github.com/ChamsBouzaiene/quill/internal/vectorstore"
)

// Graph is the document-graph collaborator.
type Graph interface {
	links.Resolver
	// Read returns the full text of a document.
	Read(ctx context.Context, id string) (string, error)
	// ForwardLinks returns the documents id links to, in a stable order.
	ForwardLinks(ctx context.Context, id string) ([]string, error)
	// Backlinks returns the documents linking to id, in a stable order.
	Backlinks(ctx context.Context, id string) ([]string, error)
}

// ProgressReporter receives monotonic work updates.
type ProgressReporter interface {
	AddTotalSteps(n int)
	CompleteSteps(n int)
}

// ErrorReporter receives failures that were absorbed into an empty result.
type ErrorReporter interface {
	Report(err error, context string)
}

// Config lists the orchestrator's collaborators and tuning.
type Config struct {
	Graph    Graph
	Progress ProgressReporter
	Errors   ErrorReporter

	Chunker chunker.Config
	Store   vectorstore.Config

	// MaxDepth is how many link hops to follow from the selection. Default: 1
	MaxDepth int
	// IncludeBacklinks adds the documents linking to each directly linked document.
	IncludeBacklinks bool
	// MaxDocuments caps the number of documents retrieved from. Default: 20
	MaxDocuments int

	Logger *zap.Logger
}

// DefaultConfig returns the default orchestrator tuning without collaborators.
func DefaultConfig() Config {
	return Config{
		Chunker:      chunker.DefaultConfig(),
		Store:        vectorstore.DefaultConfig(),
		MaxDepth:     1,
		MaxDocuments: 20,
	}
}

// Orchestrator runs retrieval. One orchestrator may serve concurrent actions;
// each Enhance call builds its own store.
type Orchestrator struct {
	cfg     Config
	chunker *chunker.Chunker
	logger  *zap.Logger
}

// New creates an orchestrator. Missing reporters are replaced with no-ops.
func New(cfg Config) *Orchestrator {
	d := DefaultConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = d.MaxDepth
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = d.MaxDocuments
	}
	if cfg.Progress == nil {
		cfg.Progress = nopProgress{}
	}
	if cfg.Errors == nil {
		cfg.Errors = nopErrors{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Store.Logger == nil {
		cfg.Store.Logger = cfg.Logger
	}
	return &Orchestrator{
		cfg:     cfg,
		chunker: chunker.New(cfg.Chunker),
		logger:  cfg.Logger,
	}
}

// Enhance returns context retrieved from the documents selectedText links
// to, ranked against selectedText. It returns "" when nothing is linked, when
// no embedder or graph is available, on cancellation and on failure. Failures
// are sent to the error reporter; cancellation is not.
func (o *Orchestrator) Enhance(ctx context.Context, selectedText, activeDocument string, embedder vectorstore.Embedder) string {
	if ctx.Err() != nil || o.cfg.Graph == nil {
		return ""
	}

	direct := links.Extract(ctx, selectedText, activeDocument, o.cfg.Graph)
	if len(direct) == 0 {
		return ""
	}
	if embedder == nil {
		o.logger.Debug("no embedder configured, skipping retrieval")
		return ""
	}

	out, _ := Guard(ctx, o.cfg.Errors, o.logger, "Failed to retrieve context from linked documents",
		func(ctx context.Context) (string, error) {
			return o.retrieve(ctx, selectedText, activeDocument, direct, embedder)
		})
	return out
}

func (o *Orchestrator) retrieve(ctx context.Context, query, active string, direct []links.LinkedDocument, embedder vectorstore.Embedder) (string, error) {
	docs, err := o.expand(ctx, active, direct)
	if err != nil {
		return "", err
	}
	o.logger.Debug("retrieving context", zap.Int("documents", len(docs)))
	o.cfg.Progress.AddTotalSteps(len(docs))

	if err := ctx.Err(); err != nil {
		return "", err
	}
	inputs := make([]chunker.Document, 0, len(docs))
	for _, d := range docs {
		text, err := o.cfg.Graph.Read(ctx, d.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", d.ID, err)
		}
		inputs = append(inputs, chunker.Document{ID: d.ID, Content: text})
		o.cfg.Progress.CompleteSteps(1)
	}

	chunks, err := o.chunker.ChunkAll(ctx, inputs)
	if err != nil {
		return "", err
	}
	o.logger.Debug("chunked linked documents", zap.Int("chunks", len(chunks)))

	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.cfg.Progress.AddTotalSteps(o.cfg.Store.Batches(len(chunks)) + 1)

	store, err := vectorstore.Build(ctx, chunks, embedder, o.cfg.Store, func() {
		o.cfg.Progress.CompleteSteps(1)
	})
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	result, err := store.Query(ctx, query)
	if err != nil {
		return "", err
	}
	o.cfg.Progress.CompleteSteps(1)
	return result, nil
}

// expand walks breadth-first from the directly linked documents: backlinks of
// direct links first, then forward links up to MaxDepth hops.
func (o *Orchestrator) expand(ctx context.Context, active string, direct []links.LinkedDocument) ([]links.LinkedDocument, error) {
	seen := map[string]bool{active: true}
	var out []links.LinkedDocument
	add := func(d links.LinkedDocument) bool {
		if seen[d.ID] || len(out) >= o.cfg.MaxDocuments {
			return false
		}
		seen[d.ID] = true
		out = append(out, d)
		return true
	}
	fromID := func(id string) links.LinkedDocument {
		return links.LinkedDocument{ID: id, Name: links.DisplayName(id), Ref: id}
	}

	for _, d := range direct {
		add(d)
	}

	if o.cfg.IncludeBacklinks {
		for _, d := range direct {
			ids, err := o.cfg.Graph.Backlinks(ctx, d.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list backlinks of %s: %w", d.ID, err)
			}
			for _, id := range ids {
				add(fromID(id))
			}
		}
	}

	frontier := make([]string, 0, len(direct))
	for _, d := range direct {
		frontier = append(frontier, d.ID)
	}
	for depth := 2; depth <= o.cfg.MaxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []string
		for _, id := range frontier {
			ids, err := o.cfg.Graph.ForwardLinks(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to list links of %s: %w", id, err)
			}
			for _, linked := range ids {
				if add(fromID(linked)) {
					next = append(next, linked)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

type nopProgress struct{}

func (nopProgress) AddTotalSteps(int) {}
func (nopProgress) CompleteSteps(int) {}

type nopErrors struct{}

func (nopErrors) Report(error, string) {}
