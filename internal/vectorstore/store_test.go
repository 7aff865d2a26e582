package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/ChamsBouzaiene/quill/internal/chunker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mapEmbedder returns fixed vectors per text and counts calls.
type mapEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
	texts   atomic.Int32
}

func (e *mapEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	e.texts.Add(int32(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float32{1, 0}
		}
		out[i] = v
	}
	return out, nil
}

// unit returns a 2-d vector whose cosine with (1, 0) is sim.
func unit(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func chunk(doc string, ordinal int, text string) chunker.Chunk {
	return chunker.Chunk{SourceDocID: doc, Ordinal: ordinal, Text: text}
}

func TestQuery_EmptyStoreMakesNoCalls(t *testing.T) {
	emb := &mapEmbedder{}
	s, err := Build(context.Background(), nil, emb, Config{}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got, err := s.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if got != "" {
		t.Errorf("Query() = %q, want empty", got)
	}
	if n := emb.calls.Load(); n != 0 {
		t.Errorf("embedder called %d times, want 0", n)
	}
}

func TestQuery_RanksBySimilarity(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float32{
		"query": {1, 0},
		"low":   unit(0.1),
		"high":  unit(0.9),
		"mid":   unit(0.5),
	}}
	chunks := []chunker.Chunk{
		chunk("notes/Low.md", 0, "low"),
		chunk("notes/High.md", 0, "high"),
		chunk("Mid.md", 0, "mid"),
	}

	s, err := Build(context.Background(), chunks, emb, Config{}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got, err := s.Query(context.Background(), "query")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	want := "[[High]]\nhigh\n\n[[Mid]]\nmid\n\n[[Low]]\nlow"
	if got != want {
		t.Errorf("Query() = %q, want %q", got, want)
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float32{
		"q": {1, 0},
		"a": unit(0.5),
		"b": unit(0.5),
		"c": unit(0.5),
		"d": unit(0.7),
	}}
	chunks := []chunker.Chunk{
		chunk("x.md", 0, "a"),
		chunk("x.md", 1, "b"),
		chunk("y.md", 0, "c"),
		chunk("y.md", 1, "d"),
	}

	s, err := Build(context.Background(), chunks, emb, Config{BatchSize: 1, Concurrency: 3}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		results, err := s.Search(context.Background(), "q")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		var order []string
		for _, r := range results {
			order = append(order, r.Chunk.Text)
		}
		if diff := cmp.Diff([]string{"d", "a", "b", "c"}, order); diff != "" {
			t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestBuild_BatchesAndProgress(t *testing.T) {
	emb := &mapEmbedder{}
	var chunks []chunker.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunk("a.md", i, fmt.Sprintf("chunk %d", i)))
	}
	cfg := Config{BatchSize: 3, Concurrency: 2}

	var progress int
	s, err := Build(context.Background(), chunks, emb, cfg, func() { progress++ })
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Len() != 10 {
		t.Errorf("Len() = %d, want 10", s.Len())
	}
	if n := emb.calls.Load(); n != 4 {
		t.Errorf("embedder called %d times, want 4", n)
	}
	if n := emb.texts.Load(); n != 10 {
		t.Errorf("embedded %d texts, want 10", n)
	}
	if progress != cfg.Batches(len(chunks)) {
		t.Errorf("progress = %d, want %d", progress, cfg.Batches(len(chunks)))
	}
}

func TestRender_Budget(t *testing.T) {
	results := []Result{
		{Chunk: chunk("A.md", 0, strings.Repeat("a", 20)), Score: 0.9},
		{Chunk: chunk("B.md", 0, strings.Repeat("b", 20)), Score: 0.5},
		{Chunk: chunk("C.md", 0, "c"), Score: 0.1},
	}
	first := "[[A]]\n" + strings.Repeat("a", 20)

	// Room for the first block only: lower-ranked blocks are dropped.
	if got := Render(results, len(first)+10); got != first {
		t.Errorf("Render() = %q, want %q", got, first)
	}

	// The top block alone does not fit: it is truncated, never dropped.
	if got := Render(results, 10); got != first[:10] {
		t.Errorf("Render() = %q, want %q", got, first[:10])
	}

	if got := Render(nil, 100); got != "" {
		t.Errorf("Render(nil) = %q, want empty", got)
	}
}

func TestRender_TruncatesOnRuneBoundary(t *testing.T) {
	results := []Result{{Chunk: chunk("N.md", 0, "日本語")}}
	got := Render(results, len("[[N]]\n")+4)
	if got != "[[N]]\n日" {
		t.Errorf("Render() = %q", got)
	}
}

// blockingEmbedder blocks until ctx is done.
type blockingEmbedder struct {
	started chan struct{}
	once    sync.Once
}

func (e *blockingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.once.Do(func() { close(e.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBuild_CancelledMidEmbedding(t *testing.T) {
	emb := &blockingEmbedder{started: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chunks := []chunker.Chunk{chunk("a.md", 0, "x"), chunk("a.md", 1, "y")}
	done := make(chan error, 1)
	go func() {
		_, err := Build(ctx, chunks, emb, Config{BatchSize: 1}, nil)
		done <- err
	}()

	<-emb.started
	cancel()

	err := <-done
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Build() error = %v, want ErrCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want it to wrap context.Canceled", err)
	}
}

func TestBuild_AlreadyCancelled(t *testing.T) {
	emb := &mapEmbedder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, []chunker.Chunk{chunk("a.md", 0, "x")}, emb, Config{}, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Build() error = %v, want ErrCancelled", err)
	}
	if n := emb.calls.Load(); n != 0 {
		t.Errorf("embedder called %d times, want 0", n)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("service unavailable")
}

func TestBuild_EmbedderFailure(t *testing.T) {
	_, err := Build(context.Background(), []chunker.Chunk{chunk("a.md", 0, "x")}, failingEmbedder{}, Config{}, nil)
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrCancelled) {
		t.Errorf("embedder failure reported as cancellation: %v", err)
	}
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func TestBuild_VectorCountMismatch(t *testing.T) {
	chunks := []chunker.Chunk{chunk("a.md", 0, "x"), chunk("a.md", 1, "y")}
	if _, err := Build(context.Background(), chunks, shortEmbedder{}, Config{}, nil); err == nil {
		t.Fatal("Expected error for vector count mismatch")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors = %v, want 1", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}
	if got := cosineSimilarity([]float32{1}, []float32{1, 0}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
}
