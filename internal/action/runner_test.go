package action

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ChamsBouzaiene/quill/internal/history"
	"github.com/ChamsBouzaiene/quill/internal/prompts"
	"github.com/ChamsBouzaiene/quill/internal/providers"
	"github.com/ChamsBouzaiene/quill/internal/tokens"
	"github.com/ChamsBouzaiene/quill/internal/vectorstore"
)

// scriptedProvider streams fixed deltas and records the request it got.
type scriptedProvider struct {
	deltas []string
	err    error
	got    providers.Request
}

func (p *scriptedProvider) Name() string  { return "fake" }
func (p *scriptedProvider) Model() string { return "fake-model" }

func (p *scriptedProvider) Execute(ctx context.Context, req providers.Request, h providers.Handler) error {
	p.got = req
	var full strings.Builder
	for _, d := range p.deltas {
		if err := ctx.Err(); err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			return err
		}
		full.WriteString(d)
		if h.OnData != nil {
			h.OnData(d, full.String())
		}
	}
	if p.err != nil {
		if h.OnError != nil {
			h.OnError(p.err)
		}
		return p.err
	}
	if h.OnEnd != nil {
		h.OnEnd(full.String())
	}
	return nil
}

type fakeEnhancer struct {
	context string
	calls   int
}

func (e *fakeEnhancer) Enhance(context.Context, string, string, vectorstore.Embedder) string {
	e.calls++
	return e.context
}

type nopEmbedder struct{}

func (nopEmbedder) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }

type memoryHistory struct {
	runs []*history.Run
	err  error
}

func (h *memoryHistory) Save(run *history.Run) error {
	if h.err != nil {
		return h.err
	}
	h.runs = append(h.runs, run)
	return nil
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func newRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

func TestNewRunner_RequiresProvider(t *testing.T) {
	if _, err := NewRunner(Config{}); err == nil {
		t.Error("Expected error without provider")
	}
}

func TestRun_StreamsOutput(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"Hel", "lo", " world"}}
	hist := &memoryHistory{}
	r := newRunner(t, Config{
		Provider:    p,
		History:     hist,
		VaultPath:   "/vault",
		VaultSystem: "Answer in English.",
		Temperature: 0.4,
	})

	var out strings.Builder
	res, err := r.Run(context.Background(), Input{
		Action:       prompts.Action{Name: "Summarize", Prompt: "Summarize the text.", System: "Be brief."},
		SelectedText: "Some example text.",
		Document:     "Today.md",
	}, &out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.String() != "Hello world" {
		t.Errorf("output = %q, want %q", out.String(), "Hello world")
	}
	if res.Text != "Hello world" || res.Footer != "" || res.Model != "fake-model" {
		t.Errorf("Output = %+v", res)
	}
	want := providers.Request{
		Prompt:       "Summarize the text.\n\nSome example text.",
		SystemPrompt: "Answer in English.\n\nBe brief.",
		Temperature:  0.4,
	}
	if diff := cmp.Diff(want, p.got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if res.Usage.PromptTokens <= 0 || res.Usage.OutputTokens <= 0 {
		t.Errorf("Usage = %+v, want positive counts", res.Usage)
	}

	if len(hist.runs) != 1 {
		t.Fatalf("Expected 1 saved run, got %d", len(hist.runs))
	}
	run := hist.runs[0]
	if run.ID != res.ID || run.VaultPath != "/vault" || run.Output != "Hello world" || run.Error != "" {
		t.Errorf("saved run = %+v", run)
	}
}

func TestRun_ActionOverridesModelAndTemperature(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"ok"}}
	r := newRunner(t, Config{Provider: p, Temperature: 0.7})

	res, err := r.Run(context.Background(), Input{
		Action: prompts.Action{Name: "x", Prompt: "Go.", Model: "big-model", Temperature: 0.1},
	}, &strings.Builder{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p.got.Model != "big-model" || p.got.Temperature != 0.1 || res.Model != "big-model" {
		t.Errorf("request = %+v, output model %q", p.got, res.Model)
	}
}

func TestRun_FooterFollowsScopePriority(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"Done."}}
	r := newRunner(t, Config{
		Provider: p,
		Display:  prompts.Display{ShowPerformance: true},
		Now:      steppingClock(1500 * time.Millisecond),
	})

	var out strings.Builder
	res, err := r.Run(context.Background(), Input{
		Action: prompts.Action{
			Name:   "x",
			System: "{{=SHOW_MODEL_INFO=}}=true Be helpful.",
			Prompt: "{{=SHOW_MODEL_INFO=}}=false {{=SHOW_PERFORMANCE=}}=false Help.",
		},
	}, &out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if strings.Contains(p.got.Prompt, "SHOW_") || strings.Contains(p.got.SystemPrompt, "SHOW_") {
		t.Errorf("control markers leaked into request: %+v", p.got)
	}
	want := prompts.Display{ShowModelInfo: true, ShowPerformance: false}
	if res.Display != want {
		t.Errorf("Display = %+v, want %+v", res.Display, want)
	}
	if res.Footer != "\n\n---\nModel: fake · fake-model\n" {
		t.Errorf("Footer = %q", res.Footer)
	}
	if out.String() != "Done."+res.Footer {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_RetrievedContextIsAppended(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"ok"}}
	enh := &fakeEnhancer{context: "[[Cats]]\nCats sleep."}
	hist := &memoryHistory{}
	r := newRunner(t, Config{Provider: p, Retrieval: enh, Embedder: nopEmbedder{}, History: hist})

	_, err := r.Run(context.Background(), Input{
		Action:       prompts.Action{Name: "x", Prompt: "Explain."},
		SelectedText: "About [[Cats]]",
		ContextText:  "User notes.",
	}, &strings.Builder{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := "Explain.\n\nAbout [[Cats]]\n\nContext:\nUser notes.\n\n[[Cats]]\nCats sleep."
	if p.got.Prompt != want {
		t.Errorf("Prompt = %q, want %q", p.got.Prompt, want)
	}
	if hist.runs[0].Context != enh.context {
		t.Errorf("saved context = %q", hist.runs[0].Context)
	}
}

func TestRun_NoEmbedderSkipsRetrieval(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"ok"}}
	enh := &fakeEnhancer{context: "unused"}
	r := newRunner(t, Config{Provider: p, Retrieval: enh})

	if _, err := r.Run(context.Background(), Input{Action: prompts.Action{Prompt: "Go."}}, &strings.Builder{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if enh.calls != 0 {
		t.Errorf("enhancer called %d times, want 0", enh.calls)
	}
}

func TestRun_ProviderErrorIsReturnedAndRecorded(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"partial"}, err: errors.New("HTTP 500")}
	hist := &memoryHistory{}
	r := newRunner(t, Config{Provider: p, History: hist, Display: prompts.Display{ShowModelInfo: true}})

	var out strings.Builder
	res, err := r.Run(context.Background(), Input{Action: prompts.Action{Prompt: "Go."}}, &out)
	if err == nil {
		t.Fatal("Expected error")
	}
	if res == nil || res.Footer != "" {
		t.Errorf("failed run should not render a footer: %+v", res)
	}
	if strings.Contains(out.String(), "Model:") {
		t.Errorf("footer written after failure: %q", out.String())
	}
	if len(hist.runs) != 1 || hist.runs[0].Error != "HTTP 500" {
		t.Errorf("saved runs = %+v", hist.runs)
	}
}

func TestRun_HistoryFailureIsNotFatal(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"ok"}}
	r := newRunner(t, Config{Provider: p, History: &memoryHistory{err: errors.New("disk full")}})

	if _, err := r.Run(context.Background(), Input{Action: prompts.Action{Prompt: "Go."}}, &strings.Builder{}); err != nil {
		t.Errorf("Run failed: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRun_WriteErrorStopsStream(t *testing.T) {
	p := &scriptedProvider{deltas: []string{"a", "b", "c"}}
	r := newRunner(t, Config{Provider: p})

	_, err := r.Run(context.Background(), Input{Action: prompts.Action{Prompt: "Go."}}, failingWriter{})
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("Run() error = %v, want write failure", err)
	}
}

func TestPrepare_TagMarkers(t *testing.T) {
	p := &scriptedProvider{}
	r := newRunner(t, Config{Provider: p, Tags: staticTags{}})

	prepared := r.Prepare(context.Background(), Input{
		Action:   prompts.Action{Prompt: "Tags: {{=CURRENT_TAGS=}}"},
		Document: "a.md",
	})
	if prepared.User.Prompt != "Tags: #work" {
		t.Errorf("Prompt = %q", prepared.User.Prompt)
	}
}

type staticTags struct{}

func (staticTags) AllTagsSummary(context.Context) (string, error) { return "#work (1)", nil }
func (staticTags) DocumentTagsSummary(_ context.Context, path string) (string, error) {
	if path == "a.md" {
		return "#work", nil
	}
	return "", nil
}

func TestFooter(t *testing.T) {
	usage := tokens.Usage{PromptTokens: 12, OutputTokens: 30}

	if got := Footer(prompts.Display{}, "p", "m", time.Second, usage); got != "" {
		t.Errorf("Footer() = %q, want empty", got)
	}
	got := Footer(prompts.Display{ShowModelInfo: true, ShowPerformance: true}, "openai", "gpt-4o", 1250*time.Millisecond, usage)
	want := "\n\n---\nModel: openai · gpt-4o\nPerformance: 1.25s, ~12 prompt + ~30 output tokens\n"
	if got != want {
		t.Errorf("Footer() = %q, want %q", got, want)
	}
}
