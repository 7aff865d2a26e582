// Package action runs a prompt action end to end: retrieval, template
// resolution across scopes, streamed inference and output footers.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/history"
	"github.com/ChamsBouzaiene/quill/internal/prompts"
	"github.com/ChamsBouzaiene/quill/internal/providers"
	"github.com/ChamsBouzaiene/quill/internal/tokens"
	"github.com/ChamsBouzaiene/quill/internal/vectorstore"
)

// Enhancer retrieves context for a selection. *retrieval.Orchestrator
// satisfies it.
type Enhancer interface {
	Enhance(ctx context.Context, selectedText, activeDocument string, embedder vectorstore.Embedder) string
}

// Recorder persists finished runs. *history.Store satisfies it.
type Recorder interface {
	Save(run *history.Run) error
}

// Config lists the runner's collaborators.
type Config struct {
	Provider providers.Provider
	Pipeline *prompts.Pipeline

	// Retrieval and Embedder are both required for context retrieval.
	Retrieval Enhancer
	Embedder  vectorstore.Embedder

	Tags    prompts.TagIndex
	History Recorder
	Counter tokens.Counter

	// VaultPath scopes history records.
	VaultPath string
	// VaultSystem is prefixed to every action's system template.
	VaultSystem string
	// Display holds the global defaults for the display directives.
	Display     prompts.Display
	Temperature float32
	MaxTokens   int

	Now    func() time.Time
	Logger *zap.Logger
}

// Input is one invocation of an action.
type Input struct {
	Action       prompts.Action
	SelectedText string
	// ContextText is caller-supplied context. Retrieved context is appended to it.
	ContextText string
	Document    string
	Images      []string
}

// Output describes a finished run.
type Output struct {
	ID       string
	Text     string
	Footer   string
	Model    string
	Replace  bool
	Display  prompts.Display
	Usage    tokens.Usage
	Duration time.Duration
	// Retrieved is the context found in linked documents, if any.
	Retrieved string
}

// Runner executes actions. It holds no per-run state and may serve
// concurrent runs.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner. A provider is required.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, errors.New("no inference provider configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = prompts.NewPipeline(prompts.PipelineConfig{Logger: cfg.Logger})
	}
	if cfg.Counter == nil {
		cfg.Counter = tokens.Estimator{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg}, nil
}

// Prepared is a resolved action ready for inference.
type Prepared struct {
	System    prompts.Result
	User      prompts.Result
	Display   prompts.Display
	Retrieved string
}

// Prepare retrieves context and resolves both prompt scopes without calling
// the inference provider.
func (r *Runner) Prepare(ctx context.Context, in Input) Prepared {
	var retrieved string
	if r.cfg.Retrieval != nil && r.cfg.Embedder != nil {
		retrieved = r.cfg.Retrieval.Enhance(ctx, in.SelectedText, in.Document, r.cfg.Embedder)
	}

	pc := prompts.Context{
		SelectedText:   in.SelectedText,
		ContextText:    joinBlocks(in.ContextText, retrieved),
		ActiveDocument: in.Document,
		Tags:           r.cfg.Tags,
	}
	system := joinBlocks(r.cfg.VaultSystem, in.Action.System)
	scoped := r.cfg.Pipeline.ResolveScopes(ctx, system, in.Action.Prompt, pc, r.cfg.Display)

	return Prepared{
		System:    scoped.System,
		User:      scoped.User,
		Display:   scoped.Display,
		Retrieved: retrieved,
	}
}

// Run executes in and streams the model output, then the footer, to w.
// Inference errors are returned; retrieval failures only degrade the prompt.
func (r *Runner) Run(ctx context.Context, in Input, w io.Writer) (*Output, error) {
	id := uuid.NewString()
	start := r.cfg.Now()
	logger := r.cfg.Logger.With(zap.String("run_id", id), zap.String("action", in.Action.Name))

	prepared := r.Prepare(ctx, in)
	if prepared.Retrieved != "" {
		logger.Debug("retrieved context", zap.Int("chars", len(prepared.Retrieved)))
	}

	model := in.Action.Model
	if model == "" {
		model = r.cfg.Provider.Model()
	}
	temperature := in.Action.Temperature
	if temperature == 0 {
		temperature = r.cfg.Temperature
	}

	req := providers.Request{
		Prompt:       prepared.User.Prompt,
		SystemPrompt: prepared.System.Prompt,
		Images:       in.Images,
		Model:        in.Action.Model,
		Temperature:  temperature,
		MaxTokens:    r.cfg.MaxTokens,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		writeErr error
		full     string
	)
	handler := providers.Handler{
		OnData: func(chunk, _ string) {
			mu.Lock()
			defer mu.Unlock()
			if writeErr != nil {
				return
			}
			if _, err := io.WriteString(w, chunk); err != nil {
				writeErr = err
				cancel()
			}
		},
		OnEnd: func(text string) {
			mu.Lock()
			full = text
			mu.Unlock()
		},
	}

	logger.Info("running action", zap.String("provider", r.cfg.Provider.Name()), zap.String("model", model))
	err := r.cfg.Provider.Execute(streamCtx, req, handler)

	mu.Lock()
	if writeErr != nil {
		err = fmt.Errorf("failed to write output: %w", writeErr)
	}
	text := full
	mu.Unlock()

	out := &Output{
		ID:        id,
		Text:      text,
		Model:     model,
		Replace:   in.Action.Replace,
		Display:   prepared.Display,
		Usage:     tokens.EstimateUsage(r.cfg.Counter, model, req.SystemPrompt, req.Prompt, text),
		Duration:  r.cfg.Now().Sub(start),
		Retrieved: prepared.Retrieved,
	}

	r.record(logger, in, req, out, start, err)

	if err != nil {
		return out, err
	}

	out.Footer = Footer(prepared.Display, r.cfg.Provider.Name(), model, out.Duration, out.Usage)
	if out.Footer != "" {
		if _, err := io.WriteString(w, out.Footer); err != nil {
			return out, fmt.Errorf("failed to write footer: %w", err)
		}
	}
	logger.Info("action finished",
		zap.Duration("duration", out.Duration), zap.Int("output_tokens", out.Usage.OutputTokens))
	return out, nil
}

// record saves the run to history. Failures are logged, never returned.
func (r *Runner) record(logger *zap.Logger, in Input, req providers.Request, out *Output, start time.Time, runErr error) {
	if r.cfg.History == nil {
		return
	}
	run := &history.Run{
		ID:        out.ID,
		VaultPath: r.cfg.VaultPath,
		Action:    in.Action.Name,
		Document:  in.Document,
		Provider:  r.cfg.Provider.Name(),
		Model:     out.Model,
		System:    req.SystemPrompt,
		Prompt:    req.Prompt,
		Context:   out.Retrieved,
		Output:    out.Text,
		Usage:     out.Usage,
		StartedAt: start,
		Duration:  out.Duration,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.cfg.History.Save(run); err != nil {
		logger.Warn("failed to save run history", zap.Error(err))
	}
}

// Footer renders the model and performance lines selected by d, or "" when
// neither is shown.
func Footer(d prompts.Display, provider, model string, elapsed time.Duration, usage tokens.Usage) string {
	var lines []string
	if d.ShowModelInfo {
		lines = append(lines, fmt.Sprintf("Model: %s · %s", provider, model))
	}
	if d.ShowPerformance {
		lines = append(lines, fmt.Sprintf("Performance: %.2fs, ~%d prompt + ~%d output tokens",
			elapsed.Seconds(), usage.PromptTokens, usage.OutputTokens))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\n---\n" + strings.Join(lines, "\n") + "\n"
}

func joinBlocks(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n\n" + b
}
