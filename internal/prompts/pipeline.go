package prompts

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PipelineConfig configures the default processor chain.
type PipelineConfig struct {
	Now    func() time.Time
	Logger *zap.Logger
}

// Pipeline runs processors in a fixed order: control, basic, time, tags.
type Pipeline struct {
	processors []Processor
	logger     *zap.Logger
}

// NewPipeline creates the standard pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		processors: []Processor{
			ControlProcessor{},
			BasicProcessor{},
			TimeProcessor{Now: cfg.Now},
			TagProcessor{Logger: logger},
		},
		logger: logger,
	}
}

// NewPipelineWith builds a pipeline over an explicit processor list.
func NewPipelineWith(logger *zap.Logger, processors ...Processor) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{processors: processors, logger: logger}
}

// Processors returns the processors in execution order.
func (p *Pipeline) Processors() []Processor {
	out := make([]Processor, len(p.processors))
	copy(out, p.processors)
	return out
}

// NeedsAsync reports whether resolving template requires the async path:
// either collaborators were supplied, or an async processor matches.
func (p *Pipeline) NeedsAsync(template string, pc Context) bool {
	if pc.hasCollaborators() {
		return true
	}
	for _, proc := range p.processors {
		if proc.IsAsync() && proc.CanProcess(template) {
			return true
		}
	}
	return false
}

// Process resolves template, choosing the sync path unless async work is needed.
func (p *Pipeline) Process(ctx context.Context, template string, pc Context) Result {
	if p.NeedsAsync(template, pc) {
		return p.ResolveAll(ctx, template, pc)
	}
	return p.ResolveSync(template, pc)
}

// ResolveSync runs the synchronous processors only and trims the result.
func (p *Pipeline) ResolveSync(template string, pc Context) Result {
	res := p.run(context.Background(), template, pc, false)
	res.Prompt = strings.TrimSpace(res.Prompt)
	return res
}

// ResolveAll runs the synchronous pass and then every async processor, in order.
func (p *Pipeline) ResolveAll(ctx context.Context, template string, pc Context) Result {
	res := p.run(ctx, template, pc, false)
	async := p.run(ctx, res.Prompt, pc, true)
	res.Prompt = strings.TrimSpace(async.Prompt)
	res.Flags = res.Flags.overlay(async.Flags)
	return res
}

func (p *Pipeline) run(ctx context.Context, template string, pc Context, async bool) Result {
	acc := Result{Prompt: template}
	for _, proc := range p.processors {
		if proc.IsAsync() != async || !proc.CanProcess(acc.Prompt) {
			continue
		}
		out := proc.Process(ctx, acc.Prompt, pc)
		acc.Prompt = out.Prompt
		acc.Flags = acc.Flags.overlay(out.Flags)
		p.logger.Debug("prompt processor applied", zap.String("processor", proc.Name()))
	}
	return acc
}

// ScopedResult holds the per-scope results and the merged display directives.
type ScopedResult struct {
	System  Result
	User    Result
	Display Display
}

// ResolveScopes resolves the system and user templates independently and
// merges their directives with system > user > defaults. The system scope
// sees no selection or context so nothing gets appended to it.
func (p *Pipeline) ResolveScopes(ctx context.Context, system, user string, pc Context, defaults Display) ScopedResult {
	systemCtx := pc
	systemCtx.SelectedText = ""
	systemCtx.ContextText = ""

	sys := p.Process(ctx, system, systemCtx)
	usr := p.Process(ctx, user, pc)

	return ScopedResult{
		System:  sys,
		User:    usr,
		Display: MergeFlags(sys.Flags, usr.Flags).WithDefaults(defaults),
	}
}
