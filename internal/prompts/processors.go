package prompts

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TagIndex renders the tag summaries behind the tag markers.
// Implementations may scan a whole corpus, so calls can block.
type TagIndex interface {
	AllTagsSummary(ctx context.Context) (string, error)
	DocumentTagsSummary(ctx context.Context, path string) (string, error)
}

// Context is the per-call input to the pipeline. It is built fresh for every
// prompt and dropped afterwards.
type Context struct {
	SelectedText   string
	ContextText    string
	ActiveDocument string

	// Tags is optional. When set, resolution always takes the async path.
	Tags TagIndex
}

func (c Context) hasCollaborators() bool {
	return c.Tags != nil
}

// Processor is one stage of the prompt pipeline.
type Processor interface {
	Name() string
	CanProcess(template string) bool
	IsAsync() bool
	Process(ctx context.Context, template string, pc Context) Result
}

// ControlProcessor strips the display directives and reports their values.
type ControlProcessor struct{}

func (ControlProcessor) Name() string { return "control" }

func (ControlProcessor) CanProcess(template string) bool {
	return strings.Contains(template, MarkerShowModelInfo) ||
		strings.Contains(template, MarkerShowPerformance)
}

func (ControlProcessor) IsAsync() bool { return false }

func (ControlProcessor) Process(_ context.Context, template string, _ Context) Result {
	prompt, flags := ResolveControl(template)
	return Result{Prompt: prompt, Flags: flags}
}

// BasicProcessor places the selection and context. It always applies because
// templates without markers still get the selection and context appended.
type BasicProcessor struct{}

func (BasicProcessor) Name() string { return "basic" }

func (BasicProcessor) CanProcess(string) bool { return true }

func (BasicProcessor) IsAsync() bool { return false }

func (BasicProcessor) Process(_ context.Context, template string, pc Context) Result {
	prompt := ResolveConditional(template, pc.ContextText)
	prompt = ResolveSelectionAndContext(prompt, pc.SelectedText, pc.ContextText)
	return Result{Prompt: prompt}
}

// TimeProcessor replaces the current-time marker. The clock is read on every call.
type TimeProcessor struct {
	Now func() time.Time
}

func (TimeProcessor) Name() string { return "time" }

func (TimeProcessor) CanProcess(template string) bool {
	return strings.Contains(template, MarkerCurrentTime)
}

func (TimeProcessor) IsAsync() bool { return false }

func (p TimeProcessor) Process(_ context.Context, template string, _ Context) Result {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Result{Prompt: ResolveTime(template, now())}
}

// TagProcessor replaces the all-tags and current-tags markers using the tag
// index from the prompt context. Lookup failures resolve to an empty string.
type TagProcessor struct {
	Logger *zap.Logger
}

func (TagProcessor) Name() string { return "tags" }

func (TagProcessor) CanProcess(template string) bool {
	return strings.Contains(template, MarkerAllTags) ||
		strings.Contains(template, MarkerCurrentTags)
}

func (TagProcessor) IsAsync() bool { return true }

func (p TagProcessor) Process(ctx context.Context, template string, pc Context) Result {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.Contains(template, MarkerAllTags) {
		summary := ""
		if pc.Tags != nil {
			var err error
			summary, err = pc.Tags.AllTagsSummary(ctx)
			if err != nil {
				logger.Warn("all-tags lookup failed", zap.Error(err))
				summary = ""
			}
		}
		template = strings.ReplaceAll(template, MarkerAllTags, summary)
	}

	if strings.Contains(template, MarkerCurrentTags) {
		summary := ""
		if pc.Tags != nil && pc.ActiveDocument != "" {
			var err error
			summary, err = pc.Tags.DocumentTagsSummary(ctx, pc.ActiveDocument)
			if err != nil {
				logger.Warn("current-tags lookup failed",
					zap.String("document", pc.ActiveDocument), zap.Error(err))
				summary = ""
			}
		}
		template = strings.ReplaceAll(template, MarkerCurrentTags, summary)
	}

	return Result{Prompt: template}
}
