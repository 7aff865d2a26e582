package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/retry"
)

const defaultAnthropicMaxTokens = 4096

// Anthropic streams messages from the Anthropic API.
type Anthropic struct {
	client *anthropic.Client
	model  string
	policy retry.Policy
	logger *zap.Logger
}

// NewAnthropic creates a provider.
func NewAnthropic(apiKey, model string, logger *zap.Logger) *Anthropic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Anthropic{
		client: anthropic.NewClient(apiKey),
		model:  model,
		policy: retry.DefaultPolicy(),
		logger: logger,
	}
}

// Name implements Provider.
func (p *Anthropic) Name() string { return "anthropic" }

// Model implements Provider.
func (p *Anthropic) Model() string { return p.model }

// Execute implements Provider. Images are not sent.
func (p *Anthropic) Execute(ctx context.Context, r Request, h Handler) error {
	model := p.model
	if r.Model != "" {
		model = r.Model
	}
	if len(r.Images) > 0 {
		p.logger.Debug("anthropic provider ignores images", zap.Int("images", len(r.Images)))
	}

	maxTokens := defaultAnthropicMaxTokens
	if r.MaxTokens > 0 {
		maxTokens = r.MaxTokens
	}
	temperature := r.Temperature

	var full strings.Builder
	var streamErr error
	started := false

	req := anthropic.MessagesStreamRequest{
		MessagesRequest: anthropic.MessagesRequest{
			Model: anthropic.Model(model),
			Messages: []anthropic.Message{{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(r.Prompt)},
			}},
			MaxTokens:   maxTokens,
			Temperature: &temperature,
		},
	}
	if strings.TrimSpace(r.SystemPrompt) != "" {
		req.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: r.SystemPrompt}}
	}
	req.OnError = func(errResp anthropic.ErrorResponse) {
		streamErr = fmt.Errorf("anthropic streaming error: %s", errResp.Error.Message)
	}
	req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == nil || *delta.Delta.Text == "" {
			return
		}
		started = true
		text := *delta.Delta.Text
		full.WriteString(text)
		h.data(text, full.String())
	}

	// Only calls that failed before any text arrived are retried.
	_, err := retry.Do(ctx, p.policy, func(ctx context.Context) (struct{}, error) {
		_, err := p.client.CreateMessagesStream(ctx, req)
		if err == nil {
			err = streamErr
		}
		if err == nil {
			return struct{}{}, nil
		}
		status, retryAfter := retry.StatusFromError(err)
		wrapped := retry.Wrap("anthropic", err, status, retryAfter)
		if started {
			return struct{}{}, noRetry{wrapped}
		}
		streamErr = nil
		return struct{}{}, wrapped
	}, classifyStreamError, func(attempt int, delay time.Duration, err error) {
		p.logger.Warn("retrying completion request",
			zap.String("provider", "anthropic"), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	if err != nil {
		if ctx.Err() != nil {
			return h.fail(ctx.Err())
		}
		return h.fail(err)
	}

	h.end(full.String())
	return nil
}

// noRetry marks a failure after partial output, which must not be replayed.
type noRetry struct{ err error }

func (e noRetry) Error() string { return e.err.Error() }
func (e noRetry) Unwrap() error { return e.err }

func classifyStreamError(err error) retry.Class {
	var nr noRetry
	if errors.As(err, &nr) {
		return retry.ClassNonRetryable
	}
	return retry.Classify(err)
}
