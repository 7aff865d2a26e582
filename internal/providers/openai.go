package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/retry"
)

// OpenAI streams chat completions from OpenAI or any compatible API.
type OpenAI struct {
	name    string
	client  *openai.Client
	model   string
	baseURL string
	policy  retry.Policy
	logger  *zap.Logger
}

// NewOpenAI creates a provider. name distinguishes compatible services that
// share this client ("openai", "ollama", "groq", ...).
func NewOpenAI(name, apiKey, model, baseURL string, logger *zap.Logger) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{
		name:    name,
		client:  openai.NewClientWithConfig(config),
		model:   model,
		baseURL: baseURL,
		policy:  retry.DefaultPolicy(),
		logger:  logger,
	}
}

// Name implements Provider.
func (p *OpenAI) Name() string { return p.name }

// Model implements Provider.
func (p *OpenAI) Model() string { return p.model }

// Execute implements Provider.
func (p *OpenAI) Execute(ctx context.Context, r Request, h Handler) error {
	model := p.model
	if r.Model != "" {
		model = r.Model
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: buildOpenAIMessages(r),
		Stream:   true,
	}
	if r.MaxTokens > 0 {
		req.MaxTokens = r.MaxTokens
	}
	if r.Temperature > 0 {
		temperature := r.Temperature
		req.Temperature = &temperature
	}

	stream, err := retry.Do(ctx, p.policy, func(ctx context.Context) (*openai.ChatCompletionStream, error) {
		s, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			status, retryAfter := retry.StatusFromError(err)
			return nil, retry.Wrap(p.name, err, status, retryAfter)
		}
		return s, nil
	}, nil, func(attempt int, delay time.Duration, err error) {
		p.logger.Warn("retrying completion request",
			zap.String("provider", p.name), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	if err != nil {
		return h.fail(fmt.Errorf("failed to start %s stream: %w", p.name, err))
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return h.fail(ctx.Err())
			}
			status, retryAfter := retry.StatusFromError(err)
			return h.fail(retry.Wrap(p.name, err, status, retryAfter))
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		h.data(delta, full.String())
	}

	h.end(full.String())
	return nil
}

func buildOpenAIMessages(r Request) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if strings.TrimSpace(r.SystemPrompt) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.SystemPrompt,
		})
	}

	if len(r.Images) == 0 {
		return append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: r.Prompt,
		})
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: r.Prompt,
	}}
	for _, img := range r.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img, Detail: openai.ImageURLDetailAuto},
		})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
}
