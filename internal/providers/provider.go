// Package providers streams completions from inference APIs.
package providers

import (
	"context"
)

// Request is one inference call.
type Request struct {
	Prompt       string
	SystemPrompt string
	// Images are URLs or data URLs attached to the user message.
	Images      []string
	Model       string // overrides the provider's default model
	Temperature float32
	MaxTokens   int
}

// Handler receives a streamed response. Any callback may be nil.
type Handler struct {
	// OnData is called for every text delta with the text so far.
	OnData func(chunk, full string)
	// OnEnd is called once with the complete text after a successful stream.
	OnEnd func(full string)
	// OnError is called once when the call fails or is cancelled.
	OnError func(err error)
}

func (h Handler) data(chunk, full string) {
	if h.OnData != nil {
		h.OnData(chunk, full)
	}
}

func (h Handler) end(full string) {
	if h.OnEnd != nil {
		h.OnEnd(full)
	}
}

func (h Handler) fail(err error) error {
	if h.OnError != nil {
		h.OnError(err)
	}
	return err
}

// Provider executes streamed inference calls. Cancelling ctx aborts the
// stream; Execute then reports the context error.
type Provider interface {
	Name() string
	Model() string
	Execute(ctx context.Context, req Request, h Handler) error
}
