package retrieval

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/vectorstore"
)

// Guard runs fn and absorbs its failure: the error is logged, forwarded to
// reporter with description, and the zero value is returned with ok false.
// Cancellation is absorbed silently.
func Guard[T any](ctx context.Context, reporter ErrorReporter, logger *zap.Logger, description string, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	out, err := fn(ctx)
	if err == nil {
		return out, true
	}
	if IsCancelled(ctx, err) {
		logger.Debug("operation cancelled", zap.String("operation", description))
		return zero, false
	}
	logger.Warn(description, zap.Error(err))
	if reporter != nil {
		reporter.Report(err, description)
	}
	return zero, false
}

// IsCancelled reports whether err is a cancellation outcome rather than a
// failure. Only the caller's ctx decides: a context error from a collaborator
// whose own deadline expired while ctx is live is a failure.
func IsCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, vectorstore.ErrCancelled)
}
