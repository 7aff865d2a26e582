package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Class says whether an error is worth retrying.
type Class string

const (
	ClassRetryable    Class = "retryable"     // transient: rate limits, 5xx, network
	ClassMaybe        Class = "maybe"         // retried a limited number of times
	ClassNonRetryable Class = "non_retryable" // auth, bad request, quota, cancellation
)

// ClassifiedError carries a provider error with its HTTP metadata.
type ClassifiedError struct {
	Err        error
	Class      Class
	Provider   string
	HTTPStatus int    // 0 when the call never got a response
	RetryAfter string // raw Retry-After header, if any
}

func (e *ClassifiedError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether the provider rejected the credentials.
func (e *ClassifiedError) IsAuth() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsRateLimit reports whether the provider throttled the call.
func (e *ClassifiedError) IsRateLimit() bool {
	return e.HTTPStatus == http.StatusTooManyRequests
}

// Wrap classifies err and attaches the provider name and HTTP metadata.
func Wrap(provider string, err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	class := classifyStatus(httpStatus)
	if class == "" {
		class = Classify(err)
	}
	return &ClassifiedError{
		Err:        err,
		Class:      class,
		Provider:   provider,
		HTTPStatus: httpStatus,
		RetryAfter: retryAfter,
	}
}

func classifyStatus(status int) Class {
	switch {
	case status == 0:
		return ""
	case status == http.StatusTooManyRequests, status >= 500:
		return ClassRetryable
	case status == http.StatusRequestTimeout:
		return ClassMaybe
	default:
		return ClassNonRetryable
	}
}

var (
	retryableHints = []string{
		"429", "rate limit", "too many requests",
		"500", "502", "503", "504", "internal server error", "bad gateway",
		"service unavailable", "gateway timeout", "overloaded",
		"timeout", "connection reset", "connection refused", "no such host",
		"network", "temporary failure", "eof",
	}
	maybeHints = []string{
		"deadline exceeded", "context length", "token limit", "maximum context length",
	}
)

// Classify decides the retry class of an arbitrary error. Cancellation and
// unknown errors are never retried.
func Classify(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) {
		return ClassNonRetryable
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassMaybe
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range retryableHints {
		if strings.Contains(msg, hint) {
			return ClassRetryable
		}
	}
	for _, hint := range maybeHints {
		if strings.Contains(msg, hint) {
			return ClassMaybe
		}
	}
	return ClassNonRetryable
}

// RetryAfter extracts a Retry-After hint from err. Returns 0 if there is none.
func RetryAfter(err error) time.Duration {
	var classified *ClassifiedError
	if errors.As(err, &classified) && classified.RetryAfter != "" {
		var seconds int
		if _, scanErr := fmt.Sscanf(classified.RetryAfter, "%d", &seconds); scanErr == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, parseErr := http.ParseTime(classified.RetryAfter); parseErr == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}

	msg := strings.ToLower(err.Error())
	if i := strings.Index(msg, "retry after "); i >= 0 {
		var seconds int
		if _, scanErr := fmt.Sscanf(msg[i:], "retry after %d", &seconds); scanErr == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// ExhaustedError is returned when every allowed attempt failed.
type ExhaustedError struct {
	Err        error
	Attempts   int
	MaxRetries int
	Guarded    bool // the error was classified ClassMaybe
}

func (e *ExhaustedError) Error() string {
	if e.Guarded {
		return fmt.Sprintf("guarded retries exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

var (
	statusPattern     = regexp.MustCompile(`(?i)(?:status(?: code)?|http)[:= ]*([1-5][0-9]{2})\b`)
	retryAfterPattern = regexp.MustCompile(`(?i)retry[- ]after[:= ]*([^\s,;]+)`)
)

// StatusFromError extracts an HTTP status code and Retry-After value from the
// text of a client error. SDK errors only expose these in their messages.
func StatusFromError(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	msg := err.Error()

	status := 0
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		status, _ = strconv.Atoi(m[1])
	}
	retryAfter := ""
	if m := retryAfterPattern.FindStringSubmatch(msg); m != nil {
		retryAfter = m[1]
	}
	return status, retryAfter
}
