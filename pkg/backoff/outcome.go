package backoff

import (
	"context"
	"fmt"
)

// HTTPResult is the minimal surface of an HTTP-shaped operation result.
type HTTPResult interface {
	StatusCode() int
}

// Outcome is the tagged result of one operation invocation: exactly one of a
// plain value, an HTTP-shaped result, or an error. The operation declares
// which branch it produced; the executor never inspects values beyond that.
type Outcome struct {
	value any
	resp  HTTPResult
	err   error
}

// Success wraps a plain return value.
func Success(v any) Outcome { return Outcome{value: v} }

// HTTP wraps an HTTP-shaped result. Status codes decide retryability; any
// non-retryable status passes through as success.
func HTTP(resp HTTPResult) Outcome { return Outcome{resp: resp} }

// Failure wraps an error.
func Failure(err error) Outcome { return Outcome{err: err} }

// Operation is one retryable unit of work.
type Operation func(ctx context.Context) Outcome

// StatusError is the failed-attempt stand-in for an HTTP result with a
// retryable status. It carries the response through to the reporter, which
// truncates long response bodies to their first sentence.
type StatusError struct {
	Resp HTTPResult
}

func (e *StatusError) Error() string {
	if body, ok := e.Resp.(interface{ Text() string }); ok {
		if t := body.Text(); t != "" {
			return t
		}
	}
	return fmt.Sprintf("request failed with status %d", e.Resp.StatusCode())
}

// ErrorName marks the message as a raw response body.
func (e *StatusError) ErrorName() string { return "HttpResponseError" }

// StatusCode implements the reporter's StatusCoder.
func (e *StatusError) StatusCode() int { return e.Resp.StatusCode() }
