// ABOUTME: Retry classification for language model and embedding API errors
// ABOUTME: Transient failures are retried with backoff, fatal ones return immediately
package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// TransientError represents a temporary error that may succeed on retry
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable)
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable)
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// classifyOpenAIError tags go-openai errors by HTTP status.
// Rate limits and server errors are transient, other 4xx responses are fatal,
// and transport failures without a status are treated as transient.
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return NewFatalError(err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	return classifyStatus(err, status)
}

// classifyGeminiError tags genai errors by the HTTP code of the wrapped googleapi.Error
func classifyGeminiError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return NewFatalError(err)
	}

	status := 0
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		status = apiErr.Code
	}
	return classifyStatus(err, status)
}

// classifyStatus treats rate limits, server errors and failures without a status as transient
func classifyStatus(err error, status int) error {
	switch {
	case status == 0:
		return NewTransientError(err)
	case status == http.StatusTooManyRequests, status >= 500:
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}
