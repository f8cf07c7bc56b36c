package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindModel      ErrorKind = "model"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindServer     ErrorKind = "server"
	ErrorKindConnection ErrorKind = "connection"
	ErrorKindInput      ErrorKind = "input"
	ErrorKindResponse   ErrorKind = "response"
	ErrorKindUnknown    ErrorKind = "unknown"
)

// Error is a classified embedding provider error.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Model      string
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("embedding ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " HTTP %d", e.StatusCode)
	}
	if e.Model != "" {
		fmt.Fprintf(&b, " model=%s", e.Model)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable lets retry.IsRetryable honor the classification.
func (e *Error) IsRetryable() bool { return e.Retryable }

// classifyError maps a go-openai or transport error onto an *Error.
func classifyError(err error, model string) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrorKindConnection, Model: model, Retryable: false, Cause: err}
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

	if status > 0 {
		return classifyStatus(status, model, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "eof"):
		return &Error{Kind: ErrorKindConnection, Model: model, Retryable: true, Cause: err}
	default:
		return &Error{Kind: ErrorKindUnknown, Model: model, Retryable: false, Cause: err}
	}
}

func classifyStatus(status int, model string, err error) *Error {
	e := &Error{StatusCode: status, Model: model, Cause: err}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = ErrorKindAuth
	case status == http.StatusNotFound:
		e.Kind = ErrorKindModel
	case status == http.StatusTooManyRequests:
		e.Kind = ErrorKindRateLimit
		e.Retryable = true
	case status == http.StatusRequestTimeout:
		e.Kind = ErrorKindConnection
		e.Retryable = true
	case status >= 500:
		e.Kind = ErrorKindServer
		e.Retryable = true
	case status >= 400:
		e.Kind = ErrorKindInput
	default:
		e.Kind = ErrorKindUnknown
	}
	return e
}
