package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCode categorizes SDK errors.
type ErrorCode string

const (
	ErrInvalidArgument  ErrorCode = "invalid_argument"
	ErrInvalidPrompt    ErrorCode = "invalid_prompt"
	ErrNoSuchModel      ErrorCode = "no_such_model"
	ErrNoSuchTool       ErrorCode = "no_such_tool"
	ErrInvalidToolInput ErrorCode = "invalid_tool_input"
	ErrAPICall          ErrorCode = "api_call"
	ErrModel            ErrorCode = "model_error"
	ErrRetryable        ErrorCode = "retryable"
	ErrCanceled         ErrorCode = "canceled"
)

// AIError provides rich context for SDK consumers. Every error surfaced by the
// orchestrator carries a stable code and a human message.
type AIError struct {
	Code    ErrorCode
	Message string

	// HTTP diagnostics for api_call errors. Bodies are truncated by the driver.
	Status       int
	URL          string
	RequestBody  string
	ResponseBody string

	// Structured context for validation errors.
	Parameter string
	ToolName  string
	ModelID   string
	Provider  string
	Available []string
	RawInput  string

	Retryable  bool
	RetryAfter time.Duration
	Details    map[string]any

	wrapped error
}

func (e *AIError) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *AIError) Unwrap() error { return e.wrapped }

// ErrorOption mutates an AIError during construction.
type ErrorOption func(*AIError)

// WithStatus sets the HTTP status code.
func WithStatus(status int) ErrorOption {
	return func(e *AIError) { e.Status = status }
}

// WithURL records the request URL.
func WithURL(url string) ErrorOption {
	return func(e *AIError) { e.URL = url }
}

// WithBodies attaches truncated request/response bodies for diagnostics.
func WithBodies(request, response string) ErrorOption {
	return func(e *AIError) {
		e.RequestBody = request
		e.ResponseBody = response
	}
}

// WithRetryable marks whether retry is recommended.
func WithRetryable(retryable bool) ErrorOption {
	return func(e *AIError) { e.Retryable = retryable }
}

// WithRetryAfter sets the server-provided retry delay.
func WithRetryAfter(d time.Duration) ErrorOption {
	return func(e *AIError) { e.RetryAfter = d }
}

// WithDetails attaches structured context.
func WithDetails(details map[string]any) ErrorOption {
	return func(e *AIError) { e.Details = details }
}

// WithWrapped attaches an underlying error.
func WithWrapped(err error) ErrorOption {
	return func(e *AIError) { e.wrapped = err }
}

// NewError builds an AIError explicitly.
func NewError(code ErrorCode, message string, opts ...ErrorOption) *AIError {
	e := &AIError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WrapError coerces an arbitrary error into an AIError with the given code.
// Context cancellation maps to the canceled code regardless of the requested one.
func WrapError(err error, code ErrorCode) *AIError {
	if err == nil {
		return nil
	}
	var ai *AIError
	if errors.As(err, &ai) {
		return ai
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = ErrCanceled
	}
	return &AIError{Code: code, Message: err.Error(), wrapped: err}
}

// NewInvalidArgument reports a caller bug for the named parameter.
func NewInvalidArgument(parameter string, value, message string) *AIError {
	e := NewError(ErrInvalidArgument, fmt.Sprintf("invalid argument %s=%q: %s", parameter, value, message))
	e.Parameter = parameter
	return e
}

// NewInvalidPrompt reports ill-formed messages or parts.
func NewInvalidPrompt(message string) *AIError {
	return NewError(ErrInvalidPrompt, message)
}

// NewNoSuchModel reports an unknown model for a provider.
func NewNoSuchModel(modelID, providerID string) *AIError {
	e := NewError(ErrNoSuchModel, fmt.Sprintf("model %q is not available on provider %q", modelID, providerID))
	e.ModelID = modelID
	e.Provider = providerID
	return e
}

// NewNoSuchTool reports a tool call naming a tool absent from the tool set.
func NewNoSuchTool(toolName string, available []string) *AIError {
	e := NewError(ErrNoSuchTool, fmt.Sprintf("model called unknown tool %q (available: %v)", toolName, available))
	e.ToolName = toolName
	e.Available = append([]string(nil), available...)
	return e
}

// NewInvalidToolInput reports tool arguments that failed parsing or validation.
func NewInvalidToolInput(toolName, rawInput, message string, cause error) *AIError {
	e := NewError(ErrInvalidToolInput, fmt.Sprintf("invalid input for tool %q: %s", toolName, message), WithWrapped(cause))
	e.ToolName = toolName
	e.RawInput = rawInput
	return e
}

// NewAPICallError reports a driver I/O failure.
func NewAPICallError(status int, url, message string, opts ...ErrorOption) *AIError {
	base := []ErrorOption{WithStatus(status), WithURL(url)}
	return NewError(ErrAPICall, message, append(base, opts...)...)
}

// NewModelError reports an ill-formed or impossible model response.
func NewModelError(message string) *AIError {
	return NewError(ErrModel, message)
}

// NewCanceled reports cooperative cancellation.
func NewCanceled(cause error) *AIError {
	return NewError(ErrCanceled, "operation canceled", WithWrapped(cause))
}

func classify(code ErrorCode) func(error) bool {
	return func(err error) bool {
		if err == nil {
			return false
		}
		var ai *AIError
		if errors.As(err, &ai) {
			return ai.Code == code
		}
		return false
	}
}

// Helper predicates for common error handling patterns.
var (
	IsInvalidArgument  = classify(ErrInvalidArgument)
	IsInvalidPrompt    = classify(ErrInvalidPrompt)
	IsNoSuchModel      = classify(ErrNoSuchModel)
	IsNoSuchTool       = classify(ErrNoSuchTool)
	IsInvalidToolInput = classify(ErrInvalidToolInput)
	IsAPICallError     = classify(ErrAPICall)
	IsModelError       = classify(ErrModel)
	IsCanceled         = classify(ErrCanceled)
)

// IsRetryable reports whether the retry policy may re-attempt the operation.
func IsRetryable(err error) bool {
	var ai *AIError
	if err == nil || !errors.As(err, &ai) {
		return false
	}
	switch ai.Code {
	case ErrRetryable:
		return true
	case ErrAPICall:
		return ai.Retryable
	default:
		return false
	}
}

// GetRetryAfter extracts the server-provided retry delay hint.
func GetRetryAfter(err error) time.Duration {
	var ai *AIError
	if errors.As(err, &ai) {
		return ai.RetryAfter
	}
	return 0
}
