package symptoms

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrTerminalState     = errors.New("session already in a terminal state")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnauthenticated   = errors.New("user id is required")
	ErrPersistence       = errors.New("persistence failure")
	ErrShuttingDown      = errors.New("service shutting down")
)

const (
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeLLMTransport = "LLM_TRANSPORT"
	ErrorCodeLLMTimeout   = "LLM_TIMEOUT"
	ErrorCodeLLMParse     = "LLM_PARSE"
	ErrorCodeStorage      = "STORAGE_ERROR"
	ErrorCodeInternal     = "INTERNAL_ERROR"
)

type FieldError struct {
	Field   string `json:"field"`
	Issue   string `json:"issue"`
	Message string `json:"message"`
}

// ValidationError rejects a submission before any session exists.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, issue, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Issue: issue, Message: message})
}

// TransportError means the provider could not be reached or answered with an
// error status.
type TransportError struct {
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	return "llm transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the provider answered but the output is unusable. It is
// never retried.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm parse: %s: %v", e.Reason, e.Err)
	}
	return "llm parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// FailedError is returned by Handle.Wait when the session did not complete.
type FailedError struct {
	SessionID string
	Code      string
	Err       error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("session %s failed (%s): %v", e.SessionID, e.Code, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

func classifyFailure(err error) (code string, retryable bool) {
	var transport *TransportError
	var parse *ParseError
	switch {
	case err == nil:
		return ErrorCodeInternal, false
	case errors.Is(err, ErrPersistence):
		return ErrorCodeStorage, true
	case errors.Is(err, ErrShuttingDown), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeLLMTimeout, true
	case errors.As(err, &transport):
		return ErrorCodeLLMTransport, true
	case errors.As(err, &parse):
		return ErrorCodeLLMParse, false
	}
	return ErrorCodeInternal, false
}

func retryableCode(code string) bool {
	switch code {
	case ErrorCodeLLMTransport, ErrorCodeLLMTimeout, ErrorCodeStorage:
		return true
	}
	return false
}

// clientMessage is what callers see; raw error text stays in server logs.
func clientMessage(code string) string {
	switch code {
	case ErrorCodeLLMTimeout:
		return "The analysis took too long to complete. Please try again."
	case ErrorCodeLLMTransport:
		return "The analysis service is temporarily unavailable. Please try again later."
	case ErrorCodeLLMParse:
		return "The analysis service returned an unusable response. Please try again."
	case ErrorCodeStorage:
		return "Failed to save the analysis. Please try again."
	}
	return "Failed to analyze symptoms."
}
