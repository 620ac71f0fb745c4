package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Client abstracts text-generation providers.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is one provider call.
type Request struct {
	System string
	Prompt string
	// JSON asks the provider to constrain output to a JSON object.
	JSON        bool
	Temperature *float32
}

// Response is the raw provider output.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm provider not configured")

// StatusError reports a non-success HTTP status from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (Response, error) {
	_ = ctx
	_ = req
	return Response{}, ErrNotConfigured
}

// Float32 returns a pointer to v, for Request.Temperature.
func Float32(v float32) *float32 {
	return &v
}
