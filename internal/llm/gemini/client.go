package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"medicare-backend/internal/llm"
)

const defaultModel = "gemini-2.0-flash"

// Client implements llm.Client on the Gemini API.
type Client struct {
	inner *genai.Client
	model string
}

// Options tunes the underlying genai client. Zero values use genai defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient constructs a Gemini client for the given API key.
func NewClient(ctx context.Context, apiKey, model string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	inner, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{inner: inner, model: model}, nil
}

// Complete sends one generateContent call. API errors come back as *llm.StatusError.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.inner.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return llm.Response{}, &llm.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return llm.Response{}, fmt.Errorf("gemini request timeout: %w", err)
		}
		return llm.Response{}, err
	}

	out := llm.Response{
		Text:  strings.TrimSpace(resp.Text()),
		Model: c.model,
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	log.Printf("llm response provider=gemini model=%s prompt_tokens=%d completion_tokens=%d", c.model, out.PromptTokens, out.CompletionTokens)
	return out, nil
}

var _ llm.Client = (*Client)(nil)
