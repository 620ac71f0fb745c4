package llm

import (
	"context"
	"errors"
	"testing"
)

func TestStatusErrorTemporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{code: 500, want: true},
		{code: 503, want: true},
		{code: 429, want: true},
		{code: 408, want: true},
		{code: 400, want: false},
		{code: 401, want: false},
	}
	for _, tt := range tests {
		err := &StatusError{Provider: "openai", StatusCode: tt.code}
		if got := err.Temporary(); got != tt.want {
			t.Fatalf("Temporary(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestPlaceholderClient(t *testing.T) {
	_, err := PlaceholderClient{}.Complete(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
