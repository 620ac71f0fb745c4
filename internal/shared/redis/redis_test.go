package redis

import (
	"context"
	"testing"
)

func TestNewClientRejectsEmptyURL(t *testing.T) {
	if _, err := NewClient(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNewClientRejectsMalformedURL(t *testing.T) {
	if _, err := NewClient(context.Background(), "http://not-redis"); err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Raw() != nil {
		t.Fatalf("expected nil raw client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}
