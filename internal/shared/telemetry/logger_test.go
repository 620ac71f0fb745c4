package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesFlatJSON(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("symptoms.status", map[string]any{"session_id": "s-1", "status": "processing"})

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &payload); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]any{"level": "info", "msg": "symptoms.status", "session_id": "s-1", "status": "processing"} {
		if payload[key] != want {
			t.Fatalf("field %s = %v, want %v", key, payload[key], want)
		}
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts field")
	}
}

func TestErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Error("http.error", nil)
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error level, got %s", buf.String())
	}
}
