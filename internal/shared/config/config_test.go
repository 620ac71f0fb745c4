package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"ENV", "LLM_PROVIDER", "ANALYSIS_TIMEOUT_SECONDS", "ANALYSIS_RATE_LIMIT", "ANALYSIS_RATE_WINDOW", "LLM_RETRY_BASE_MS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected provider gemini, got %q", cfg.LLMProvider)
	}
	if cfg.AnalysisTimeout != 90*time.Second {
		t.Fatalf("expected 90s timeout, got %s", cfg.AnalysisTimeout)
	}
	if cfg.AnalysisRateLimit != 15 || cfg.AnalysisRateWindow != time.Hour {
		t.Fatalf("unexpected rate window %d/%s", cfg.AnalysisRateLimit, cfg.AnalysisRateWindow)
	}
	if cfg.LLMRetryBase != 500*time.Millisecond {
		t.Fatalf("expected 500ms retry base, got %s", cfg.LLMRetryBase)
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "ANALYSIS_RATE_LIMIT=5\nLLM_PROVIDER=openai\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("ANALYSIS_RATE_LIMIT", "")
	os.Unsetenv("ANALYSIS_RATE_LIMIT")

	cfg := Load()
	if cfg.AnalysisRateLimit != 5 {
		t.Fatalf("expected limit from .env, got %d", cfg.AnalysisRateLimit)
	}
	if cfg.LLMProvider != "none" {
		t.Fatalf("expected existing env to win, got %q", cfg.LLMProvider)
	}
}

func TestNormalizeEnv(t *testing.T) {
	tests := map[string]string{
		"prod":        "production",
		" Staging ":   "staging",
		"development": "dev",
		"weird":       "dev",
	}
	for in, want := range tests {
		if got := normalizeEnv(in); got != want {
			t.Fatalf("normalizeEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
