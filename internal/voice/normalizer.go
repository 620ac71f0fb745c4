// Package voice turns speech-to-text transcripts into symptom phrases.
package voice

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"medicare-backend/internal/shared/telemetry"
)

const (
	defaultMaxRunes = 5000
	minPhraseRunes  = 3
)

// Normalizer extracts symptoms from transcripts. It is safe for concurrent use.
type Normalizer struct {
	MaxRunes int
}

// New returns a Normalizer with default limits.
func New() *Normalizer {
	return &Normalizer{MaxRunes: defaultMaxRunes}
}

// ExtractSymptoms returns lower-cased, de-duplicated symptom phrases in the order
// they were found. It never fails: internal errors yield an empty list.
func (n *Normalizer) ExtractSymptoms(ctx context.Context, transcript, language string) (out []string) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("voice.extract_failed", map[string]any{
				"language": language,
				"error":    fmt.Sprint(r),
			})
			out = []string{}
		}
	}()

	if ctx.Err() != nil {
		return []string{}
	}
	text := strings.TrimSpace(transcript)
	if text == "" {
		return []string{}
	}
	if max := n.maxRunes(); utf8.RuneCountInString(text) > max {
		text = string([]rune(text)[:max])
	}

	candidates := make([]string, 0, 8)
	lower := strings.ToLower(text)
	for _, kw := range keywordsFor(language) {
		if strings.Contains(lower, strings.ToLower(kw)) {
			candidates = append(candidates, kw)
		}
	}
	for _, re := range phrasePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			for _, part := range conjunctions.Split(m[1], -1) {
				candidates = append(candidates, part)
			}
		}
	}

	out = dedupe(candidates)
	telemetry.Info("voice.extracted", map[string]any{
		"language": language,
		"count":    len(out),
	})
	return out
}

func (n *Normalizer) maxRunes() int {
	if n == nil || n.MaxRunes <= 0 {
		return defaultMaxRunes
	}
	return n.MaxRunes
}

func keywordsFor(language string) []string {
	if kws, ok := keywords[strings.ToLower(strings.TrimSpace(language))]; ok {
		return kws
	}
	return keywords["en"]
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`))
		if utf8.RuneCountInString(s) < minPhraseRunes {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
