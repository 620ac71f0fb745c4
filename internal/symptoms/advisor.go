package symptoms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"medicare-backend/internal/llm"
)

// Analyzer performs one provider exchange. It does not retry.
type Analyzer interface {
	Invoke(ctx context.Context, pc PromptContext) (Analysis, error)
}

// Advisor adapts an llm.Client into an Analyzer. Provider failures come back
// as *TransportError and unusable output as *ParseError.
type Advisor struct {
	LLM         llm.Client
	Temperature *float32
}

func NewAdvisor(client llm.Client) *Advisor {
	return &Advisor{LLM: client, Temperature: llm.Float32(0.3)}
}

func (a *Advisor) Invoke(ctx context.Context, pc PromptContext) (Analysis, error) {
	if a == nil || a.LLM == nil {
		return Analysis{}, &TransportError{Err: llm.ErrNotConfigured}
	}
	prompt, err := renderPrompt(pc)
	if err != nil {
		return Analysis{}, fmt.Errorf("render prompt: %w", err)
	}
	resp, err := a.LLM.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		JSON:        true,
		Temperature: a.Temperature,
	})
	if err != nil {
		return Analysis{}, &TransportError{Retryable: retryable(err), Err: err}
	}
	return parseAnalysis(resp.Text)
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if errors.Is(err, llm.ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	var status *llm.StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	// Timeouts, network failures and unclassified client errors are treated as transient.
	return true
}

func parseAnalysis(text string) (Analysis, error) {
	cleaned := stripCodeFences(text)
	if cleaned == "" {
		return Analysis{}, &ParseError{Reason: "empty response"}
	}
	var a Analysis
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&a); err != nil {
		return Analysis{}, &ParseError{Reason: "invalid json", Err: err}
	}
	if err := validateAnalysis(&a); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

// stripCodeFences removes a surrounding markdown fence and any prose around
// the outermost JSON object.
func stripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func validateAnalysis(a *Analysis) error {
	a.RiskLevel = RiskLevel(strings.ToLower(strings.TrimSpace(string(a.RiskLevel))))
	if !a.RiskLevel.Valid() {
		return &ParseError{Reason: fmt.Sprintf("riskLevel %q not in low|medium|high|critical", a.RiskLevel)}
	}
	if len(a.PossibleConditions) == 0 {
		return &ParseError{Reason: "possibleConditions is empty"}
	}
	for i, c := range a.PossibleConditions {
		if strings.TrimSpace(c.Name) == "" {
			return &ParseError{Reason: fmt.Sprintf("possibleConditions[%d].name is empty", i)}
		}
		if c.Probability < 0 || c.Probability > 100 {
			return &ParseError{Reason: fmt.Sprintf("possibleConditions[%d].probability %.2f out of range", i, c.Probability)}
		}
	}
	r := a.Recommendations
	if len(r.ImmediateActions) == 0 && len(r.Medicines) == 0 && len(r.HomeRemedies) == 0 {
		return &ParseError{Reason: "recommendations are empty"}
	}
	if a.Confidence < 0 || a.Confidence > 100 {
		return &ParseError{Reason: fmt.Sprintf("confidence %.2f out of range", a.Confidence)}
	}
	return nil
}
