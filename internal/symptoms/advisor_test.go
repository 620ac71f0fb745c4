package symptoms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"medicare-backend/internal/llm"
)

func TestAdvisorParsesFencedResponse(t *testing.T) {
	client := &scriptedLLM{steps: []llmStep{{text: loadFixture(t, "testdata/analysis_valid.json")}}}
	a, err := NewAdvisor(client).Invoke(context.Background(), PromptContext{Symptoms: []string{"fever"}, Language: "en"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if a.RiskLevel != RiskMedium {
		t.Fatalf("expected medium, got %q", a.RiskLevel)
	}
	if len(a.PossibleConditions) != 2 || a.Confidence != 82 {
		t.Fatalf("unexpected analysis %+v", a)
	}
	req := client.prompts[0]
	if !req.JSON || req.System == "" || req.Temperature == nil {
		t.Fatalf("expected JSON request with system prompt and temperature, got %+v", req)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":         `{"a":1}`,
		"```\n{\"a\":1}\n```":             `{"a":1}`,
		"Here you go: {\"a\":{\"b\":2}} ok": `{"a":{"b":2}}`,
		"  {\"a\":1}  ":                   `{"a":1}`,
		"no json here":                    "no json here",
	}
	for in, want := range cases {
		if got := stripCodeFences(in); got != want {
			t.Fatalf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAnalysisRejects(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"not json":        "sorry, I cannot help",
		"bad risk":        `{"possibleConditions":[{"name":"Flu","probability":50}],"recommendations":{"immediateActions":["rest"]},"confidence":50,"riskLevel":"extreme"}`,
		"no conditions":   `{"possibleConditions":[],"recommendations":{"immediateActions":["rest"]},"confidence":50,"riskLevel":"low"}`,
		"unnamed":         `{"possibleConditions":[{"name":" ","probability":50}],"recommendations":{"immediateActions":["rest"]},"confidence":50,"riskLevel":"low"}`,
		"probability":     `{"possibleConditions":[{"name":"Flu","probability":150}],"recommendations":{"immediateActions":["rest"]},"confidence":50,"riskLevel":"low"}`,
		"no advice":       `{"possibleConditions":[{"name":"Flu","probability":50}],"recommendations":{},"confidence":50,"riskLevel":"low"}`,
		"confidence high": `{"possibleConditions":[{"name":"Flu","probability":50}],"recommendations":{"immediateActions":["rest"]},"confidence":101,"riskLevel":"low"}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAnalysis(text)
			var parse *ParseError
			if !errors.As(err, &parse) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestAdvisorTransportErrors(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", &llm.StatusError{Provider: "gemini", StatusCode: 500}, true},
		{"rate limited", &llm.StatusError{Provider: "gemini", StatusCode: 429}, true},
		{"unauthorized", &llm.StatusError{Provider: "gemini", StatusCode: 401}, false},
		{"not configured", llm.ErrNotConfigured, false},
		{"canceled", context.Canceled, false},
		{"network", errors.New("dial tcp: connection refused"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &scriptedLLM{steps: []llmStep{{err: tc.err}}}
			_, err := NewAdvisor(client).Invoke(context.Background(), PromptContext{Symptoms: []string{"x"}})
			var transport *TransportError
			if !errors.As(err, &transport) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if transport.Retryable != tc.retryable {
				t.Fatalf("retryable = %v, want %v", transport.Retryable, tc.retryable)
			}
		})
	}
}

func TestAdvisorWithoutClient(t *testing.T) {
	_, err := (&Advisor{}).Invoke(context.Background(), PromptContext{})
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt(PromptContext{
		Symptoms:    []string{"fever", "headache"},
		Temperature: &Temperature{Value: 38.4, Unit: "C"},
		PainLevel:   8,
		Language:    "hi",
		Age:         40,
	})
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}
	for _, want := range []string{
		"Primary symptoms: fever, headache",
		"Body temperature: 38.4°C",
		"Pain level: 8/10 (Severe)",
		"Language: Hindi",
		"Age: 40",
		"Gender: Not specified",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRenderPromptPatientContext(t *testing.T) {
	h, w := 170.0, 65.0
	pc := newPromptContext(Input{
		HeightCm:           &h,
		WeightKg:           &w,
		MedicalHistory:     []string{"asthma"},
		CurrentMedications: []string{"Salbutamol", "Cetirizine"},
		Allergies:          []string{"penicillin"},
		Language:           "en",
	}, []string{"rash"})
	prompt, err := renderPrompt(pc)
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}
	for _, want := range []string{
		"Height: 170 cm",
		"Weight: 65.0 kg",
		"BMI: 22.5",
		"Medical history: asthma",
		"Current medications: Salbutamol, Cetirizine",
		"Allergies: penicillin",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}

	bare, err := renderPrompt(PromptContext{Symptoms: []string{"rash"}})
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}
	if strings.Contains(bare, "BMI") || !strings.Contains(bare, "Allergies: None reported") {
		t.Fatalf("unexpected prompt without patient context:\n%s", bare)
	}
}

func TestPainSeverity(t *testing.T) {
	cases := map[int]string{0: "Mild", 4: "Mild", 5: "Moderate", 7: "Moderate", 8: "Severe", 10: "Severe"}
	for pain, want := range cases {
		if got := (PromptContext{PainLevel: pain}).PainSeverity(); got != want {
			t.Fatalf("PainSeverity(%d) = %q, want %q", pain, got, want)
		}
	}
}
