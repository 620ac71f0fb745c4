package symptoms

import (
	"bytes"
	_ "embed"
	"math"
	"strings"
	"text/template"
)

//go:embed prompts/system.txt
var systemPrompt string

//go:embed prompts/analysis.tmpl
var analysisTemplate string

var promptTmpl = template.Must(template.New("analysis").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(analysisTemplate))

// PromptContext is everything the provider sees about one submission.
type PromptContext struct {
	Symptoms       []string
	Temperature    *Temperature
	PainLevel      int
	Duration       string
	Emotions       []string
	AdditionalInfo string
	Language       string
	Age            int
	Gender         string

	HeightCm           float64
	WeightKg           float64
	MedicalHistory     []string
	CurrentMedications []string
	Allergies          []string
}

func newPromptContext(in Input, symptoms []string) PromptContext {
	pc := PromptContext{
		Symptoms:       symptoms,
		Temperature:    in.Temperature,
		PainLevel:      in.painLevel(),
		Duration:       in.SymptomDuration,
		Emotions:       in.Emotions,
		AdditionalInfo: in.AdditionalInfo,
		Language:       in.Language,
		Gender:         in.Gender,
	}
	if in.Age != nil {
		pc.Age = *in.Age
	}
	if in.HeightCm != nil {
		pc.HeightCm = *in.HeightCm
	}
	if in.WeightKg != nil {
		pc.WeightKg = *in.WeightKg
	}
	pc.MedicalHistory = in.MedicalHistory
	pc.CurrentMedications = in.CurrentMedications
	pc.Allergies = in.Allergies
	return pc
}

// BMI is zero unless both height and weight are known.
func (pc PromptContext) BMI() float64 {
	if pc.HeightCm <= 0 || pc.WeightKg <= 0 {
		return 0
	}
	m := pc.HeightCm / 100
	return math.Round(pc.WeightKg/(m*m)*10) / 10
}

func (pc PromptContext) LanguageName() string {
	switch pc.Language {
	case "ne":
		return "Nepali"
	case "hi":
		return "Hindi"
	}
	return "English"
}

func (pc PromptContext) PainSeverity() string {
	switch {
	case pc.PainLevel > 7:
		return "Severe"
	case pc.PainLevel > 4:
		return "Moderate"
	}
	return "Mild"
}

func renderPrompt(pc PromptContext) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, pc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
