package symptoms

import (
	"strings"
	"unicode/utf8"
)

const (
	maxSymptoms         = 20
	maxSymptomLength    = 200
	maxEmotions         = 10
	maxAdditionalInfo   = 2000
	maxTranscriptLength = 5000
	maxDurationLength   = 100
	minAge              = 1
	maxAge              = 120
	minPain             = 0
	maxPain             = 10
	minCelsius          = 30.0
	maxCelsius          = 45.0
	minFahrenheit       = 86.0
	maxFahrenheit       = 113.0
	minHeightCm         = 30.0
	maxHeightCm         = 272.0
	minWeightKg         = 1.0
	maxWeightKg         = 500.0
	maxContextItems     = 20
	maxContextItemLen   = 200
	defaultLanguage     = "en"
)

var languageAliases = map[string]string{
	"en":      "en",
	"english": "en",
	"ne":      "ne",
	"nepali":  "ne",
	"hi":      "hi",
	"hindi":   "hi",
}

var genders = map[string]struct{}{"male": {}, "female": {}, "other": {}}

// Validate checks a submission and returns the normalized copy that is stored
// with the session.
func Validate(in Input) (Input, error) {
	verr := &ValidationError{}
	out := Input{
		AdditionalInfo:  strings.TrimSpace(in.AdditionalInfo),
		SymptomDuration: strings.TrimSpace(in.SymptomDuration),
	}

	for _, s := range in.Symptoms {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) > maxSymptomLength {
			verr.add("symptoms", "too_long", "Each symptom must be at most 200 characters")
			continue
		}
		out.Symptoms = append(out.Symptoms, s)
	}
	switch {
	case len(out.Symptoms) == 0:
		verr.add("symptoms", "required", "At least one symptom is required")
	case len(out.Symptoms) > maxSymptoms:
		verr.add("symptoms", "too_many", "At most 20 symptoms are allowed")
	}

	if in.Temperature != nil {
		t := Temperature{Value: in.Temperature.Value, Unit: strings.ToUpper(strings.TrimSpace(in.Temperature.Unit))}
		switch t.Unit {
		case "", "C":
			t.Unit = "C"
			if t.Value < minCelsius || t.Value > maxCelsius {
				verr.add("temperature", "out_of_range", "Temperature must be between 30 and 45 °C")
			}
		case "F":
			if t.Value < minFahrenheit || t.Value > maxFahrenheit {
				verr.add("temperature", "out_of_range", "Temperature must be between 86 and 113 °F")
			}
		default:
			verr.add("temperature", "invalid_unit", "Temperature unit must be C or F")
		}
		out.Temperature = &t
	}

	if in.PainLevel != nil {
		p := *in.PainLevel
		if p < minPain || p > maxPain {
			verr.add("painLevel", "out_of_range", "Pain level must be an integer between 0 and 10")
		}
		out.PainLevel = &p
	}

	lang := strings.ToLower(strings.TrimSpace(in.Language))
	if lang == "" {
		out.Language = defaultLanguage
	} else if code, ok := languageAliases[lang]; ok {
		out.Language = code
	} else {
		verr.add("language", "unsupported", "Language must be one of en, ne, hi")
	}

	if in.Age != nil {
		a := *in.Age
		if a < minAge || a > maxAge {
			verr.add("age", "out_of_range", "Age must be between 1 and 120")
		}
		out.Age = &a
	}

	if g := strings.ToLower(strings.TrimSpace(in.Gender)); g != "" {
		if _, ok := genders[g]; !ok {
			verr.add("gender", "invalid", "Gender must be male, female, or other")
		}
		out.Gender = g
	}

	if in.HeightCm != nil {
		h := *in.HeightCm
		if h < minHeightCm || h > maxHeightCm {
			verr.add("heightCm", "out_of_range", "Height must be between 30 and 272 cm")
		}
		out.HeightCm = &h
	}
	if in.WeightKg != nil {
		w := *in.WeightKg
		if w < minWeightKg || w > maxWeightKg {
			verr.add("weightKg", "out_of_range", "Weight must be between 1 and 500 kg")
		}
		out.WeightKg = &w
	}
	out.MedicalHistory = cleanList(verr, "medicalHistory", in.MedicalHistory)
	out.CurrentMedications = cleanList(verr, "currentMedications", in.CurrentMedications)
	out.Allergies = cleanList(verr, "allergies", in.Allergies)

	for _, e := range in.Emotions {
		if e = strings.TrimSpace(e); e != "" {
			out.Emotions = append(out.Emotions, e)
		}
	}
	if len(out.Emotions) > maxEmotions {
		verr.add("emotions", "too_many", "At most 10 emotions are allowed")
	}

	if utf8.RuneCountInString(out.AdditionalInfo) > maxAdditionalInfo {
		verr.add("additionalInfo", "too_long", "Additional information must be at most 2000 characters")
	}
	if utf8.RuneCountInString(out.SymptomDuration) > maxDurationLength {
		verr.add("symptomDuration", "too_long", "Symptom duration must be at most 100 characters")
	}

	if in.VoiceInput != nil {
		v := *in.VoiceInput
		v.Transcript = strings.TrimSpace(v.Transcript)
		if utf8.RuneCountInString(v.Transcript) > maxTranscriptLength {
			verr.add("voiceInput.transcript", "too_long", "Voice transcript must be at most 5000 characters")
		}
		if v.Transcript != "" {
			out.VoiceInput = &v
		}
	}

	if len(verr.Fields) > 0 {
		return Input{}, verr
	}
	return out, nil
}

// cleanList trims items, drops blanks and bounds the patient context lists.
func cleanList(verr *ValidationError, field string, items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if utf8.RuneCountInString(item) > maxContextItemLen {
			verr.add(field, "too_long", "Each entry must be at most 200 characters")
			continue
		}
		out = append(out, item)
	}
	if len(out) > maxContextItems {
		verr.add(field, "too_many", "At most 20 entries are allowed")
	}
	return out
}
