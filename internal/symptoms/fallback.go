package symptoms

import "strings"

// FallbackConfidence is reported for the static advisory.
const FallbackConfidence = 70.0

var seriousSymptoms = []string{"chest pain", "breathing difficulty", "difficulty breathing", "shortness of breath", "severe headache"}

var commonViralSymptoms = []string{"cough", "fever", "fatigue", "headache"}

// fallbackAnalysis is the generic advisory used when the provider output
// cannot be parsed on the degraded path.
func fallbackAnalysis(in Input, symptoms []string) Analysis {
	pain := in.painLevel()

	risk := RiskMedium
	if pain > 7 {
		risk = RiskHigh
	}
	urgency := "within-week"
	if pain > 8 {
		urgency = "immediate"
	}

	return Analysis{
		PossibleConditions: []Condition{
			{
				Name:             "General Health Concern",
				Probability:      75,
				Severity:         "medium",
				Description:      "The reported symptoms suggest a common condition that should be evaluated.",
				Symptoms:         symptoms,
				Causes:           []string{"Environmental and lifestyle factors", "Possible viral or bacterial infection", "Stress"},
				TreatmentSummary: "Rest, hydration and symptomatic relief usually help.",
				Prognosis:        "Good with proper care.",
			},
			{
				Name:             "Viral Infection",
				Probability:      65,
				Severity:         "low",
				Description:      "A common viral infection of the respiratory or digestive system.",
				Symptoms:         matching(symptoms, commonViralSymptoms),
				Causes:           []string{"Viral pathogens", "Seasonal exposure"},
				TreatmentSummary: "Symptomatic treatment and immune support.",
				Prognosis:        "Usually resolves in 7-10 days.",
			},
		},
		Recommendations: Recommendations{
			ImmediateActions: []string{
				"Rest and get adequate sleep",
				"Stay well hydrated with warm fluids",
				"Monitor your symptoms for any worsening",
				"See a doctor if symptoms get worse or do not improve",
			},
			Medicines: []Medicine{},
			HomeRemedies: []HomeRemedy{
				{
					Name:        "Ginger Honey Tea",
					Description: "Soothing warm drink that helps with throat irritation and hydration.",
					Ingredients: []string{"Fresh ginger", "Honey", "Hot water"},
					Preparation: "Boil ginger in water for 5 minutes, then add honey.",
					Usage:       "Drink 2-3 times daily while warm.",
					Precautions: []string{"Avoid if allergic to ginger", "Use honey sparingly if diabetic"},
				},
			},
			FollowUp: &FollowUp{
				Timeframe: "If symptoms persist beyond 7 days or worsen",
				Symptoms: []string{
					"High fever above 38.3°C (101°F)",
					"Difficulty breathing or chest pain",
					"Persistent vomiting or dehydration",
				},
			},
		},
		DoctorConsultation: DoctorConsultation{
			Required:       pain > 7 || hasAny(symptoms, seriousSymptoms),
			Urgency:        urgency,
			Specialization: []string{"General Practitioner"},
			Reasons:        []string{"Professional evaluation is needed for an accurate diagnosis"},
		},
		Confidence: FallbackConfidence,
		RiskLevel:  risk,
		Fallback:   true,
	}
}

func matching(symptoms, needles []string) []string {
	out := []string{}
	for _, s := range symptoms {
		if hasAny([]string{s}, needles) {
			out = append(out, s)
		}
	}
	return out
}

func hasAny(symptoms, needles []string) bool {
	for _, s := range symptoms {
		lower := strings.ToLower(s)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
	}
	return false
}
