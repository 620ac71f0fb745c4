package symptoms

import (
	"math"
	"sort"
	"strings"
)

// clampConfidence maps provider confidence onto [0,100]. Values in (0,1) are
// read as fractions.
func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 0 && v < 1 {
		v *= 100
	}
	if v > 100 {
		return 100
	}
	return math.Round(v*100) / 100
}

// unitScale reports whether the whole document is on a 0..1 scale: a
// confidence of at most 1 and no condition probability above 1.
func unitScale(a Analysis) bool {
	if a.Confidence <= 0 || a.Confidence > 1 {
		return false
	}
	for _, c := range a.PossibleConditions {
		if c.Probability > 1 {
			return false
		}
	}
	return true
}

// normalizeAnalysis orders conditions by probability and fills the derived
// summary. It returns a new value.
func normalizeAnalysis(a Analysis) Analysis {
	unit := unitScale(a)
	if unit {
		a.Confidence *= 100
	}
	a.Confidence = clampConfidence(a.Confidence)
	conds := make([]Condition, len(a.PossibleConditions))
	copy(conds, a.PossibleConditions)
	for i := range conds {
		if unit {
			conds[i].Probability = math.Round(conds[i].Probability*10000) / 100
		}
		conds[i].Name = strings.TrimSpace(conds[i].Name)
		conds[i].Severity = strings.ToLower(strings.TrimSpace(conds[i].Severity))
	}
	sort.SliceStable(conds, func(i, j int) bool {
		return conds[i].Probability > conds[j].Probability
	})
	a.PossibleConditions = conds
	if a.Recommendations.ImmediateActions == nil {
		a.Recommendations.ImmediateActions = []string{}
	}
	if a.Recommendations.Medicines == nil {
		a.Recommendations.Medicines = []Medicine{}
	}
	if a.Recommendations.HomeRemedies == nil {
		a.Recommendations.HomeRemedies = []HomeRemedy{}
	}
	a.Summary = deriveSummary(a)
	return a
}

func deriveSummary(a Analysis) *Summary {
	if len(a.PossibleConditions) == 0 {
		return nil
	}
	top := a.PossibleConditions[0]
	return &Summary{
		Condition:      top.Name,
		Probability:    top.Probability,
		RiskLevel:      a.RiskLevel,
		DoctorRequired: a.DoctorConsultation.Required,
	}
}

// mergeSymptoms appends voice symptoms after the explicit ones, skipping
// case-insensitive duplicates. explicit is not modified.
func mergeSymptoms(explicit, voice []string) []string {
	out := make([]string, 0, len(explicit)+len(voice))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{explicit, voice} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func computeStats(sessions []Session) Stats {
	st := Stats{TotalAnalyses: len(sessions), RiskLevels: emptyRiskLevels()}
	var confSum, timeSum float64
	completed := 0
	for _, s := range sessions {
		if s.Status != StatusCompleted || s.Confidence == nil {
			continue
		}
		completed++
		confSum += *s.Confidence
		timeSum += float64(s.ProcessingTimeMs)
		if s.Analysis != nil && s.Analysis.RiskLevel.Valid() {
			st.RiskLevels[s.Analysis.RiskLevel]++
		}
	}
	if completed > 0 {
		st.AvgConfidence = round2(confSum / float64(completed))
		st.AvgProcessingTime = round2(timeSum / float64(completed))
	}
	return st
}

func emptyRiskLevels() map[RiskLevel]int {
	m := make(map[RiskLevel]int, len(riskLevels))
	for _, l := range riskLevels {
		m[l] = 0
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
